// Package events provides an event system for pipeline lifecycle notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventProductionStarted is emitted when the producer begins its loop
	EventProductionStarted EventType = "production_started"
	// EventProductionStopped is emitted when the producer observes stop-production
	EventProductionStopped EventType = "production_stopped"
	// EventProductionDone is emitted after the producer has enqueued its sentinels
	EventProductionDone EventType = "production_done"
	// EventItemConsumed is emitted when a consumer finishes normal processing
	EventItemConsumed EventType = "item_consumed"
	// EventItemDeadLettered is emitted when a consumer writes an item to the dead-letter sink
	EventItemDeadLettered EventType = "item_deadlettered"
	// EventItemFailed is emitted when processing an item returns an error
	EventItemFailed EventType = "item_failed"
	// EventConsumerExit is emitted when a consumer leaves its loop
	EventConsumerExit EventType = "consumer_exit"
	// EventShutdownRequested is emitted the first time stop-production is set
	EventShutdownRequested EventType = "shutdown_requested"
	// EventDeadLetterMode is emitted the first time write-deadletter is set
	EventDeadLetterMode EventType = "deadletter_mode"
)

// Event represents a pipeline event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Worker    string    `json:"worker,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Item  string `json:"item,omitempty"`
	Index int    `json:"index,omitempty"`
	Count int    `json:"count,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

func newEvent(t EventType, worker string, data EventData) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Worker:    worker,
		Data:      data,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewProductionStartedEvent creates a production started event
func NewProductionStartedEvent(worker string, target int) Event {
	return newEvent(EventProductionStarted, worker, EventData{Count: target})
}

// NewProductionStoppedEvent creates an early-stop event at the given index
func NewProductionStoppedEvent(worker string, index int) Event {
	return newEvent(EventProductionStopped, worker, EventData{Index: index})
}

// NewProductionDoneEvent creates a production done event
func NewProductionDoneEvent(worker string, produced, sentinels int, err error) Event {
	return newEvent(EventProductionDone, worker, EventData{
		Count: produced,
		Index: sentinels,
		Error: errString(err),
	})
}

// NewItemConsumedEvent creates an item consumed event
func NewItemConsumedEvent(worker, item string) Event {
	return newEvent(EventItemConsumed, worker, EventData{Item: item})
}

// NewItemDeadLetteredEvent creates an item dead-lettered event
func NewItemDeadLetteredEvent(worker, item string) Event {
	return newEvent(EventItemDeadLettered, worker, EventData{Item: item})
}

// NewItemFailedEvent creates an item failed event
func NewItemFailedEvent(worker, item string, err error) Event {
	return newEvent(EventItemFailed, worker, EventData{Item: item, Error: errString(err)})
}

// NewConsumerExitEvent creates a consumer exit event
func NewConsumerExitEvent(worker string, err error) Event {
	return newEvent(EventConsumerExit, worker, EventData{Error: errString(err)})
}

// NewShutdownRequestedEvent creates a shutdown requested event
func NewShutdownRequestedEvent(mode string) Event {
	return newEvent(EventShutdownRequested, "", EventData{Mode: mode})
}

// NewDeadLetterModeEvent creates a dead-letter mode event
func NewDeadLetterModeEvent(mode string) Event {
	return newEvent(EventDeadLetterMode, "", EventData{Mode: mode})
}
