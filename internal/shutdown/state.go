package shutdown

import "sync/atomic"

// State holds the two shutdown flags shared by the producer and consumers.
// Flags only ever go from false to true.
type State struct {
	stopProduction  atomic.Bool
	writeDeadLetter atomic.Bool
}

// Flags is a point-in-time copy of State.
type Flags struct {
	StopProduction  bool `json:"stop_production"`
	WriteDeadLetter bool `json:"write_deadletter"`
}

// NewState returns a state with both flags cleared.
func NewState() *State {
	return &State{}
}

// StopProduction reports whether the producer must stop creating items.
func (s *State) StopProduction() bool {
	return s.stopProduction.Load()
}

// WriteDeadLetter reports whether consumers must divert items to the dead-letter sink.
func (s *State) WriteDeadLetter() bool {
	return s.writeDeadLetter.Load()
}

// RequestStop sets stop-production and reports whether this call changed it.
func (s *State) RequestStop() bool {
	return s.stopProduction.CompareAndSwap(false, true)
}

// RequestDeadLetter sets stop-production, then write-deadletter, and reports
// whether write-deadletter changed. The order keeps
// WriteDeadLetter() => StopProduction() true for any concurrent reader.
func (s *State) RequestDeadLetter() bool {
	s.RequestStop()
	return s.writeDeadLetter.CompareAndSwap(false, true)
}

// Flags returns a snapshot. Dead-letter is read first so the snapshot never
// shows write-deadletter without stop-production.
func (s *State) Flags() Flags {
	dl := s.writeDeadLetter.Load()
	return Flags{
		StopProduction:  s.stopProduction.Load(),
		WriteDeadLetter: dl,
	}
}
