package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"prodcons/internal/events"
	"prodcons/internal/logger"
)

// Coordinator translates termination and interrupt requests into State flags.
// It never stops a worker directly; workers notice the flags at their own
// loop boundaries.
type Coordinator struct {
	state *State

	mu       sync.Mutex
	log      *logger.Logger
	eventBus *events.Bus
	received map[Mode]int

	running atomic.Bool
	sigCh   chan os.Signal
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator that mutates state.
func NewCoordinator(state *State) *Coordinator {
	if state == nil {
		state = NewState()
	}
	return &Coordinator{
		state:    state,
		received: make(map[Mode]int),
	}
}

// SetLogger sets where flag transitions are logged.
func (c *Coordinator) SetLogger(l *logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l
}

// SetEventBus sets the bus that receives transition events.
func (c *Coordinator) SetEventBus(bus *events.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventBus = bus
}

// State returns the shared flags.
func (c *Coordinator) State() *State {
	return c.state
}

// Terminate sets stop-production only.
func (c *Coordinator) Terminate() {
	c.record(ModeTerminate)
	if c.state.RequestStop() {
		c.logf("Termination requested: production will stop, queued items are still processed")
		c.publish(events.NewShutdownRequestedEvent(ModeTerminate.String()))
	}
}

// Interrupt sets stop-production and write-deadletter.
func (c *Coordinator) Interrupt() {
	c.record(ModeInterrupt)
	stopWasSet := c.state.StopProduction()
	if c.state.RequestDeadLetter() {
		if !stopWasSet {
			c.publish(events.NewShutdownRequestedEvent(ModeInterrupt.String()))
		}
		c.logf("Interrupt requested: production will stop, queued items go to the dead-letter sink")
		c.publish(events.NewDeadLetterModeEvent(ModeInterrupt.String()))
	}
}

// Trigger dispatches m to Terminate or Interrupt.
func (c *Coordinator) Trigger(m Mode) error {
	switch m {
	case ModeTerminate:
		c.Terminate()
	case ModeInterrupt:
		c.Interrupt()
	default:
		return fmt.Errorf("cannot trigger shutdown mode %s", m)
	}
	return nil
}

// Received returns how many requests of mode m were seen, repeats included.
func (c *Coordinator) Received(m Mode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received[m]
}

// Notify starts relaying SIGTERM and SIGINT until ctx ends or Stop is called.
// While relaying, SIGINT no longer kills the process.
func (c *Coordinator) Notify(ctx context.Context) {
	if c.running.Swap(true) {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.sigCh = make(chan os.Signal, 4)
	signal.Notify(c.sigCh, syscall.SIGTERM, os.Interrupt)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-c.sigCh:
				c.logf("Received signal %v", sig)
				_ = c.Trigger(ModeForSignal(sig))
			}
		}
	}()
}

// Stop stops relaying signals and restores default handling.
func (c *Coordinator) Stop() {
	if !c.running.Swap(false) {
		return
	}
	signal.Stop(c.sigCh)
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) record(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received[m]++
}

func (c *Coordinator) logf(format string, args ...any) {
	c.mu.Lock()
	l := c.log
	c.mu.Unlock()
	if l != nil {
		l.Warn(format, args...)
	}
}

func (c *Coordinator) publish(e events.Event) {
	c.mu.Lock()
	bus := c.eventBus
	c.mu.Unlock()
	bus.Publish(e)
}
