package shutdown

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prodcons/internal/events"
)

func TestStateInitiallyClear(t *testing.T) {
	s := NewState()
	require.False(t, s.StopProduction())
	require.False(t, s.WriteDeadLetter())
	require.Equal(t, Flags{}, s.Flags())
}

func TestTerminateTwice(t *testing.T) {
	c := NewCoordinator(nil)

	c.Terminate()
	c.Terminate()

	require.True(t, c.State().StopProduction())
	require.False(t, c.State().WriteDeadLetter())
	require.Equal(t, 2, c.Received(ModeTerminate))

	for i := 0; i < 3; i++ {
		c.Interrupt()
	}
	require.True(t, c.State().WriteDeadLetter())
	require.True(t, c.State().StopProduction())
}

func TestDeadLetterImpliesStop(t *testing.T) {
	s := NewState()
	require.True(t, s.RequestDeadLetter())
	require.False(t, s.RequestDeadLetter())
	require.True(t, s.StopProduction())
	require.False(t, s.RequestStop())
}

func TestDeadLetterImpliesStopConcurrently(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f := s.Flags()
				if f.WriteDeadLetter && !f.StopProduction {
					t.Error("observed write-deadletter without stop-production")
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	s.RequestDeadLetter()
	time.Sleep(5 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestTransitionEventsFireOnce(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	c := NewCoordinator(NewState())
	c.SetEventBus(bus)

	c.Terminate()
	c.Terminate()
	c.Interrupt()
	c.Interrupt()

	var got []events.EventType
	for len(ch) > 0 {
		got = append(got, (<-ch).Type)
	}
	require.Equal(t, []events.EventType{events.EventShutdownRequested, events.EventDeadLetterMode}, got)
}

func TestInterruptFirstPublishesBoth(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	c := NewCoordinator(NewState())
	c.SetEventBus(bus)
	c.Interrupt()
	c.Terminate()

	require.Len(t, ch, 2)
	require.Equal(t, events.EventShutdownRequested, (<-ch).Type)
	require.Equal(t, events.EventDeadLetterMode, (<-ch).Type)
}

func TestTrigger(t *testing.T) {
	c := NewCoordinator(nil)
	require.Error(t, c.Trigger(ModeNone))
	require.NoError(t, c.Trigger(ModeTerminate))
	require.Equal(t, Flags{StopProduction: true}, c.State().Flags())
	require.NoError(t, c.Trigger(ModeInterrupt))
	require.Equal(t, Flags{StopProduction: true, WriteDeadLetter: true}, c.State().Flags())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeNone, false},
		{"terminate", ModeTerminate, false},
		{"SIGTERM", ModeTerminate, false},
		{"interrupt", ModeInterrupt, false},
		{"sigint", ModeInterrupt, false},
		{"hup", ModeNone, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if tt.wantErr {
			require.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		require.Equal(t, tt.want, got, tt.input)
	}
}

func TestModeForSignal(t *testing.T) {
	require.Equal(t, ModeTerminate, ModeForSignal(syscall.SIGTERM))
	require.Equal(t, ModeInterrupt, ModeForSignal(os.Interrupt))
	require.Equal(t, ModeNone, ModeForSignal(syscall.SIGHUP))
}

func TestNotifyRelaysSignals(t *testing.T) {
	c := NewCoordinator(nil)
	c.Notify(context.Background())
	defer c.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	require.Eventually(t, c.State().StopProduction, time.Second, 5*time.Millisecond)
	require.False(t, c.State().WriteDeadLetter())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.Eventually(t, c.State().WriteDeadLetter, time.Second, 5*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewCoordinator(nil)
	c.Stop()
	c.Notify(context.Background())
	c.Notify(context.Background())
	c.Stop()
	c.Stop()
}

func TestModeText(t *testing.T) {
	b, err := ModeInterrupt.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "interrupt", string(b))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("SIGTERM")))
	require.Equal(t, ModeTerminate, m)
	require.Error(t, m.UnmarshalText([]byte("usr1")))
}
