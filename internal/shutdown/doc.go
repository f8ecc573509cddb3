// Package shutdown holds the two graceful-shutdown flags and the coordinator
// that sets them.
//
//   - SIGTERM (ModeTerminate): stop production. Consumers keep processing
//     whatever is still queued.
//   - SIGINT (ModeInterrupt): stop production and switch consumers to
//     draining the queue into the dead-letter sink.
//
// Repeated signals are harmless: flags are set at most once and never reset,
// and log lines and events fire only on the first transition.
//
//	state := shutdown.NewState()
//	coord := shutdown.NewCoordinator(state)
//	coord.Notify(ctx)
//	defer coord.Stop()
//
//	p := producer.New(q, state, log, cfg) // read-only use of state
package shutdown
