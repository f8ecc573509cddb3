// Package logger provides leveled logging and the single-writer log funnel
// used by every pipeline worker.
//
// Workers never write to the log file themselves. Each one holds a Logger
// whose Handler is a shared Channel; one Listener drains the Channel and is
// the only writer of the destination.
//
// # Basic Usage
//
//	ch := logger.NewChannel()
//	l := logger.NewListener(ch, file)
//	l.Start()
//
//	root := logger.NewWithHandler(ch, logger.LevelInfo)
//	root.With("producer").Info("Producer running")
//
//	// after every worker has been joined
//	ch.Close()
//	l.Wait()
//
// Using the default console logger:
//
//	logger.Info("Application started")
//	logger.Error("Failed: %v", err)
//
// # Log Levels
//
// Messages below the configured level are filtered at the sender:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Failure Handling
//
// A record the Listener cannot format or write is reported on stderr and
// skipped; the Listener keeps running because it is the only log sink.
package logger
