// Package deadletter stores items that consumers drained without processing
// after an interrupt.
//
// Three backends implement Sink:
//
//   - FileSink: one line per item in a text file, created on first use.
//   - RedisSink: RPUSH onto a Redis list.
//   - BadgerSink: an embedded badger database keyed by a sequence.
//
// Open picks one from a Config:
//
//	sink, err := deadletter.Open(ctx, deadletter.Config{
//	    Backend: deadletter.BackendFile,
//	    Path:    "logging/deadletter.txt",
//	})
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
package deadletter
