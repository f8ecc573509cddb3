// Package producer fills the work queue and ends the run with one sentinel
// per consumer.
//
// Before every item the producer checks the stop-production flag; once it
// is set, the remaining items are never produced. Sentinels are sent from a
// deferred finalizer, so consumers are released on every exit path.
//
//	p := producer.New(q, state, log.With("producer"), producer.Config{
//	    Items:     250,
//	    Consumers: 2,
//	})
//	p.SetGenerator(producer.RandomDelay(time.Second))
//	res, err := p.Run(ctx)
package producer
