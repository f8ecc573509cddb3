// Package consumer runs the pool of workers that drain the shared queue.
//
// Each consumer polls the queue without blocking. An empty queue means a
// short sleep and another try; a sentinel ends the consumer. For every
// real item the consumer reads the write-deadletter flag exactly once: when
// set, the item goes to the dead-letter sink untouched, otherwise it is
// handed to the Processor.
//
//	pool := consumer.NewPool(q, state, sink, log, consumer.Config{Consumers: 2})
//	pool.SetProcessor(consumer.RandomDelay(3 * time.Second))
//	pool.Start(ctx)
//	err := pool.Wait()
package consumer
