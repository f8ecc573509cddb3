// Package queue provides the bounded work queue shared by the producer and
// the consumer pool.
//
// Put blocks while the queue is full, which is how the producer is throttled
// by slow consumers. TryGet never blocks: consumers poll and back off on
// ErrEmpty so they can re-check the shutdown flags every cycle.
//
// # Termination
//
// The producer ends every run by putting one Sentinel per consumer. Each
// consumer stops after the first sentinel it takes, so every consumer sees
// exactly one regardless of relative speed.
//
//	q := queue.New[queue.Item](3)
//	_ = q.Put(ctx, queue.NewItem(1))
//	item, err := q.TryGet()
//	if errors.Is(err, queue.ErrEmpty) {
//	    // back off and retry
//	}
package queue
