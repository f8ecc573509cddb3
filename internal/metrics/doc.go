// Package metrics provides pipeline counters and processing latency.
//
// Metrics counts produced, consumed, dead-lettered and failed items, empty
// consumer polls and sentinels sent. Every counter is mirrored into a
// private Prometheus registry so the HTTP API can expose it at /metrics.
//
// # Basic Usage
//
//	m := metrics.New()
//	m.SetQueueDepthFunc(q.Len)
//
//	start := time.Now()
//	// ... process an item ...
//	m.RecordConsumed(time.Since(start))
//
//	snap := m.Snapshot()
//	fmt.Printf("consumed: %d, dead-lettered: %d, P99: %v\n",
//	    snap.Consumed, snap.DeadLettered, snap.P99Latency)
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	m := metrics.NewWithConfig(config)
//
// # Thread Safety
//
// All operations use atomic counters and are safe for concurrent access.
package metrics
