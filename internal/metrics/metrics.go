package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prodcons"

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: 1000}
}

// Metrics はパイプラインのメトリクスを収集する
type Metrics struct {
	produced        atomic.Uint64
	consumed        atomic.Uint64
	deadLettered    atomic.Uint64
	failed          atomic.Uint64
	emptyPolls      atomic.Uint64
	sentinels       atomic.Uint64
	consumersExited atomic.Uint64
	totalLatencyNs  atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	maxLatencySamples int
	queueDepth        func() int

	registry       *prometheus.Registry
	promProduced   prometheus.Counter
	promConsumed   prometheus.Counter
	promDeadLetter prometheus.Counter
	promFailed     prometheus.Counter
	promEmptyPolls prometheus.Counter
	promSentinels  prometheus.Counter
	promLatency    prometheus.Histogram
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	if config.MaxLatencySamples <= 0 {
		config.MaxLatencySamples = DefaultConfig().MaxLatencySamples
	}

	m := &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, config.MaxLatencySamples),
		maxLatencySamples: config.MaxLatencySamples,
		registry:          prometheus.NewRegistry(),
	}

	m.promProduced = counter("items_produced_total", "Items enqueued by the producer.")
	m.promConsumed = counter("items_consumed_total", "Items processed normally by consumers.")
	m.promDeadLetter = counter("items_deadlettered_total", "Items written to the dead-letter sink.")
	m.promFailed = counter("items_failed_total", "Items whose processing returned an error.")
	m.promEmptyPolls = counter("empty_polls_total", "Consumer polls that found the queue empty.")
	m.promSentinels = counter("sentinels_sent_total", "Termination sentinels enqueued by the producer.")
	m.promLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_seconds",
		Help:      "Time spent processing one item.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Items currently waiting in the work queue.",
	}, func() float64 {
		return float64(m.QueueDepth())
	})

	m.registry.MustRegister(
		m.promProduced, m.promConsumed, m.promDeadLetter, m.promFailed,
		m.promEmptyPolls, m.promSentinels, m.promLatency, depth,
	)
	return m
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// Registry はPrometheusレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetQueueDepthFunc はキュー長を返す関数を設定する
func (m *Metrics) SetQueueDepthFunc(fn func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = fn
}

// QueueDepth は現在のキュー長を返す（未設定なら0）
func (m *Metrics) QueueDepth() int {
	m.mu.RLock()
	fn := m.queueDepth
	m.mu.RUnlock()
	if fn == nil {
		return 0
	}
	return fn()
}

// RecordProduced はアイテムの生成を記録する
func (m *Metrics) RecordProduced() {
	m.produced.Add(1)
	m.promProduced.Inc()
}

// RecordSentinel はセンチネルの送信を記録する
func (m *Metrics) RecordSentinel() {
	m.sentinels.Add(1)
	m.promSentinels.Inc()
}

// RecordConsumed は正常処理を記録する
func (m *Metrics) RecordConsumed(latency time.Duration) {
	m.consumed.Add(1)
	m.promConsumed.Inc()
	m.observe(latency)
}

// RecordFailed は処理失敗を記録する
func (m *Metrics) RecordFailed(latency time.Duration) {
	m.failed.Add(1)
	m.promFailed.Inc()
	m.observe(latency)
}

// RecordDeadLettered はデッドレター書き込みを記録する
func (m *Metrics) RecordDeadLettered() {
	m.deadLettered.Add(1)
	m.promDeadLetter.Inc()
}

// RecordEmptyPoll は空振りのポーリングを記録する
func (m *Metrics) RecordEmptyPoll() {
	m.emptyPolls.Add(1)
	m.promEmptyPolls.Inc()
}

// RecordConsumerExit はコンシューマの終了を記録する
func (m *Metrics) RecordConsumerExit() {
	m.consumersExited.Add(1)
}

func (m *Metrics) observe(latency time.Duration) {
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	m.promLatency.Observe(latency.Seconds())

	m.mu.Lock()
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// Produced は生成数を返す
func (m *Metrics) Produced() uint64 { return m.produced.Load() }

// Consumed は正常処理数を返す
func (m *Metrics) Consumed() uint64 { return m.consumed.Load() }

// DeadLettered はデッドレター数を返す
func (m *Metrics) DeadLettered() uint64 { return m.deadLettered.Load() }

// Failed は処理失敗数を返す
func (m *Metrics) Failed() uint64 { return m.failed.Load() }

// EmptyPolls は空振りポーリング数を返す
func (m *Metrics) EmptyPolls() uint64 { return m.emptyPolls.Load() }

// SentinelsSent はセンチネル送信数を返す
func (m *Metrics) SentinelsSent() uint64 { return m.sentinels.Load() }

// ConsumersExited は終了したコンシューマ数を返す
func (m *Metrics) ConsumersExited() uint64 { return m.consumersExited.Load() }

// AverageLatency は平均処理時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	n := m.consumed.Load() + m.failed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / n)
}

// P99Latency はP99処理時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Produced        uint64        `json:"produced"`
	Consumed        uint64        `json:"consumed"`
	DeadLettered    uint64        `json:"deadlettered"`
	Failed          uint64        `json:"failed"`
	EmptyPolls      uint64        `json:"empty_polls"`
	SentinelsSent   uint64        `json:"sentinels_sent"`
	ConsumersExited uint64        `json:"consumers_exited"`
	QueueDepth      int           `json:"queue_depth"`
	AverageLatency  time.Duration `json:"avg_latency_ns"`
	P99Latency      time.Duration `json:"p99_latency_ns"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Produced:        m.Produced(),
		Consumed:        m.Consumed(),
		DeadLettered:    m.DeadLettered(),
		Failed:          m.Failed(),
		EmptyPolls:      m.EmptyPolls(),
		SentinelsSent:   m.SentinelsSent(),
		ConsumersExited: m.ConsumersExited(),
		QueueDepth:      m.QueueDepth(),
		AverageLatency:  m.AverageLatency(),
		P99Latency:      m.P99Latency(),
		Elapsed:         time.Since(m.startTime),
	}
}
