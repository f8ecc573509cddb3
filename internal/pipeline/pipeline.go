package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"prodcons/internal/consumer"
	"prodcons/internal/deadletter"
	"prodcons/internal/events"
	"prodcons/internal/logger"
	"prodcons/internal/metrics"
	"prodcons/internal/producer"
	"prodcons/internal/queue"
	"prodcons/internal/shutdown"
	"prodcons/internal/trigger"
)

// Config はパイプラインの設定
type Config struct {
	Name        string // プリセット名
	Description string // 説明

	Consumers     int // コンシューマ数
	QueueCapacity int // キューの上限
	Items         int // 生成するアイテム数

	PollInterval time.Duration // キューが空のときの待ち時間
	MaxWorkDelay time.Duration // 1アイテムの処理時間の上限（ランダム）
	ProduceDelay time.Duration // 1アイテムの生成時間の上限（ランダム）

	// ログ設定
	LogDir   string
	LogName  string
	LogLevel logger.Level

	DeadLetter deadletter.Config
	Trigger    trigger.Config
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:          "default",
		Description:   "Default pipeline",
		Consumers:     2,
		QueueCapacity: queue.DefaultCapacity,
		Items:         producer.DefaultItems,
		PollInterval:  consumer.DefaultPollInterval,
		MaxWorkDelay:  3 * time.Second,
		ProduceDelay:  time.Second,
		LogDir:        "logging",
		LogName:       logger.DefaultName,
		LogLevel:      logger.LevelInfo,
		DeadLetter:    deadletter.DefaultConfig(),
	}
}

// Validate は設定値を検証する
func (c Config) Validate() error {
	if c.Consumers < 1 {
		return fmt.Errorf("consumers must be at least 1, got %d", c.Consumers)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if c.Items < 0 {
		return fmt.Errorf("items must not be negative, got %d", c.Items)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.MaxWorkDelay < 0 || c.ProduceDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.LogDir == "" || c.LogName == "" {
		return errors.New("log dir and log name are required")
	}
	if c.Trigger.AfterItems < 0 || c.Trigger.AfterDuration < 0 {
		return errors.New("trigger thresholds must not be negative")
	}
	return c.DeadLetter.Validate()
}

// LogPath はログファイルのパスを返す
func (c Config) LogPath() string {
	return filepath.Join(c.LogDir, c.LogName+".log")
}

// Result はパイプライン実行結果
type Result struct {
	Name      string        `json:"name"`
	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	// 生成
	Target       int  `json:"target"`
	Produced     int  `json:"produced"`
	StoppedEarly bool `json:"stopped_early"`
	StoppedAt    int  `json:"stopped_at"`
	Sentinels    int  `json:"sentinels"`

	// 消費
	Consumed     uint64        `json:"consumed"`
	DeadLettered uint64        `json:"deadlettered"`
	Failed       uint64        `json:"failed"`
	EmptyPolls   uint64        `json:"empty_polls"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
	P99Latency   time.Duration `json:"p99_latency_ns"`

	Flags        shutdown.Flags `json:"flags"`
	TriggerFired bool           `json:"trigger_fired"`

	LogFile     string   `json:"log_file"`
	LogRecords  uint64   `json:"log_records"`
	DeadLetter  string   `json:"deadletter"`
	Errors      []string `json:"errors,omitempty"`
	Interrupted bool     `json:"interrupted"`
}

// Engine はパイプライン実行エンジン
type Engine struct {
	config    Config
	state     *shutdown.State
	coord     *shutdown.Coordinator
	metrics   *metrics.Metrics
	eventBus  *events.Bus
	generate  producer.GenerateFunc
	processor consumer.Processor

	mu      sync.RWMutex
	running bool
	runID   string
	queue   *queue.Queue[queue.Item]
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	state := shutdown.NewState()
	return &Engine{
		config:  config,
		state:   state,
		coord:   shutdown.NewCoordinator(state),
		metrics: metrics.New(),
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
	e.coord.SetEventBus(bus)
}

// SetGenerator は生成処理を差し替える（既定はProduceDelayまでのランダム待ち）
func (e *Engine) SetGenerator(fn producer.GenerateFunc) {
	e.generate = fn
}

// SetProcessor は消費処理を差し替える（既定はMaxWorkDelayまでのランダム待ち）
func (e *Engine) SetProcessor(fn consumer.Processor) {
	e.processor = fn
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// State は共有フラグを返す
func (e *Engine) State() *shutdown.State {
	return e.state
}

// Coordinator はシャットダウン要求の窓口を返す
func (e *Engine) Coordinator() *shutdown.Coordinator {
	return e.coord
}

// Metrics はメトリクスを返す
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// RunID は直近の実行IDを返す
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runID
}

// QueueLen は現在のキュー長を返す
func (e *Engine) QueueLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.queue == nil {
		return 0
	}
	return e.queue.Len()
}

// Run はパイプラインを最後まで実行する。
// 結果はエラー時にも返る（セットアップ失敗時を除く）。
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("pipeline is already running")
	}
	e.running = true
	e.runID = uuid.NewString()
	runID := e.runID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	result := &Result{
		Name:      e.config.Name,
		RunID:     runID,
		StartTime: time.Now(),
		Target:    e.config.Items,
		LogFile:   e.config.LogPath(),
	}

	// ログの集約先
	file, err := logger.OpenFile(e.config.LogDir, e.config.LogName)
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	defer file.Close()

	logCh := logger.NewChannel()
	listener := logger.NewListener(logCh, file)
	listener.Start()

	base := logger.NewWithHandler(logCh, e.config.LogLevel).Named(e.config.LogName)
	mainLog := base.With("main")
	e.coord.SetLogger(mainLog)

	mainLog.Info("Run %s started (%s)", runID, e.config.Name)

	q := queue.New[queue.Item](e.config.QueueCapacity)
	e.mu.Lock()
	e.queue = q
	e.mu.Unlock()
	e.metrics.SetQueueDepthFunc(q.Len)
	mainLog.Info("Created the processing queue (capacity %d)", q.Cap())

	sink, err := deadletter.Open(ctx, e.config.DeadLetter)
	if err != nil {
		mainLog.Error("Failed to open dead-letter sink: %v", err)
		logCh.Close()
		listener.Wait()
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	result.DeadLetter = describeSink(e.config.DeadLetter)

	pool := consumer.NewPool(q, e.state, sink, base, consumer.Config{
		Consumers:    e.config.Consumers,
		PollInterval: e.config.PollInterval,
	})
	pool.SetProcessor(e.processorOrDefault())
	pool.SetMetrics(e.metrics)
	pool.SetEventBus(e.eventBus)

	prod := producer.New(q, e.state, base.With("producer"), producer.Config{
		Items:     e.config.Items,
		Consumers: e.config.Consumers,
	})
	prod.SetGenerator(e.generatorOrDefault())
	prod.SetMetrics(e.metrics)
	prod.SetEventBus(e.eventBus)

	trig := trigger.New(e.coord, e.config.Trigger)
	trig.SetLogger(base.With("trigger"))
	if e.config.Trigger.Enabled() {
		prod.SetAfterPut(trig.Observe)
	}

	mainLog.Info("Starting the %d consumer(s)", pool.NumConsumers())
	pool.Start(ctx)
	trig.Start(ctx)

	// コンシューマが全員抜けたら、誰も受け取らないPutを中断する
	prodCtx, cancelProd := context.WithCancel(ctx)
	defer cancelProd()

	var consErr error
	consDone := make(chan struct{})
	go func() {
		defer close(consDone)
		consErr = pool.Wait()
		cancelProd()
	}()

	mainLog.Info("Starting the producer")
	var (
		prodRes producer.Result
		prodErr error
	)
	prodDone := make(chan struct{})
	go func() {
		defer close(prodDone)
		prodRes, prodErr = prod.Run(prodCtx)
	}()

	// 結合順序: producer → consumers → sink → log listener
	<-prodDone
	mainLog.Info("Producer joined")
	<-consDone
	mainLog.Info("All consumers joined")
	trig.Stop()

	sinkErr := sink.Close()
	if sinkErr != nil {
		mainLog.Error("Failed to close dead-letter sink: %v", sinkErr)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result, prodRes, trig)

	runErr := errors.Join(prodErr, consErr, sinkErr)
	if runErr != nil {
		mainLog.Error("Run %s finished with errors: %v", runID, runErr)
		for _, err := range []error{prodErr, consErr, sinkErr} {
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
			}
		}
	}
	result.Interrupted = ctx.Err() != nil
	mainLog.Info("Run %s finished in %v", runID, result.Duration.Round(time.Millisecond))

	logCh.Close()
	listener.Wait()
	result.LogRecords = listener.Written()

	return result, runErr
}

func (e *Engine) generatorOrDefault() producer.GenerateFunc {
	if e.generate != nil {
		return e.generate
	}
	return producer.RandomDelay(e.config.ProduceDelay)
}

func (e *Engine) processorOrDefault() consumer.Processor {
	if e.processor != nil {
		return e.processor
	}
	return consumer.RandomDelay(e.config.MaxWorkDelay)
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result, prod producer.Result, trig *trigger.Trigger) {
	result.Produced = prod.Produced
	result.StoppedEarly = prod.StoppedEarly
	result.StoppedAt = prod.StoppedAt
	result.Sentinels = prod.Sentinels

	snapshot := e.metrics.Snapshot()
	result.Consumed = snapshot.Consumed
	result.DeadLettered = snapshot.DeadLettered
	result.Failed = snapshot.Failed
	result.EmptyPolls = snapshot.EmptyPolls
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency

	result.Flags = e.state.Flags()
	result.TriggerFired = trig.Fired()
}

func describeSink(c deadletter.Config) string {
	switch c.Backend {
	case deadletter.BackendRedis:
		key := c.RedisKey
		if key == "" {
			key = deadletter.DefaultRedisKey
		}
		return fmt.Sprintf("redis://%s/%s", c.RedisAddr, key)
	case deadletter.BackendBadger:
		if c.Path == "" {
			return "badger (in-memory)"
		}
		return "badger://" + c.Path
	default:
		return c.Path
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	stopped := "no"
	if r.StoppedEarly {
		stopped = fmt.Sprintf("yes, at index %d", r.StoppedAt)
	}

	report := fmt.Sprintf(`
================================================================================
                         PIPELINE REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Run ID:         %s
  Start Time:     %s
  End Time:       %s
  Duration:       %v

PRODUCTION
----------
  Target Items:     %d
  Produced:         %d
  Stopped Early:    %s
  Sentinels Sent:   %d

CONSUMPTION
-----------
  Consumed:         %d
  Dead-lettered:    %d
  Failed:           %d
  Empty Polls:      %d
  Avg Latency:      %v
  P99 Latency:      %v

SHUTDOWN
--------
  Stop Production:  %v
  Write Deadletter: %v

OUTPUT
------
  Log File:         %s (%d records)
  Dead-letter:      %s
`,
		r.Name,
		r.RunID,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Target,
		r.Produced,
		stopped,
		r.Sentinels,
		r.Consumed,
		r.DeadLettered,
		r.Failed,
		r.EmptyPolls,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.Flags.StopProduction,
		r.Flags.WriteDeadLetter,
		r.LogFile,
		r.LogRecords,
		r.DeadLetter,
	)

	if len(r.Errors) > 0 {
		report += "\nERRORS\n------\n"
		for _, e := range r.Errors {
			report += fmt.Sprintf("  %s\n", e)
		}
	}

	report += "\n================================================================================"

	return report
}
