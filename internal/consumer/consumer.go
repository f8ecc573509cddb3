package consumer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"prodcons/internal/deadletter"
	"prodcons/internal/events"
	"prodcons/internal/logger"
	"prodcons/internal/metrics"
	"prodcons/internal/queue"
	"prodcons/internal/shutdown"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultNamePrefix   = "consumer"
)

// ErrNoSink は書き込み先のないままデッドレターモードに入ったときに返る
var ErrNoSink = errors.New("consumer: dead-letter mode without a sink")

// ErrPanicked はコンシューマ内のpanicを包む
var ErrPanicked = errors.New("consumer: panicked")

// Config はコンシューマプールの設定
type Config struct {
	Consumers    int           // コンシューマ数
	PollInterval time.Duration // キューが空のときの待ち時間
	NamePrefix   string        // ワーカー名の接頭辞（consumer-1, consumer-2, ...）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Consumers:    2,
		PollInterval: DefaultPollInterval,
		NamePrefix:   DefaultNamePrefix,
	}
}

// Processor は1アイテムの処理（ロード工程の模擬）
type Processor func(ctx context.Context, item queue.Item) error

// NoWork は何もしないProcessor
func NoWork(context.Context, queue.Item) error { return nil }

// RandomDelay は最大maxのランダムな待ち時間を処理とみなすProcessorを作る
func RandomDelay(max time.Duration) Processor {
	return func(ctx context.Context, _ queue.Item) error {
		if max <= 0 {
			return nil
		}
		return sleep(ctx, time.Duration(rand.Int63n(int64(max))))
	}
}

// Pool は同じキューを共有するコンシューマ群
type Pool struct {
	config  Config
	queue   *queue.Queue[queue.Item]
	state   *shutdown.State
	sink    deadletter.Sink
	log     *logger.Logger
	process Processor

	metrics  *metrics.Metrics
	eventBus *events.Bus

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	errs    []error
	running atomic.Int32
}

// NewPool は新しいコンシューマプールを作成する
func NewPool(q *queue.Queue[queue.Item], state *shutdown.State, sink deadletter.Sink, log *logger.Logger, config Config) *Pool {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.NamePrefix == "" {
		config.NamePrefix = DefaultNamePrefix
	}
	if state == nil {
		state = shutdown.NewState()
	}
	if log == nil {
		log = logger.Default
	}
	return &Pool{
		config:  config,
		queue:   q,
		state:   state,
		sink:    sink,
		log:     log,
		process: NoWork,
		errs:    make([]error, config.Consumers),
	}
}

// SetProcessor は処理関数を設定する
func (p *Pool) SetProcessor(fn Processor) {
	if fn == nil {
		fn = NoWork
	}
	p.process = fn
}

// SetMetrics はメトリクスを設定する
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// SetEventBus はイベントバスを設定する
func (p *Pool) SetEventBus(bus *events.Bus) {
	p.eventBus = bus
}

// Start はコンシューマを起動する
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.config.Consumers; i++ {
		name := fmt.Sprintf("%s-%d", p.config.NamePrefix, i+1)
		p.wg.Add(1)
		p.running.Add(1)
		go p.consume(ctx, i, p.log.With(name))
	}
}

// Wait は全コンシューマの終了を待ち、各コンシューマのエラーをまとめて返す
func (p *Pool) Wait() error {
	p.wg.Wait()
	return errors.Join(p.errs...)
}

// NumConsumers はコンシューマ数を返す
func (p *Pool) NumConsumers() int {
	return p.config.Consumers
}

// Running は稼働中のコンシューマ数を返す
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// consume は個々のコンシューマのループ
func (p *Pool) consume(ctx context.Context, id int, log *logger.Logger) {
	defer p.wg.Done()

	log.Info("Consumer running")
	err := p.safeLoop(ctx, log)
	if err != nil {
		log.Error("Consumer stopped: %v", err)
		p.errs[id] = fmt.Errorf("%s: %w", log.Worker(), err)
	}

	log.Info("Consumer shut down.")
	p.running.Add(-1)
	if p.metrics != nil {
		p.metrics.RecordConsumerExit()
	}
	p.eventBus.Publish(events.NewConsumerExitEvent(log.Worker(), err))
}

// safeLoop はloopのpanicをこのコンシューマのエラーに変える
func (p *Pool) safeLoop(ctx context.Context, log *logger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return p.loop(ctx, log)
}

func (p *Pool) loop(ctx context.Context, log *logger.Logger) error {
	for {
		item, err := p.queue.TryGet()
		if errors.Is(err, queue.ErrEmpty) {
			log.Info("Nothing to consume now, waiting...")
			if p.metrics != nil {
				p.metrics.RecordEmptyPoll()
			}
			if err := sleep(ctx, p.config.PollInterval); err != nil {
				return err
			}
			continue
		}

		if item.IsSentinel() {
			return nil
		}

		// 取り出したアイテムごとに一度だけフラグを読む
		if p.state.WriteDeadLetter() {
			if err := p.deadLetter(ctx, log, item); err != nil {
				return err
			}
			continue
		}

		if err := p.handle(ctx, log, item); err != nil {
			return err
		}
	}
}

func (p *Pool) deadLetter(ctx context.Context, log *logger.Logger, item queue.Item) error {
	if p.sink == nil {
		return ErrNoSink
	}
	if err := p.sink.Append(ctx, item); err != nil {
		return fmt.Errorf("dead-letter value %s: %w", item, err)
	}
	log.Info("Dead-lettered value %s", item)
	if p.metrics != nil {
		p.metrics.RecordDeadLettered()
	}
	p.eventBus.Publish(events.NewItemDeadLetteredEvent(log.Worker(), item.String()))
	return nil
}

// handle は通常処理を行う。処理エラーは記録して続行し、ctxの終了だけを返す。
func (p *Pool) handle(ctx context.Context, log *logger.Logger, item queue.Item) error {
	start := time.Now()
	err := p.safeProcess(ctx, item)
	latency := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error("Failed to process value %s: %v", item, err)
		if p.metrics != nil {
			p.metrics.RecordFailed(latency)
		}
		p.eventBus.Publish(events.NewItemFailedEvent(log.Worker(), item.String(), err))
		return nil
	}

	log.Info("Consumed value %s", item)
	if p.metrics != nil {
		p.metrics.RecordConsumed(latency)
	}
	p.eventBus.Publish(events.NewItemConsumedEvent(log.Worker(), item.String()))
	return nil
}

// safeProcess は処理関数のpanicを処理エラーとして返す
func (p *Pool) safeProcess(ctx context.Context, item queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return p.process(ctx, item)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
