package producer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"prodcons/internal/events"
	"prodcons/internal/logger"
	"prodcons/internal/metrics"
	"prodcons/internal/queue"
	"prodcons/internal/shutdown"
)

// DefaultItems は既定の生成数
const DefaultItems = 250

// ErrAlreadyRunning はRunの多重呼び出し時に返る
var ErrAlreadyRunning = errors.New("producer: already running")

// ErrPanicked は生成処理やフックのpanicを包む
var ErrPanicked = errors.New("producer: panicked")

// Config はProducerの設定
type Config struct {
	Items     int // 生成するアイテム数
	Consumers int // 終了時に送るセンチネル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Items:     DefaultItems,
		Consumers: 2,
	}
}

// GenerateFunc はindex番目の値を作る（抽出・変換の模擬）
type GenerateFunc func(ctx context.Context, index int) (int, error)

// Identity は待ち時間なしでindexをそのまま値にする
func Identity(_ context.Context, index int) (int, error) {
	return index, nil
}

// RandomDelay は最大maxのランダムな待ち時間のあとindexを返すGenerateFuncを作る
func RandomDelay(max time.Duration) GenerateFunc {
	return func(ctx context.Context, index int) (int, error) {
		if max <= 0 {
			return index, nil
		}
		t := time.NewTimer(time.Duration(rand.Int63n(int64(max))))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
			return index, nil
		}
	}
}

// Result は生成結果
type Result struct {
	Produced     int  `json:"produced"`
	StoppedEarly bool `json:"stopped_early"`
	StoppedAt    int  `json:"stopped_at"`
	Sentinels    int  `json:"sentinels"`
}

// Producer はキューにアイテムを投入し、最後にセンチネルを送る
type Producer struct {
	config   Config
	queue    *queue.Queue[queue.Item]
	state    *shutdown.State
	log      *logger.Logger
	generate GenerateFunc
	afterPut func(index int)
	metrics  *metrics.Metrics
	eventBus *events.Bus

	running atomic.Bool
}

// New は新しいProducerを作成する
func New(q *queue.Queue[queue.Item], state *shutdown.State, log *logger.Logger, config Config) *Producer {
	if config.Items < 0 {
		config.Items = 0
	}
	if log == nil {
		log = logger.Default.With("producer")
	}
	return &Producer{
		config:   config,
		queue:    q,
		state:    state,
		log:      log,
		generate: Identity,
	}
}

// SetGenerator は値の生成関数を設定する
func (p *Producer) SetGenerator(fn GenerateFunc) {
	if fn == nil {
		fn = Identity
	}
	p.generate = fn
}

// SetAfterPut は投入成功ごとに呼ばれるフックを設定する
func (p *Producer) SetAfterPut(fn func(index int)) {
	p.afterPut = fn
}

// SetMetrics はメトリクスを設定する
func (p *Producer) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// SetEventBus はイベントバスを設定する
func (p *Producer) SetEventBus(bus *events.Bus) {
	p.eventBus = bus
}

// IsRunning は実行中かどうかを返す
func (p *Producer) IsRunning() bool {
	return p.running.Load()
}

// Run は生成ループを実行する。どの経路で抜けてもセンチネルは必ず送られる。
func (p *Producer) Run(ctx context.Context) (res Result, err error) {
	if p.running.Swap(true) {
		return Result{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	// センチネル送信の後に実行される
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Producer panicked: %v", r)
			err = errors.Join(err, fmt.Errorf("%w: %v", ErrPanicked, r))
		}
	}()

	p.log.Info("Producer running")
	p.eventBus.Publish(events.NewProductionStartedEvent(p.log.Worker(), p.config.Items))

	defer func() {
		res.Sentinels, err = p.sendSentinels(ctx, err)
		p.log.Info("Producer done")
		p.eventBus.Publish(events.NewProductionDoneEvent(p.log.Worker(), res.Produced, res.Sentinels, err))
	}()

	for i := 0; i < p.config.Items; i++ {
		if p.state != nil && p.state.StopProduction() {
			p.log.Info("Production stopped early at index %d", i)
			p.eventBus.Publish(events.NewProductionStoppedEvent(p.log.Worker(), i))
			res.StoppedEarly = true
			res.StoppedAt = i
			return res, nil
		}

		v, err := p.generate(ctx, i)
		if err != nil {
			return res, fmt.Errorf("generate item %d: %w", i, err)
		}
		if err := p.queue.Put(ctx, queue.NewItem(v)); err != nil {
			return res, fmt.Errorf("put item %d: %w", i, err)
		}
		res.Produced++
		if p.metrics != nil {
			p.metrics.RecordProduced()
		}
		if p.afterPut != nil {
			p.afterPut(i)
		}
	}

	p.log.Info("Production complete")
	return res, nil
}

// sendSentinels はコンシューマ数ぶんのセンチネルを投入する
func (p *Producer) sendSentinels(ctx context.Context, runErr error) (int, error) {
	sent := 0
	for i := 0; i < p.config.Consumers; i++ {
		if err := p.queue.Put(ctx, queue.Sentinel()); err != nil {
			p.log.Error("Failed to send sentinel %d/%d: %v", sent+1, p.config.Consumers, err)
			return sent, errors.Join(runErr, fmt.Errorf("send sentinel: %w", err))
		}
		sent++
		if p.metrics != nil {
			p.metrics.RecordSentinel()
		}
	}
	return sent, runErr
}
