package trigger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"prodcons/internal/logger"
	"prodcons/internal/shutdown"
)

// Config はTriggerの設定
type Config struct {
	Mode          shutdown.Mode `json:"mode"`           // 送るシグナルの種類
	AfterItems    int           `json:"after_items"`    // 生成数がこの値に達したら発火（0で無効）
	AfterDuration time.Duration `json:"after_duration"` // 開始からこの時間で発火（0で無効）
}

// Enabled は発火条件が設定されているかを返す
func (c Config) Enabled() bool {
	return c.Mode != shutdown.ModeNone && (c.AfterItems > 0 || c.AfterDuration > 0)
}

// Stats はTriggerの統計情報
type Stats struct {
	Mode     string    `json:"mode"`
	Fired    bool      `json:"fired"`
	FiredAt  time.Time `json:"fired_at,omitempty"`
	Observed uint64    `json:"observed"`
	Reason   string    `json:"reason,omitempty"`
}

// Trigger は条件を満たしたときに一度だけシャットダウンを要求する
type Trigger struct {
	config Config
	coord  *shutdown.Coordinator
	log    *logger.Logger

	fired    atomic.Bool
	observed atomic.Uint64

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.RWMutex
	firedAt time.Time
	reason  string
}

// New は新しいTriggerを作成する
func New(coord *shutdown.Coordinator, config Config) *Trigger {
	return &Trigger{
		config: config,
		coord:  coord,
		log:    logger.Default.With("trigger"),
	}
}

// SetLogger はロガーを設定する
func (t *Trigger) SetLogger(l *logger.Logger) {
	t.log = l
}

// Observe は生成済みアイテムのindexを受け取る（ProducerのAfterPutに接続する）
func (t *Trigger) Observe(index int) {
	t.observed.Add(1)
	if t.config.AfterItems <= 0 || index+1 < t.config.AfterItems {
		return
	}
	t.fire("after %d items", t.config.AfterItems)
}

// Start は時間条件のタイマーを開始する
func (t *Trigger) Start(ctx context.Context) {
	if t.config.AfterDuration <= 0 || t.running.Swap(true) {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		timer := time.NewTimer(t.config.AfterDuration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			t.fire("after %v", t.config.AfterDuration)
		}
	}()
}

// Stop はタイマーを停止する
func (t *Trigger) Stop() {
	if !t.running.Swap(false) {
		return
	}
	t.cancel()
	t.wg.Wait()
}

// Fired は発火済みかどうかを返す
func (t *Trigger) Fired() bool {
	return t.fired.Load()
}

// Stats は統計情報を返す
func (t *Trigger) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		Mode:     t.config.Mode.String(),
		Fired:    t.fired.Load(),
		FiredAt:  t.firedAt,
		Observed: t.observed.Load(),
		Reason:   t.reason,
	}
}

func (t *Trigger) fire(format string, args ...any) {
	if t.config.Mode == shutdown.ModeNone || t.fired.Swap(true) {
		return
	}

	t.mu.Lock()
	t.firedAt = time.Now()
	t.reason = fmt.Sprintf(format, args...)
	reason := t.reason
	t.mu.Unlock()

	t.log.Info("Sending %s (%s)", t.config.Mode, reason)
	if t.coord != nil {
		_ = t.coord.Trigger(t.config.Mode)
	}
}
