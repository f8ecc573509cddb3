package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Listener はChannelを読み出し、唯一の出力先へ書き込む
type Listener struct {
	ch     *Channel
	out    io.Writer
	format Formatter
	diag   *logrus.Logger

	started atomic.Bool
	done    chan struct{}
	written atomic.Uint64
	failed  atomic.Uint64
}

// NewListener は新しいListenerを作成する
func NewListener(ch *Channel, out io.Writer) *Listener {
	diag := logrus.New()
	diag.SetOutput(os.Stderr)

	return &Listener{
		ch:     ch,
		out:    out,
		format: FormatLine,
		diag:   diag,
		done:   make(chan struct{}),
	}
}

// SetFormatter は行フォーマットを設定する（Start前に呼ぶこと）
func (l *Listener) SetFormatter(f Formatter) {
	if f != nil {
		l.format = f
	}
}

// SetDiagnostics は診断出力先のロガーを設定する（Start前に呼ぶこと）
func (l *Listener) SetDiagnostics(d *logrus.Logger) {
	if d != nil {
		l.diag = d
	}
}

// Start はバックグラウンドで受信ループを開始する
func (l *Listener) Start() {
	if l.started.Swap(true) {
		return
	}
	go func() {
		defer close(l.done)
		l.run()
	}()
}

// Run は停止センチネルを受け取るまで受信ループを実行する
func (l *Listener) Run() {
	if l.started.Swap(true) {
		return
	}
	defer close(l.done)
	l.run()
}

// Wait は受信ループの終了を待つ
func (l *Listener) Wait() {
	<-l.done
}

// Done は受信ループ終了時にcloseされるチャネルを返す
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Written は書き込んだレコード数を返す
func (l *Listener) Written() uint64 {
	return l.written.Load()
}

// Failed は書き込みに失敗したレコード数を返す
func (l *Listener) Failed() uint64 {
	return l.failed.Load()
}

func (l *Listener) run() {
	for {
		r, ok := l.ch.Receive()
		if !ok {
			return
		}
		if err := l.handle(r); err != nil {
			l.failed.Add(1)
			l.diag.WithFields(logrus.Fields{
				"worker": r.Worker,
				"level":  r.Level.String(),
			}).WithError(err).Error("logging problem, record skipped")
			continue
		}
		l.written.Add(1)
	}
}

// handle は1件を書き込む。フォーマッタのpanicもエラーとして扱う
func (l *Listener) handle(r Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("formatter panic: %v", p)
		}
	}()

	line, err := l.format(r)
	if err != nil {
		return err
	}
	_, err = io.WriteString(l.out, line)
	return err
}

// OpenFile はdir/name.logを追記モードで開く（ディレクトリは作成する）
func OpenFile(dir, name string) (*os.File, error) {
	if name == "" {
		name = DefaultName
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
