package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel は文字列をLevelに変換する
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// DefaultName はロガー名のデフォルト値
const DefaultName = "prodcons"

// Record は1件のログレコード
type Record struct {
	Time    time.Time
	Worker  string
	Name    string
	Level   Level
	Message string
}

// Handler はレコードの送り先
type Handler interface {
	Handle(r Record)
}

// HandlerFunc は関数をHandlerとして扱う
type HandlerFunc func(r Record)

// Handle はfを呼び出す
func (f HandlerFunc) Handle(r Record) { f(r) }

// Formatter はレコードを1行に整形する
type Formatter func(r Record) (string, error)

var errNoTimestamp = errors.New("record has no timestamp")

// FormatLine はデフォルトの行フォーマット
// timestamp worker name level message
func FormatLine(r Record) (string, error) {
	if r.Time.IsZero() {
		return "", errNoTimestamp
	}
	return fmt.Sprintf("%s %-12s %s %-8s %s\n",
		r.Time.Format("2006-01-02 15:04:05.000"), r.Worker, r.Name, r.Level, r.Message), nil
}

// WriterHandler はio.Writerへ直接書き込むHandler
type WriterHandler struct {
	mu     sync.Mutex
	out    io.Writer
	format Formatter
}

// NewWriterHandler は新しいWriterHandlerを作成する
func NewWriterHandler(out io.Writer, format Formatter) *WriterHandler {
	if format == nil {
		format = FormatLine
	}
	return &WriterHandler{out: out, format: format}
}

// Handle はレコードを書き込む（エラーは無視）
func (h *WriterHandler) Handle(r Record) {
	_ = h.Write(r)
}

// Write はレコードを書き込み、エラーを返す
func (h *WriterHandler) Write(r Record) error {
	line, err := h.format(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = io.WriteString(h.out, line)
	return err
}

// Logger はワーカー名を持つレベル付きロガー
type Logger struct {
	mu       sync.Mutex
	handler  Handler
	minLevel Level
	worker   string
	name     string
}

// Default はデフォルトのロガー（コンソール出力）
var Default = New(os.Stdout, LevelInfo).With("main")

// New はio.Writerに出力するロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return NewWithHandler(NewWriterHandler(out, FormatLine), minLevel)
}

// NewWithHandler はHandlerに転送するロガーを作成する
func NewWithHandler(h Handler, minLevel Level) *Logger {
	return &Logger{
		handler:  h,
		minLevel: minLevel,
		name:     DefaultName,
	}
}

// With はワーカー名を設定した派生ロガーを返す
func (l *Logger) With(worker string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		handler:  l.handler,
		minLevel: l.minLevel,
		worker:   worker,
		name:     l.name,
	}
}

// Named はロガー名を設定した派生ロガーを返す
func (l *Logger) Named(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		handler:  l.handler,
		minLevel: l.minLevel,
		worker:   l.worker,
		name:     name,
	}
}

// Worker はワーカー名を返す
func (l *Logger) Worker() string {
	return l.worker
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// log は指定されたレベルでレコードを作成し、Handlerへ渡す
func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	if level < l.minLevel {
		l.mu.Unlock()
		return
	}
	h := l.handler
	r := Record{
		Time:    time.Now(),
		Worker:  l.worker,
		Name:    l.name,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
	l.mu.Unlock()

	h.Handle(r)
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(format string, args ...any) {
	Default.Debug(format, args...)
}

// Info は情報ログを出力する
func Info(format string, args ...any) {
	Default.Info(format, args...)
}

// Warn は警告ログを出力する
func Warn(format string, args ...any) {
	Default.Warn(format, args...)
}

// Error はエラーログを出力する
func Error(format string, args ...any) {
	Default.Error(format, args...)
}
