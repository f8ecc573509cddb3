package pipeline

import (
	"time"

	"prodcons/internal/shutdown"
	"prodcons/internal/trigger"
)

// BasicPreset は基本的な設定を返す
// シグナルなし、10アイテム
func BasicPreset() Config {
	c := DefaultConfig()
	c.Name = "basic"
	c.Description = "Ten items, no shutdown signal"
	c.Items = 10
	return c
}

// TerminatePreset はSIGTERM相当の設定を返す
// 5アイテム生成後に生産を止め、キューの残りは通常処理する
func TerminatePreset() Config {
	c := BasicPreset()
	c.Name = "terminate"
	c.Description = "Terminate after item 4 is produced; queued items are still processed"
	c.Trigger = trigger.Config{Mode: shutdown.ModeTerminate, AfterItems: 5}
	return c
}

// InterruptPreset はSIGINT相当の設定を返す
// 5アイテム生成後に生産を止め、キューの残りはデッドレターへ
func InterruptPreset() Config {
	c := BasicPreset()
	c.Name = "interrupt"
	c.Description = "Interrupt after item 4 is produced; queued items are dead-lettered"
	c.Trigger = trigger.Config{Mode: shutdown.ModeInterrupt, AfterItems: 5}
	return c
}

// QuickPreset は短時間の動作確認用
func QuickPreset() Config {
	c := DefaultConfig()
	c.Name = "quick"
	c.Description = "Quick run with short delays"
	c.Items = 25
	c.ProduceDelay = 200 * time.Millisecond
	c.MaxWorkDelay = 600 * time.Millisecond
	c.PollInterval = 100 * time.Millisecond
	return c
}

// DemoPreset は元の例と同じ規模の設定を返す
func DemoPreset() Config {
	c := DefaultConfig()
	c.Name = "demo"
	c.Description = "250 items with the full simulated delays"
	return c
}

var presets = map[string]func() Config{
	"basic":     BasicPreset,
	"terminate": TerminatePreset,
	"interrupt": InterruptPreset,
	"quick":     QuickPreset,
	"demo":      DemoPreset,
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "terminate", "interrupt", "quick", "demo"}
}
