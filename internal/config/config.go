package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"prodcons/internal/deadletter"
	"prodcons/internal/logger"
	"prodcons/internal/pipeline"
	"prodcons/internal/shutdown"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	API      APIConfig      `yaml:"api" json:"api"`
}

// PipelineConfig はパイプライン設定
type PipelineConfig struct {
	Preset        string `yaml:"preset" json:"preset"`
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description"`
	Consumers     int    `yaml:"consumers" json:"consumers"`
	QueueCapacity int    `yaml:"queue_capacity" json:"queue_capacity"`
	Items         *int   `yaml:"items" json:"items"`
	PollInterval  string `yaml:"poll_interval" json:"poll_interval"`
	MaxWorkDelay  string `yaml:"max_work_delay" json:"max_work_delay"`
	ProduceDelay  string `yaml:"produce_delay" json:"produce_delay"`

	Log        LogConfig         `yaml:"log" json:"log"`
	DeadLetter deadletter.Config `yaml:"deadletter" json:"deadletter"`
	Trigger    TriggerConfig     `yaml:"trigger" json:"trigger"`
}

// LogConfig はログ設定
type LogConfig struct {
	Dir   string `yaml:"dir" json:"dir"`
	Name  string `yaml:"name" json:"name"`
	Level string `yaml:"level" json:"level"`
}

// TriggerConfig は台本シグナルの設定
type TriggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	AfterItems int    `yaml:"after_items" json:"after_items"`
	After      string `yaml:"after" json:"after"`
}

// APIConfig はHTTP API設定
type APIConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToPipelineConfig はFileConfigをpipeline.Configに変換する
// presetが指定されていればそれを土台にし、無ければデフォルト設定を使う
func (f *FileConfig) ToPipelineConfig() (pipeline.Config, error) {
	pc := f.Pipeline

	config := pipeline.DefaultConfig()
	if pc.Preset != "" {
		preset, ok := pipeline.GetPreset(pc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", pc.Preset)
		}
		config = preset
	}

	if pc.Name != "" {
		config.Name = pc.Name
	}
	if pc.Description != "" {
		config.Description = pc.Description
	}
	if pc.Consumers > 0 {
		config.Consumers = pc.Consumers
	}
	if pc.QueueCapacity > 0 {
		config.QueueCapacity = pc.QueueCapacity
	}
	if pc.Items != nil {
		config.Items = *pc.Items
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"poll_interval", pc.PollInterval, &config.PollInterval},
		{"max_work_delay", pc.MaxWorkDelay, &config.MaxWorkDelay},
		{"produce_delay", pc.ProduceDelay, &config.ProduceDelay},
		{"trigger.after", pc.Trigger.After, &config.Trigger.AfterDuration},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return config, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	// Log設定
	if pc.Log.Dir != "" {
		config.LogDir = pc.Log.Dir
	}
	if pc.Log.Name != "" {
		config.LogName = pc.Log.Name
	}
	if pc.Log.Level != "" {
		level, err := logger.ParseLevel(pc.Log.Level)
		if err != nil {
			return config, err
		}
		config.LogLevel = level
	}

	// DeadLetter設定
	dl := pc.DeadLetter
	if dl.Backend != "" {
		config.DeadLetter.Backend = strings.ToLower(dl.Backend)
	}
	if dl.Path != "" {
		config.DeadLetter.Path = dl.Path
	} else if config.DeadLetter.Backend == deadletter.BackendBadger {
		config.DeadLetter.Path = ""
	}
	if dl.RedisAddr != "" {
		config.DeadLetter.RedisAddr = dl.RedisAddr
	}
	if dl.RedisKey != "" {
		config.DeadLetter.RedisKey = dl.RedisKey
	}

	// Trigger設定
	if pc.Trigger.Mode != "" {
		mode, err := shutdown.ParseMode(pc.Trigger.Mode)
		if err != nil {
			return config, err
		}
		config.Trigger.Mode = mode
	}
	if pc.Trigger.AfterItems > 0 {
		config.Trigger.AfterItems = pc.Trigger.AfterItems
	}

	return config, config.Validate()
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	pc := f.Pipeline

	if pc.Consumers < 0 {
		return fmt.Errorf("pipeline.consumers must be non-negative")
	}

	if pc.QueueCapacity < 0 {
		return fmt.Errorf("pipeline.queue_capacity must be non-negative")
	}

	if pc.Items != nil && *pc.Items < 0 {
		return fmt.Errorf("pipeline.items must be non-negative")
	}

	if pc.Trigger.AfterItems < 0 {
		return fmt.Errorf("pipeline.trigger.after_items must be non-negative")
	}

	if _, err := shutdown.ParseMode(pc.Trigger.Mode); err != nil {
		return fmt.Errorf("pipeline.trigger.mode: %w", err)
	}

	return nil
}
