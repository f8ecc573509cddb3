package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"prodcons/internal/deadletter"
	"prodcons/internal/logger"
	"prodcons/internal/shutdown"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func intPtr(v int) *int { return &v }

func TestLoadFileYAML(t *testing.T) {
	content := `
pipeline:
  name: nightly-etl
  description: Nightly load
  consumers: 4
  queue_capacity: 8
  items: 40
  poll_interval: 100ms
  max_work_delay: 2s
  produce_delay: 500ms
  log:
    dir: /var/log/prodcons
    name: etl
    level: debug
  deadletter:
    backend: redis
    redis_addr: localhost:6379
    redis_key: etl:dead
  trigger:
    mode: interrupt
    after_items: 12
api:
  addr: ":9090"
`
	cfg, err := LoadFile(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pipeline.Name != "nightly-etl" {
		t.Errorf("expected name 'nightly-etl', got '%s'", cfg.Pipeline.Name)
	}
	if cfg.Pipeline.Consumers != 4 {
		t.Errorf("expected consumers 4, got %d", cfg.Pipeline.Consumers)
	}
	if cfg.Pipeline.Items == nil || *cfg.Pipeline.Items != 40 {
		t.Errorf("expected items 40, got %v", cfg.Pipeline.Items)
	}
	if cfg.Pipeline.DeadLetter.Backend != "redis" {
		t.Errorf("expected redis backend, got '%s'", cfg.Pipeline.DeadLetter.Backend)
	}
	if cfg.Pipeline.Trigger.Mode != "interrupt" {
		t.Errorf("expected trigger mode interrupt, got '%s'", cfg.Pipeline.Trigger.Mode)
	}
	if cfg.API.Addr != ":9090" {
		t.Errorf("expected api addr ':9090', got '%s'", cfg.API.Addr)
	}

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if pc.PollInterval != 100*time.Millisecond {
		t.Errorf("expected poll interval 100ms, got %v", pc.PollInterval)
	}
	if pc.LogLevel != logger.LevelDebug {
		t.Errorf("expected debug level, got %v", pc.LogLevel)
	}
	if pc.LogPath() != filepath.Join("/var/log/prodcons", "etl.log") {
		t.Errorf("unexpected log path %s", pc.LogPath())
	}
	if pc.Trigger.Mode != shutdown.ModeInterrupt || pc.Trigger.AfterItems != 12 {
		t.Errorf("unexpected trigger %+v", pc.Trigger)
	}
	if pc.DeadLetter.RedisKey != "etl:dead" {
		t.Errorf("expected redis key 'etl:dead', got '%s'", pc.DeadLetter.RedisKey)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "pipeline": {
    "preset": "terminate",
    "consumers": 3,
    "deadletter": {"backend": "badger"}
  }
}`
	cfg, err := LoadFile(writeFile(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if pc.Name != "terminate" {
		t.Errorf("expected preset name 'terminate', got '%s'", pc.Name)
	}
	if pc.Items != 10 {
		t.Errorf("expected preset items 10, got %d", pc.Items)
	}
	if pc.Consumers != 3 {
		t.Errorf("expected consumers 3, got %d", pc.Consumers)
	}
	if pc.Trigger.Mode != shutdown.ModeTerminate {
		t.Errorf("expected terminate trigger from preset, got %v", pc.Trigger.Mode)
	}
	if pc.DeadLetter.Backend != deadletter.BackendBadger || pc.DeadLetter.Path != "" {
		t.Errorf("expected in-memory badger, got %+v", pc.DeadLetter)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.txt", "test"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileMalformedYAML(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.yaml", "pipeline: [unclosed"))
	if err == nil {
		t.Error("expected parse error")
	}
}

func TestToPipelineConfigDefaults(t *testing.T) {
	cfg := &FileConfig{}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if pc.Consumers != 2 || pc.QueueCapacity != 3 || pc.Items != 250 {
		t.Errorf("unexpected defaults: %+v", pc)
	}
	if pc.DeadLetter.Path != deadletter.DefaultPath {
		t.Errorf("expected default dead-letter path, got '%s'", pc.DeadLetter.Path)
	}
}

func TestToPipelineConfigZeroItems(t *testing.T) {
	cfg := &FileConfig{Pipeline: PipelineConfig{Items: intPtr(0)}}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if pc.Items != 0 {
		t.Errorf("expected explicit zero items, got %d", pc.Items)
	}
}

func TestToPipelineConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config PipelineConfig
	}{
		{"invalid poll interval", PipelineConfig{PollInterval: "soon"}},
		{"invalid trigger duration", PipelineConfig{Trigger: TriggerConfig{After: "later"}}},
		{"unknown preset", PipelineConfig{Preset: "nope"}},
		{"unknown level", PipelineConfig{Log: LogConfig{Level: "loud"}}},
		{"unknown trigger mode", PipelineConfig{Trigger: TriggerConfig{Mode: "usr1"}}},
		{"redis without addr", PipelineConfig{DeadLetter: deadletter.Config{Backend: "redis"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{Pipeline: tt.config}
			if _, err := cfg.ToPipelineConfig(); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name: "negative consumers",
			config: FileConfig{
				Pipeline: PipelineConfig{Consumers: -1},
			},
			hasError: true,
		},
		{
			name: "negative queue capacity",
			config: FileConfig{
				Pipeline: PipelineConfig{QueueCapacity: -1},
			},
			hasError: true,
		},
		{
			name: "negative items",
			config: FileConfig{
				Pipeline: PipelineConfig{Items: intPtr(-5)},
			},
			hasError: true,
		},
		{
			name: "negative trigger items",
			config: FileConfig{
				Pipeline: PipelineConfig{Trigger: TriggerConfig{AfterItems: -1}},
			},
			hasError: true,
		},
		{
			name: "bad trigger mode",
			config: FileConfig{
				Pipeline: PipelineConfig{Trigger: TriggerConfig{Mode: "hup"}},
			},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
