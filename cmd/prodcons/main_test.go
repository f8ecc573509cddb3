package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"prodcons/internal/deadletter"
	"prodcons/internal/pipeline"
	"prodcons/internal/shutdown"
)

// parse はフラグを解釈してbuildPipelineConfigの結果を返す
func parse(t *testing.T, args ...string) (pipeline.Config, string, error) {
	t.Helper()

	var (
		cfg      pipeline.Config
		apiAddr  string
		buildErr error
	)
	cmd := newCommand(func(_ context.Context, c *cli.Command) error {
		cfg, apiAddr, buildErr = buildPipelineConfig(c)
		return nil
	})
	if err := cmd.Run(context.Background(), append([]string{"prodcons"}, args...)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return cfg, apiAddr, buildErr
}

func TestBuildPipelineConfigDefaults(t *testing.T) {
	cfg, apiAddr, err := parse(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Consumers != 2 {
		t.Errorf("expected 2 consumers, got %d", cfg.Consumers)
	}
	if cfg.Items != 250 {
		t.Errorf("expected 250 items, got %d", cfg.Items)
	}
	if apiAddr != "" {
		t.Errorf("expected no api addr, got '%s'", apiAddr)
	}
}

func TestBuildPipelineConfigPresetAndOverrides(t *testing.T) {
	cfg, apiAddr, err := parse(t,
		"--preset", "interrupt",
		"-c", "4",
		"--items", "12",
		"--capacity", "5",
		"--api-addr", ":8080",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "interrupt" {
		t.Errorf("expected preset 'interrupt', got '%s'", cfg.Name)
	}
	if cfg.Consumers != 4 || cfg.Items != 12 || cfg.QueueCapacity != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Trigger.Mode != shutdown.ModeInterrupt {
		t.Errorf("expected interrupt trigger, got %v", cfg.Trigger.Mode)
	}
	if apiAddr != ":8080" {
		t.Errorf("expected api addr ':8080', got '%s'", apiAddr)
	}
}

func TestBuildPipelineConfigSignalFlags(t *testing.T) {
	cfg, _, err := parse(t, "--signal", "sigterm", "--signal-after", "3", "--deadletter-backend", "badger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Trigger.Mode != shutdown.ModeTerminate || cfg.Trigger.AfterItems != 3 {
		t.Errorf("unexpected trigger %+v", cfg.Trigger)
	}
	if cfg.DeadLetter.Backend != deadletter.BackendBadger || cfg.DeadLetter.Path != "" {
		t.Errorf("expected in-memory badger, got %+v", cfg.DeadLetter)
	}
}

func TestBuildPipelineConfigBackendCase(t *testing.T) {
	cfg, _, err := parse(t, "--deadletter-backend", "BADGER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeadLetter.Backend != deadletter.BackendBadger {
		t.Errorf("expected backend 'badger', got '%s'", cfg.DeadLetter.Backend)
	}
	if cfg.DeadLetter.Path != "" {
		t.Errorf("expected in-memory badger, got path '%s'", cfg.DeadLetter.Path)
	}
}

func TestBuildPipelineConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pipeline:
  preset: basic
  consumers: 3
api:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, apiAddr, err := parse(t, "--config", path, "-c", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Consumers != 5 {
		t.Errorf("expected flag to override file consumers, got %d", cfg.Consumers)
	}
	if cfg.Items != 10 {
		t.Errorf("expected basic preset items, got %d", cfg.Items)
	}
	if apiAddr != ":9090" {
		t.Errorf("expected api addr from file, got '%s'", apiAddr)
	}
}

func TestBuildPipelineConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown preset", []string{"--preset", "nope"}},
		{"unknown signal", []string{"--signal", "hup"}},
		{"zero consumers", []string{"-c", "0"}},
		{"bad level", []string{"--log-level", "loud"}},
		{"missing file", []string{"--config", "/nonexistent/config.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parse(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
