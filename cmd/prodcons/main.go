// Package main is the entry point for prodcons.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"prodcons/internal/api"
	"prodcons/internal/config"
	"prodcons/internal/deadletter"
	"prodcons/internal/events"
	"prodcons/internal/logger"
	"prodcons/internal/pipeline"
	"prodcons/internal/shutdown"
)

var (
	version = "dev"
)

func main() {
	if err := newCommand(run).Run(context.Background(), os.Args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// newCommand はフラグ定義済みのコマンドを作成する
func newCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:    "prodcons",
		Usage:   "Bounded producer/consumer pipeline with graceful SIGTERM/SIGINT shutdown",
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "consumers",
				Aliases: []string{"c"},
				Value:   2,
				Usage:   "The number of consumers to create/use",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "設定ファイルパス (YAML/JSON)",
			},
			&cli.StringFlag{
				Name:  "preset",
				Usage: "プリセット名 (" + strings.Join(pipeline.ListPresets(), ", ") + ")",
			},
			&cli.IntFlag{
				Name:  "items",
				Usage: "生成するアイテム数",
			},
			&cli.IntFlag{
				Name:  "capacity",
				Usage: "キューの上限",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "ログファイルのディレクトリ",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "ログレベル (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "deadletter",
				Usage: "デッドレターの書き込み先 (fileならパス、badgerならディレクトリ)",
			},
			&cli.StringFlag{
				Name:  "deadletter-backend",
				Usage: "デッドレターのバックエンド (file, redis, badger)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "redisバックエンドの接続先 (例: localhost:6379)",
			},
			&cli.StringFlag{
				Name:  "signal",
				Usage: "台本シグナルの種類 (terminate, interrupt)",
			},
			&cli.IntFlag{
				Name:  "signal-after",
				Usage: "この数のアイテムを生成したら台本シグナルを送る",
			},
			&cli.StringFlag{
				Name:  "api-addr",
				Usage: "HTTP APIのアドレス (例: :8080)。空なら起動しない",
			},
			&cli.BoolFlag{
				Name:  "list-presets",
				Usage: "利用可能なプリセットを表示",
			},
		},
		Action: action,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// プリセット一覧表示
	if cmd.Bool("list-presets") {
		printPresets()
		return nil
	}

	cfg, apiAddr, err := buildPipelineConfig(cmd)
	if err != nil {
		return fmt.Errorf("設定エラー: %w", err)
	}

	return runPipeline(ctx, cfg, apiAddr)
}

// buildPipelineConfig はパイプライン設定を構築する
// 優先順位: フラグ > 設定ファイル > プリセット > デフォルト
func buildPipelineConfig(cmd *cli.Command) (pipeline.Config, string, error) {
	cfg := pipeline.DefaultConfig()
	apiAddr := cmd.String("api-addr")

	// 1. 設定ファイルから読み込み
	if path := cmd.String("config"); path != "" {
		fileConfig, err := config.LoadFile(path)
		if err != nil {
			return cfg, "", fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, "", fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fileConfig.ToPipelineConfig()
		if err != nil {
			return cfg, "", fmt.Errorf("設定変換エラー: %w", err)
		}
		if apiAddr == "" {
			apiAddr = fileConfig.API.Addr
		}
	} else if name := cmd.String("preset"); name != "" {
		// 2. プリセットから読み込み
		preset, ok := pipeline.GetPreset(name)
		if !ok {
			return cfg, "", fmt.Errorf("不明なプリセット: %s (利用可能: %v)", name, pipeline.ListPresets())
		}
		cfg = preset
	}

	// フラグでオーバーライド
	if cmd.IsSet("consumers") {
		cfg.Consumers = int(cmd.Int("consumers"))
	}
	if cmd.IsSet("items") {
		cfg.Items = int(cmd.Int("items"))
	}
	if cmd.IsSet("capacity") {
		cfg.QueueCapacity = int(cmd.Int("capacity"))
	}
	if dir := cmd.String("log-dir"); dir != "" {
		cfg.LogDir = dir
	}
	if lv := cmd.String("log-level"); lv != "" {
		level, err := logger.ParseLevel(lv)
		if err != nil {
			return cfg, "", err
		}
		cfg.LogLevel = level
	}
	if backend := strings.ToLower(cmd.String("deadletter-backend")); backend != "" {
		cfg.DeadLetter.Backend = backend
		if backend == deadletter.BackendBadger && !cmd.IsSet("deadletter") {
			cfg.DeadLetter.Path = ""
		}
	}
	if path := cmd.String("deadletter"); path != "" {
		cfg.DeadLetter.Path = path
	}
	if addr := cmd.String("redis-addr"); addr != "" {
		cfg.DeadLetter.RedisAddr = addr
	}
	if s := cmd.String("signal"); s != "" {
		mode, err := shutdown.ParseMode(s)
		if err != nil {
			return cfg, "", err
		}
		cfg.Trigger.Mode = mode
	}
	if cmd.IsSet("signal-after") {
		cfg.Trigger.AfterItems = int(cmd.Int("signal-after"))
	}

	return cfg, apiAddr, cfg.Validate()
}

// runPipeline はパイプラインを実行する
func runPipeline(ctx context.Context, cfg pipeline.Config, apiAddr string) error {
	fmt.Println("prodcons - Producer/Consumer Pipeline")
	fmt.Println("====================================================")
	fmt.Printf("Preset: %s\n", cfg.Name)
	fmt.Printf("Items: %d, Consumers: %d, Queue: %d\n", cfg.Items, cfg.Consumers, cfg.QueueCapacity)
	fmt.Printf("Log: %s\n", cfg.LogPath())
	fmt.Printf("PID: %d (SIGTERM: stop production, SIGINT: dead-letter the rest)\n", os.Getpid())
	fmt.Println("====================================================")
	fmt.Println()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := pipeline.New(cfg)
	bus := events.NewBus()
	defer bus.Close()
	engine.SetEventBus(bus)

	// シグナルはフラグを立てるだけで、ワーカーは止めない
	coord := engine.Coordinator()
	coord.Notify(ctx)
	defer coord.Stop()

	if apiAddr != "" {
		server := api.NewServer(apiAddr, engine)
		server.SetEventBus(bus)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("API server error: %v", err)
			}
		}()
	}

	result, err := engine.Run(ctx)
	if result != nil {
		fmt.Println(result.Report())
	}
	return err
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセット:")
	fmt.Println()

	for _, name := range pipeline.ListPresets() {
		p, _ := pipeline.GetPreset(name)
		fmt.Printf("  %-12s %s\n", p.Name, p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: prodcons --preset interrupt")
}
