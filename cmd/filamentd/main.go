package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/filament/internal/api"
	"github.com/samcharles93/filament/internal/inference"
	"github.com/samcharles93/filament/internal/logger"
	"github.com/samcharles93/filament/internal/toy"
	"github.com/samcharles93/filament/internal/version"
)

func main() {
	app := &cli.Command{
		Name:  "filamentd",
		Usage: "Batched text-generation engine",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cli.Command {
	var (
		addr         string
		configPath   string
		logLevel     string
		logFormat    string
		hidden       int64
		maxSeqLen    int64
		maxBatchSize int64
		modelSeed    int64
		readTimeout  time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the OpenAI-style completion API backed by the toy model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "text, json or pretty",
				Value:       "pretty",
				Destination: &logFormat,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "toy model hidden size",
				Value:       64,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "max-seq-len",
				Usage:       "maximum sequence length",
				Value:       512,
				Destination: &maxSeqLen,
			},
			&cli.Int64Flag{
				Name:        "max-batch-size",
				Usage:       "maximum batch size",
				Value:       8,
				Destination: &maxBatchSize,
			},
			&cli.Int64Flag{
				Name:        "model-seed",
				Usage:       "toy model weight seed",
				Value:       1,
				Destination: &modelSeed,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			explicit := cmd.IsSet("config")
			path := configPath
			if path == "" {
				path = defaultConfigPath()
			}
			cfg, err := loadConfig(path, explicit)
			if err != nil {
				return err
			}
			if cfg.Address != "" && !cmd.IsSet("addr") {
				addr = cfg.Address
			}
			if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
				logLevel = cfg.LogLevel
			}
			if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
				logFormat = cfg.LogFormat
			}
			if cfg.Hidden != nil && !cmd.IsSet("hidden") {
				hidden = int64(*cfg.Hidden)
			}
			if cfg.MaxSeqLen != nil && !cmd.IsSet("max-seq-len") {
				maxSeqLen = int64(*cfg.MaxSeqLen)
			}
			if cfg.MaxBatchSize != nil && !cmd.IsSet("max-batch-size") {
				maxBatchSize = int64(*cfg.MaxBatchSize)
			}
			if cfg.ModelSeed != nil && !cmd.IsSet("model-seed") {
				modelSeed = *cfg.ModelSeed
			}

			log := newLogger(logFormat, logLevel)

			tok := toy.Tokenizer{}
			m := toy.NewModel(toy.VocabSize, int(hidden), int(maxSeqLen), int(maxBatchSize), modelSeed)
			engine, err := inference.New(m, tok, log)
			if err != nil {
				return err
			}

			modelName := cfg.ModelName
			if modelName == "" {
				modelName = "filament-toy"
			}
			server := api.NewServer(engine, log, modelName)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "model", modelName, "version", version.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println(version.String())
			return nil
		},
	}
}

func newLogger(format, level string) logger.Logger {
	lvl := logger.ParseLevel(level)
	switch format {
	case "json":
		return logger.JSON(os.Stderr, lvl)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	default:
		return logger.Pretty(os.Stderr, lvl)
	}
}
