package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/logger"
)

var (
	modelPath   string
	weightsPath string
	seed        uint64
	concurrency int64
	logLevel    string
	logFormat   string
	debug       bool

	cfg Config
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a model definition (.yaml or .json)",
			Required:    true,
			Destination: &modelPath,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "initialization seed (overrides the definition)",
			Destination: &seed,
		},
		&cli.Int64Flag{
			Name:        "concurrency",
			Usage:       "default branch concurrency for parallel layers",
			Destination: &concurrency,
		},
	}
}

func weightsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "weights",
		Aliases:     []string{"w"},
		Usage:       "path to an .lsw checkpoint",
		Destination: &weightsPath,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setupLogging loads the config file and installs the logger on the context
// shared by every subcommand.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	loaded, err := LoadConfig()
	if err != nil {
		return ctx, err
	}
	cfg = loaded
	applyLoggingConfig(cmd, cfg)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	return logger.WithContext(ctx, logger.ForFormat(os.Stderr, logFormat, level)), nil
}
