package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/vocab"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	// loaded in setup
	fileConfig Config

	dimensions int64
	heads      int64
	seed       int64
	topN       int64
	maxTokens  int64

	strategy    string
	temperature float64
	topK        int64
	sampleSeed  int64
)

func globalFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default ~/.config/explora/config.yaml)",
			Destination: &configFile,
		},
	}, loggingFlags()...)
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

func pipelineFlags() []cli.Flag {
	d := inference.DefaultConfig()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "dimensions",
			Aliases:     []string{"dims", "d"},
			Usage:       "embedding width",
			Value:       int64(d.Dimensions),
			Destination: &dimensions,
		},
		&cli.Int64Flag{
			Name:        "heads",
			Usage:       "attention heads (must divide the embedding width)",
			Value:       int64(d.Heads),
			Destination: &heads,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "projection seed for next-token logits",
			Value:       int64(d.Seed),
			Destination: &seed,
		},
		&cli.Int64Flag{
			Name:        "top-n",
			Aliases:     []string{"top_n"},
			Usage:       "candidates kept in the ranked distribution",
			Value:       int64(d.TopN),
			Destination: &topN,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"max_tokens"},
			Usage:       "maximum tokens per text",
			Value:       int64(d.MaxTokens),
			Destination: &maxTokens,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "strategy",
			Aliases:     []string{"s"},
			Usage:       "sampling strategy (greedy, random, top-k, temperature)",
			Value:       "greedy",
			Destination: &strategy,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature",
			Value:       1.0,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k", "topk", "k"},
			Usage:       "candidates considered by top-k sampling",
			Value:       logits.DefaultTopK,
			Destination: &topK,
		},
		&cli.Int64Flag{
			Name:        "sample-seed",
			Aliases:     []string{"sample_seed"},
			Usage:       "random seed for sampling (-1 = time based)",
			Value:       -1,
			Destination: &sampleSeed,
		},
	}
}

// setup loads the config file and installs the logger in the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return ctx, err
	}
	fileConfig = cfg
	applyLoggingConfig(cmd, cfg)

	level := logger.ParseLevel(strings.ToLower(logLevel))
	if debug {
		level = logger.ParseLevel("debug")
	}
	log := logger.New(os.Stderr, logFormat, level)
	return logger.WithContext(ctx, log), nil
}

func pipelineConfig() inference.Config {
	return inference.Config{
		Dimensions: int(dimensions),
		Heads:      int(heads),
		Seed:       int(seed),
		TopN:       int(topN),
		MaxTokens:  int(maxTokens),
	}
}

func newRunner(ctx context.Context) (*inference.Runner, error) {
	return inference.NewRunner(pipelineConfig(), vocab.Default(), logger.FromContext(ctx))
}

func samplerConfig() (logits.SamplerConfig, error) {
	s, err := logits.ParseStrategy(strategy)
	if err != nil {
		return logits.SamplerConfig{}, err
	}
	return logits.SamplerConfig{
		Seed:        sampleSeed,
		Strategy:    s,
		Temperature: temperature,
		TopK:        int(topK),
	}, nil
}

// inputText joins the positional arguments, or picks a demo text when demo
// is positive.
func inputText(cmd *cli.Command, demo int64) (string, error) {
	if demo > 0 {
		if int(demo) > len(vocab.DemoTexts) {
			return "", fmt.Errorf("demo %d out of range (1-%d)", demo, len(vocab.DemoTexts))
		}
		return vocab.DemoTexts[demo-1], nil
	}
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("text argument or --demo is required")
	}
	return text, nil
}

func demoFlag(dest *int64) cli.Flag {
	return &cli.Int64Flag{
		Name:        "demo",
		Usage:       fmt.Sprintf("use demo text N (1-%d) instead of an argument", len(vocab.DemoTexts)),
		Destination: dest,
	}
}
