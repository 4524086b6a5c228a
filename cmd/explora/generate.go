package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/render"
)

func generateCmd() *cli.Command {
	var (
		steps   int64
		demo    int64
		asJSON  bool
		verbose bool
	)

	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Generate tokens autoregressively from a text",
		ArgsUsage: "TEXT",
		Flags: append(append(pipelineFlags(), samplingFlags()...),
			demoFlag(&demo),
			&cli.Int64Flag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Usage:       "number of tokens to generate",
				Value:       5,
				Destination: &steps,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the final snapshot as JSON",
				Destination: &asJSON,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "show the candidate distribution after every token",
				Destination: &verbose,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyPipelineConfig(cmd, fileConfig)
			applySamplingConfig(cmd, fileConfig)

			text, err := inputText(cmd, demo)
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}
			scfg, err := samplerConfig()
			if err != nil {
				return err
			}
			gen := &inference.Generator{Runner: runner, Sampler: logits.NewSampler(scfg)}

			prior, err := runner.Run(text)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			out := render.New(os.Stdout, render.Options{})
			var fn inference.StepFunc
			if !asJSON {
				fmt.Print(text)
				fn = func(_ int, tok string, snap *inference.Snapshot) error {
					if verbose {
						fmt.Println()
						if err := out.Probabilities(snap); err != nil {
							return err
						}
						fmt.Print(snap.Text)
						return nil
					}
					return out.Token(tok)
				}
			}

			snap, stats, err := gen.Generate(ctx, prior, int(steps), fn)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			log.Debug("generation complete",
				"strategy", scfg.Strategy,
				"tokens", stats.TokensGenerated,
				"steps", stats.Steps,
			)
			if asJSON {
				return writeSnapshotJSON(os.Stdout, snap)
			}
			fmt.Println()
			if stats.TokensGenerated < int(steps) {
				log.Info("stopped early", "generated", stats.TokensGenerated, "max_tokens", runner.Config().MaxTokens)
			}
			return nil
		},
	}
}
