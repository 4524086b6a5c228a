package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/api"
	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/render"
)

func runCmd() *cli.Command {
	var (
		asJSON  bool
		demo    int64
		maxDims int64
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Run the pipeline over a text and show every stage",
		ArgsUsage: "TEXT",
		Flags: append(pipelineFlags(),
			demoFlag(&demo),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the snapshot as JSON",
				Destination: &asJSON,
			},
			&cli.Int64Flag{
				Name:        "show-dims",
				Usage:       "embedding dimensions to print",
				Value:       8,
				Destination: &maxDims,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyPipelineConfig(cmd, fileConfig)

			text, err := inputText(cmd, demo)
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			snap, err := runner.Run(text)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			log.Debug("run complete", "tokens", len(snap.Tokens), "elapsed", time.Since(start))

			if asJSON {
				return writeSnapshotJSON(os.Stdout, snap)
			}
			return render.New(os.Stdout, render.Options{MaxDims: int(maxDims)}).Snapshot(snap)
		},
	}
}

// writeSnapshotJSON writes the wire form of snap, with masked attention
// scores as null.
func writeSnapshotJSON(w io.Writer, snap *inference.Snapshot) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewSnapshotDTO(snap))
}
