package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/api"
	"github.com/samcharles93/explora/internal/vocab"
)

func vocabCmd() *cli.Command {
	var (
		showRules bool
		showDemos bool
		asJSON    bool
	)

	return &cli.Command{
		Name:  "vocab",
		Usage: "List the vocabulary, context rules and demo texts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "rules",
				Usage:       "also list the context rules",
				Destination: &showRules,
			},
			&cli.BoolFlag{
				Name:        "demos",
				Usage:       "also list the demo texts",
				Destination: &showDemos,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the vocabulary as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			v := vocab.Default()
			if asJSON {
				enc := gojson.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(api.NewVocabularyResp(v))
			}

			w := os.Stdout
			fmt.Fprintf(w, "%d tokens\n", v.Len())
			for i, tok := range v.Tokens() {
				fmt.Fprintf(w, "%4d  %s\n", i, tok)
			}
			if showRules {
				fmt.Fprintf(w, "\n%d context rules\n", len(v.Rules()))
				for _, r := range v.Rules() {
					fmt.Fprintf(w, "  %-22s → %s\n", r.Key, strings.Join(r.Continuations, ", "))
				}
			}
			if showDemos {
				fmt.Fprintln(w, "\ndemo texts")
				for i, t := range vocab.DemoTexts {
					fmt.Fprintf(w, "  %2d. %s\n", i+1, t)
				}
			}
			return nil
		},
	}
}
