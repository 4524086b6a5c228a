package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/explora/internal/logits"
)

// StepFunc is called after every generated token with the new snapshot.
// Returning an error stops generation.
type StepFunc func(step int, token string, snap *Snapshot) error

// Generator drives autoregressive generation: sample a token, append it to
// the text and recompute the whole pipeline.
type Generator struct {
	Runner  *Runner
	Sampler *logits.Sampler
}

// Next generates exactly one token.
func (g *Generator) Next(ctx context.Context, prior *Snapshot) (*Snapshot, string, error) {
	var token string
	snap, _, err := g.Generate(ctx, prior, 1, func(_ int, tok string, _ *Snapshot) error {
		token = tok
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if token == "" {
		return nil, "", fmt.Errorf("generate: %w", ErrTooManyTokens)
	}
	return snap, token, nil
}

// Generate appends up to steps tokens to prior. It stops early, without
// error, when the next text would exceed the token budget. Cancellation is
// checked between steps.
func (g *Generator) Generate(ctx context.Context, prior *Snapshot, steps int, fn StepFunc) (*Snapshot, Stats, error) {
	var stats Stats
	cur := prior
	if cur.Stage < StageProbabilities {
		next, err := g.Runner.Step(cur, cur.Text)
		if err != nil {
			return nil, stats, err
		}
		cur = next
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return cur, stats, err
		}
		stats.Steps++

		token := g.Sampler.Sample(cur.Probabilities)
		if token == "" {
			break
		}
		next, err := g.Runner.Step(cur, cur.Text+" "+token)
		if errors.Is(err, ErrTooManyTokens) {
			g.Runner.log.Debug("token budget reached", "generated", stats.TokensGenerated)
			break
		}
		if err != nil {
			return cur, stats, fmt.Errorf("generation step %d: %w", i, err)
		}
		next.GeneratedTokens = append(next.GeneratedTokens, token)
		cur = next
		stats.TokensGenerated++

		if fn != nil {
			if err := fn(i, token, cur); err != nil {
				return cur, stats, err
			}
		}
	}
	return cur, stats, nil
}
