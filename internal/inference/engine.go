// Package inference runs the simulation pipeline stage by stage and drives
// autoregressive generation over it.
package inference

import (
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/tensor"
	"github.com/samcharles93/explora/internal/tokenizer"
	"github.com/samcharles93/explora/internal/vocab"
)

// DefaultMaxTokens caps the number of tokens a snapshot may hold.
const DefaultMaxTokens = 50

var (
	// ErrEmptyInput is returned when the text produces no tokens.
	ErrEmptyInput = errors.New("input has no tokens")
	// ErrTooManyTokens is returned when the text exceeds Config.MaxTokens.
	ErrTooManyTokens = errors.New("too many tokens")
	// ErrStageOrder is returned when a stage runs before its inputs exist.
	ErrStageOrder = errors.New("pipeline stage out of order")
)

// Config holds the pipeline parameters. Zero fields take their defaults.
type Config struct {
	Dimensions int
	Heads      int
	Seed       int
	TopN       int
	MaxTokens  int
}

// DefaultConfig returns the parameters used by the demonstration.
func DefaultConfig() Config {
	return Config{
		Dimensions: model.DefaultDimensions,
		Heads:      model.DefaultHeads,
		Seed:       logits.DefaultSeed,
		TopN:       logits.TopN,
		MaxTokens:  DefaultMaxTokens,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Dimensions <= 0 {
		c.Dimensions = d.Dimensions
	}
	if c.Heads <= 0 {
		c.Heads = d.Heads
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// Runner executes the pipeline with a fixed configuration and vocabulary.
// It holds no mutable state and is safe for concurrent use.
type Runner struct {
	cfg   Config
	vocab vocab.Vocabulary
	log   logger.Logger
}

// NewRunner validates cfg and returns a Runner. A nil log discards output.
func NewRunner(cfg Config, v vocab.Vocabulary, log logger.Logger) (*Runner, error) {
	cfg = cfg.withDefaults()
	if cfg.Dimensions%cfg.Heads != 0 {
		return nil, fmt.Errorf("new runner: %w (%d dims, %d heads)", model.ErrHeadSplit, cfg.Dimensions, cfg.Heads)
	}
	if v.Len() == 0 {
		return nil, fmt.Errorf("new runner: %w", logits.ErrEmptyVocabulary)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{cfg: cfg, vocab: v, log: log.With("component", "runner")}, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Vocabulary returns the vocabulary used for fresh snapshots.
func (r *Runner) Vocabulary() vocab.Vocabulary {
	return r.vocab
}

// Start returns an input-stage snapshot for text. No work is done yet.
func (r *Runner) Start(text string) *Snapshot {
	return &Snapshot{Prompt: text, Text: text, Stage: StageInput}
}

// CountTokens returns how many tokens text produces.
func (r *Runner) CountTokens(text string) int {
	return len(tokenizer.Tokenize(text))
}

// CheckText reports whether text can be processed.
func (r *Runner) CheckText(text string) error {
	n := r.CountTokens(text)
	if n == 0 {
		return ErrEmptyInput
	}
	if n > r.cfg.MaxTokens {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTokens, n, r.cfg.MaxTokens)
	}
	return nil
}

// Tokenize splits the snapshot text and hashes every token.
func (r *Runner) Tokenize(s *Snapshot) (*Snapshot, error) {
	tokens := tokenizer.Tokenize(s.Text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("tokenize: %w", ErrEmptyInput)
	}
	if len(tokens) > r.cfg.MaxTokens {
		return nil, fmt.Errorf("tokenize: %w: %d > %d", ErrTooManyTokens, len(tokens), r.cfg.MaxTokens)
	}
	out := s.clone()
	out.Tokens = tokens
	out.TokenIDs = tokenizer.HashAll(tokens)
	out.Stage = StageTokens
	return out, nil
}

// Embed computes embeddings, positional encodings and their sums.
func (r *Runner) Embed(s *Snapshot) (*Snapshot, error) {
	if s.Stage < StageTokens {
		return nil, fmt.Errorf("embed: %w: stage %s", ErrStageOrder, s.Stage)
	}
	dims := r.cfg.Dimensions
	n := len(s.TokenIDs)
	out := s.clone()
	out.Embeddings = make([][]float64, n)
	out.PositionalEncodings = make([][]float64, n)
	out.Combined = make([][]float64, n)
	for pos, id := range s.TokenIDs {
		emb := model.Embedding(id, dims)
		pe := model.PositionalEncoding(pos, dims)
		sum, err := tensor.AddVectors(emb, pe)
		if err != nil {
			return nil, fmt.Errorf("embed position %d: %w", pos, err)
		}
		out.Embeddings[pos] = emb
		out.PositionalEncodings[pos] = pe
		out.Combined[pos] = sum
	}
	out.Stage = StageEmbeddings
	return out, nil
}

// Attend runs multi-head causal attention over the combined vectors.
func (r *Runner) Attend(s *Snapshot) (*Snapshot, error) {
	return r.AttendHeads(s, r.cfg.Heads)
}

// AttendHeads is Attend with an explicit head count.
func (r *Runner) AttendHeads(s *Snapshot, heads int) (*Snapshot, error) {
	if s.Stage < StageEmbeddings {
		return nil, fmt.Errorf("attend: %w: stage %s", ErrStageOrder, s.Stage)
	}
	res, err := model.MultiHeadAttention(s.Combined, heads, r.cfg.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("attend: %w", err)
	}
	out := s.clone()
	out.Heads = res.Heads
	out.AttentionWeights = res.Combined
	out.ContextVectors = res.Context
	out.HeadCount = heads
	if out.Stage < StageAttention {
		out.Stage = StageAttention
	}
	return out, nil
}

// Predict ranks the vocabulary against the last combined vector. The
// snapshot's own vocabulary is reused when it has one.
func (r *Runner) Predict(s *Snapshot) (*Snapshot, error) {
	return r.PredictSeed(s, r.cfg.Seed)
}

// PredictSeed is Predict with an explicit projection seed.
func (r *Runner) PredictSeed(s *Snapshot, seed int) (*Snapshot, error) {
	if s.Stage < StageEmbeddings {
		return nil, fmt.Errorf("predict: %w: stage %s", ErrStageOrder, s.Stage)
	}
	v := s.Vocabulary
	if v.Len() == 0 {
		v = r.vocab
	}
	dist, err := logits.Distribution(s.LastVector(), v, seed, s.Text)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	out := s.clone()
	out.Vocabulary = v
	out.Probabilities = logits.Rank(dist, r.cfg.TopN)
	out.Entropy = logits.Entropy(dist)
	out.Seed, out.seeded = seed, true
	if out.Stage < StageProbabilities {
		out.Stage = StageProbabilities
	}
	return out, nil
}

// Run processes text from scratch through every stage.
func (r *Runner) Run(text string) (*Snapshot, error) {
	return r.run(r.Start(text))
}

// Step recomputes the whole pipeline over text, reusing the prior snapshot's
// vocabulary, head count, seed and generated tokens. It never updates
// incrementally: attention is recomputed over the complete context.
func (r *Runner) Step(prior *Snapshot, text string) (*Snapshot, error) {
	s := &Snapshot{
		Prompt:          prior.Prompt,
		Text:            text,
		Stage:           StageInput,
		Vocabulary:      prior.Vocabulary,
		GeneratedTokens: prior.GeneratedTokens,
		HeadCount:       prior.HeadCount,
		Seed:            prior.Seed,
		seeded:          prior.seeded,
	}
	if s.Prompt == "" {
		s.Prompt = text
	}
	return r.run(s)
}

func (r *Runner) run(s *Snapshot) (*Snapshot, error) {
	start := time.Now()
	heads, seed := r.cfg.Heads, r.cfg.Seed
	if s.HeadCount > 0 {
		heads = s.HeadCount
	}
	if s.seeded {
		seed = s.Seed
	}
	attend := func(s *Snapshot) (*Snapshot, error) { return r.AttendHeads(s, heads) }
	predict := func(s *Snapshot) (*Snapshot, error) { return r.PredictSeed(s, seed) }
	var err error
	for _, stage := range []func(*Snapshot) (*Snapshot, error){r.Tokenize, r.Embed, attend, predict} {
		if s, err = stage(s); err != nil {
			return nil, err
		}
	}
	r.log.Debug("pipeline complete",
		"tokens", len(s.Tokens),
		"heads", len(s.Heads),
		"top", topToken(s),
		"elapsed", time.Since(start),
	)
	return s, nil
}

func topToken(s *Snapshot) string {
	if len(s.Probabilities) == 0 {
		return ""
	}
	return s.Probabilities[0].Token
}
