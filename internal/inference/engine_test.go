package inference

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/vocab"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, vocab.Default(), nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func TestRunProducesCompleteSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	snap, err := r.Run("Los pájaros vuelan porque tienen alas")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if snap.Stage != StageProbabilities {
		t.Fatalf("stage = %s", snap.Stage)
	}
	n := len(snap.Tokens)
	if n != 6 || len(snap.TokenIDs) != n || len(snap.Embeddings) != n ||
		len(snap.PositionalEncodings) != n || len(snap.Combined) != n {
		t.Fatalf("inconsistent lengths: %d tokens", n)
	}
	for i := range snap.Combined {
		for _, v := range [][]float64{snap.Embeddings[i], snap.PositionalEncodings[i], snap.Combined[i]} {
			if len(v) != model.DefaultDimensions {
				t.Fatalf("position %d has width %d", i, len(v))
			}
		}
	}
	if len(snap.Heads) != model.DefaultHeads {
		t.Fatalf("heads = %d", len(snap.Heads))
	}
	if len(snap.AttentionWeights) != n || len(snap.ContextVectors) != n {
		t.Fatal("attention outputs have the wrong shape")
	}
	if len(snap.Probabilities) != logits.TopN {
		t.Fatalf("probabilities = %d", len(snap.Probabilities))
	}
	if snap.Vocabulary.Len() == 0 {
		t.Fatal("vocabulary not attached")
	}
	if snap.Entropy <= 0 || snap.Entropy > math.Log(float64(snap.Vocabulary.Len()))+1e-9 {
		t.Fatalf("entropy = %v out of range", snap.Entropy)
	}
	// The context rule for this sentence pushes its continuations to the top.
	if top := snap.Probabilities[0].Token; !strings.Contains("fuertes ligeras grandes poderosas hermosas", top) {
		t.Fatalf("top token %q is not a rule continuation", top)
	}
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	a, err := r.Run("hola mundo")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Run("hola mundo")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Probabilities, b.Probabilities) || !reflect.DeepEqual(a.AttentionWeights, b.AttentionWeights) {
		t.Fatal("Run() is not deterministic")
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{MaxTokens: 3})
	if _, err := r.Run("   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := r.Run("uno dos tres cuatro"); !errors.Is(err, ErrTooManyTokens) {
		t.Fatalf("expected ErrTooManyTokens, got %v", err)
	}
	if err := r.CheckText("uno dos"); err != nil {
		t.Fatalf("CheckText() error = %v", err)
	}
}

func TestNewRunnerValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewRunner(Config{Dimensions: 10, Heads: 4}, vocab.Default(), nil); !errors.Is(err, model.ErrHeadSplit) {
		t.Fatalf("expected ErrHeadSplit, got %v", err)
	}
	if _, err := NewRunner(Config{}, vocab.Vocabulary{}, nil); !errors.Is(err, logits.ErrEmptyVocabulary) {
		t.Fatalf("expected ErrEmptyVocabulary, got %v", err)
	}
	r := newTestRunner(t, Config{})
	if r.Config() != DefaultConfig() {
		t.Fatalf("Config() = %+v, want defaults", r.Config())
	}
}

func TestStagesAreAdditiveAndOrdered(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	start := r.Start("a b c")
	if _, err := r.Embed(start); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("expected ErrStageOrder, got %v", err)
	}

	toks, err := r.Tokenize(start)
	if err != nil {
		t.Fatal(err)
	}
	if start.Tokens != nil || start.Stage != StageInput {
		t.Fatal("Tokenize modified its input")
	}
	if _, err := r.Attend(toks); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("expected ErrStageOrder, got %v", err)
	}

	emb, err := r.Embed(toks)
	if err != nil {
		t.Fatal(err)
	}
	// Probabilities only need embeddings, so attention may be skipped.
	pred, err := r.Predict(emb)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Heads != nil || len(pred.Probabilities) == 0 {
		t.Fatal("unexpected snapshot after predict")
	}
	att, err := r.Attend(pred)
	if err != nil {
		t.Fatal(err)
	}
	if att.Stage != StageProbabilities || len(att.Probabilities) == 0 {
		t.Fatalf("attention after predict lost data: stage %s", att.Stage)
	}
	again, err := r.AttendHeads(att, 2)
	if err != nil {
		t.Fatal(err)
	}
	if again.Stage != StageProbabilities || len(again.Heads) != 2 {
		t.Fatalf("recomputed attention: stage %s heads %d", again.Stage, len(again.Heads))
	}
}

func TestStepKeepsHeadCountAndSeed(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	snap, err := r.Run("el gato come")
	if err != nil {
		t.Fatal(err)
	}
	if snap, err = r.AttendHeads(snap, 2); err != nil {
		t.Fatal(err)
	}
	if snap, err = r.PredictSeed(snap, 0); err != nil {
		t.Fatal(err)
	}

	next, err := r.Step(snap, "el gato come pescado")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(next.Heads) != 2 || next.HeadCount != 2 {
		t.Fatalf("heads = %d, want 2", len(next.Heads))
	}
	if next.Seed != 0 {
		t.Fatalf("seed = %d, want 0", next.Seed)
	}

	direct, err := r.Run("el gato come pescado")
	if err != nil {
		t.Fatal(err)
	}
	if direct, err = r.PredictSeed(direct, 0); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(next.Probabilities, direct.Probabilities) {
		t.Fatal("Step did not reuse seed 0")
	}
}

func TestStepReusesVocabularyAndCarriesGenerated(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	prior, err := r.Run("el perro")
	if err != nil {
		t.Fatal(err)
	}
	custom := vocab.New([]string{"ladra", "corre", "duerme"}, nil)
	prior.Vocabulary = custom
	prior.GeneratedTokens = []string{"grande"}

	next, err := r.Step(prior, "el perro grande")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if next.Prompt != "el perro" || next.Text != "el perro grande" {
		t.Fatalf("prompt/text = %q/%q", next.Prompt, next.Text)
	}
	if !reflect.DeepEqual(next.GeneratedTokens, []string{"grande"}) {
		t.Fatalf("generated = %v", next.GeneratedTokens)
	}
	if len(next.Probabilities) != 3 {
		t.Fatalf("expected the prior's 3-token vocabulary to be reused, got %d entries", len(next.Probabilities))
	}
	if len(next.Tokens) != 3 {
		t.Fatalf("expected full recomputation over 3 tokens, got %d", len(next.Tokens))
	}

	next.GeneratedTokens[0] = "mutated"
	if prior.GeneratedTokens[0] != "grande" {
		t.Fatal("Step shares generated tokens with the prior snapshot")
	}
}

func TestGenerateGreedyAppendsTokens(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	prior, err := r.Run("la casa")
	if err != nil {
		t.Fatal(err)
	}
	g := &Generator{Runner: r, Sampler: logits.NewSampler(logits.SamplerConfig{Strategy: logits.Greedy})}

	var seen []string
	snap, stats, err := g.Generate(context.Background(), prior, 3, func(step int, tok string, s *Snapshot) error {
		if step != len(seen) {
			t.Errorf("step = %d, want %d", step, len(seen))
		}
		seen = append(seen, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if stats.TokensGenerated != 3 || !reflect.DeepEqual(snap.GeneratedTokens, seen) {
		t.Fatalf("stats=%+v generated=%v seen=%v", stats, snap.GeneratedTokens, seen)
	}
	if want := "la casa " + strings.Join(seen, " "); snap.Text != want {
		t.Fatalf("text = %q, want %q", snap.Text, want)
	}
	if seen[0] != prior.Probabilities[0].Token {
		t.Fatalf("greedy picked %q, want %q", seen[0], prior.Probabilities[0].Token)
	}
	if len(snap.Tokens) != 5 {
		t.Fatalf("expected 5 tokens after generation, got %d", len(snap.Tokens))
	}
	if len(prior.GeneratedTokens) != 0 {
		t.Fatal("Generate mutated the prior snapshot")
	}
}

func TestGenerateStopsAtTokenBudget(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{MaxTokens: 4})
	prior, err := r.Run("uno dos")
	if err != nil {
		t.Fatal(err)
	}
	g := &Generator{Runner: r, Sampler: logits.NewSampler(logits.SamplerConfig{Seed: 1, Strategy: logits.Random})}
	snap, stats, err := g.Generate(context.Background(), prior, 10, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if stats.TokensGenerated != 2 || len(snap.Tokens) != 4 {
		t.Fatalf("generated %d tokens, snapshot has %d", stats.TokensGenerated, len(snap.Tokens))
	}

	if _, _, err := g.Next(context.Background(), snap); !errors.Is(err, ErrTooManyTokens) {
		t.Fatalf("expected ErrTooManyTokens from Next at the budget, got %v", err)
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	prior, err := r.Run("hola")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Generator{Runner: r, Sampler: logits.NewSampler(logits.SamplerConfig{})}
	_, stats, err := g.Generate(ctx, prior, 10, func(int, string, *Snapshot) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.TokensGenerated != 1 {
		t.Fatalf("generated %d tokens before cancellation", stats.TokensGenerated)
	}
}

func TestGenerateFromUnfinishedSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	g := &Generator{Runner: r, Sampler: logits.NewSampler(logits.SamplerConfig{})}
	snap, tok, err := g.Next(context.Background(), r.Start("buenos días"))
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok == "" || snap.GeneratedTokens[0] != tok || snap.Prompt != "buenos días" {
		t.Fatalf("unexpected result: token %q snapshot %+v", tok, snap.GeneratedTokens)
	}
}
