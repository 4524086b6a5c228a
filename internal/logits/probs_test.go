package logits

import (
	"errors"
	"math"
	"testing"

	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/tokenizer"
	"github.com/samcharles93/explora/internal/vocab"
)

func TestComputeProbabilitiesSmallVocabulary(t *testing.T) {
	t.Parallel()

	emb := model.Embedding(10, 16)
	probs, err := ComputeProbabilities(emb, vocab.New([]string{"a", "b", "c", "d", "e"}, nil), DefaultSeed, "")
	if err != nil {
		t.Fatalf("ComputeProbabilities() error = %v", err)
	}
	if len(probs) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(probs))
	}
	if sum := Mass(probs); sum < 0.9999 || sum > 1.0001 {
		t.Fatalf("probabilities sum to %v", sum)
	}
	for i := 1; i < len(probs); i++ {
		if probs[i-1].Probability < probs[i].Probability {
			t.Fatalf("not sorted at %d: %v", i, probs)
		}
	}
	for _, p := range probs {
		if p.ID != tokenizer.HashToken(p.Token) {
			t.Fatalf("id mismatch for %q", p.Token)
		}
	}
}

func TestComputeProbabilitiesTruncatesToTopN(t *testing.T) {
	t.Parallel()

	v := vocab.Default()
	emb := model.Embedding(11, 16)
	probs, err := ComputeProbabilities(emb, v, DefaultSeed, "")
	if err != nil {
		t.Fatalf("ComputeProbabilities() error = %v", err)
	}
	if len(probs) != TopN {
		t.Fatalf("expected %d entries, got %d", TopN, len(probs))
	}
	for i := 1; i < len(probs); i++ {
		if probs[i-1].Probability < probs[i].Probability {
			t.Fatalf("not sorted at %d", i)
		}
	}

	dist, err := Distribution(emb, v, DefaultSeed, "")
	if err != nil {
		t.Fatalf("Distribution() error = %v", err)
	}
	if len(dist) != v.Len() {
		t.Fatalf("distribution has %d entries, want %d", len(dist), v.Len())
	}
	if sum := Mass(dist); math.Abs(sum-1) > 1e-4 {
		t.Fatalf("full distribution sums to %v", sum)
	}
	if top := Mass(probs); top > 1+1e-9 {
		t.Fatalf("top-N mass %v exceeds 1", top)
	}
}

func TestContextBiasBoostsContinuations(t *testing.T) {
	t.Parallel()

	v := vocab.Default()
	emb := model.Embedding(3, 16)
	plain, err := Distribution(emb, v, DefaultSeed, "")
	if err != nil {
		t.Fatal(err)
	}
	biased, err := Distribution(emb, v, DefaultSeed, "Los pájaros vuelan porque tienen alas")
	if err != nil {
		t.Fatal(err)
	}

	byToken := func(d []TokenProb, tok string) float64 {
		for _, p := range d {
			if p.Token == tok {
				return p.Probability
			}
		}
		t.Fatalf("token %q missing", tok)
		return 0
	}
	for _, tok := range []string{"fuertes", "ligeras", "grandes", "poderosas", "hermosas"} {
		if byToken(biased, tok) <= byToken(plain, tok) {
			t.Fatalf("expected %q to gain probability", tok)
		}
	}

	ranked := Rank(biased, TopN)
	boosted := 0
	for _, p := range ranked[:5] {
		switch p.Token {
		case "fuertes", "ligeras", "grandes", "poderosas", "hermosas":
			boosted++
		}
	}
	if boosted != 5 {
		t.Fatalf("expected the five continuations to lead the ranking, got %v", ranked[:5])
	}
}

func TestComputeProbabilitiesEmptyVocabulary(t *testing.T) {
	t.Parallel()

	_, err := ComputeProbabilities(model.Embedding(1, 16), vocab.Vocabulary{}, DefaultSeed, "")
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestLogitSeedChangesRanking(t *testing.T) {
	t.Parallel()

	emb := model.Embedding(21, 16)
	id := tokenizer.HashToken("casa")
	if Logit(emb, id, 1) == Logit(emb, id, 2) {
		t.Fatal("expected the seed to change the logit")
	}
	if Logit(nil, id, 1) != 0 {
		t.Fatal("empty vector must give a zero logit")
	}
}

func TestEntropy(t *testing.T) {
	t.Parallel()

	uniform := []TokenProb{{Probability: 0.25}, {Probability: 0.25}, {Probability: 0.25}, {Probability: 0.25}}
	if got := Entropy(uniform); math.Abs(got-math.Log(4)) > 1e-12 {
		t.Fatalf("Entropy(uniform) = %v, want %v", got, math.Log(4))
	}
	certain := []TokenProb{{Probability: 1}, {Probability: 0}}
	if got := Entropy(certain); got != 0 {
		t.Fatalf("Entropy(certain) = %v, want 0", got)
	}
}

func TestRankStableOnTies(t *testing.T) {
	t.Parallel()

	dist := []TokenProb{{Token: "x", Probability: 0.5}, {Token: "y", Probability: 0.5}, {Token: "z", Probability: 0}}
	ranked := Rank(dist, 0)
	if ranked[0].Token != "x" || ranked[1].Token != "y" || ranked[2].Token != "z" {
		t.Fatalf("Rank() = %v", ranked)
	}
	if dist[0].Token != "x" {
		t.Fatal("Rank mutated its input")
	}
}
