package logits

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/samcharles93/explora/internal/tensor"
	"github.com/samcharles93/explora/internal/tokenizer"
	"github.com/samcharles93/explora/internal/vocab"
)

const (
	// TopN is the number of ranked candidates returned to callers.
	TopN = 10
	// DefaultSeed mixes into every logit projection.
	DefaultSeed = 42
)

// ErrEmptyVocabulary is returned when probabilities are requested over an
// empty vocabulary.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// TokenProb is one vocabulary candidate with its probability and hashed id.
type TokenProb struct {
	Token       string  `json:"token"`
	Probability float64 `json:"probability"`
	ID          int     `json:"id"`
}

// Logit projects the context vector onto a candidate token id.
func Logit(vector []float64, tokenID, seed int) float64 {
	var logit float64
	base := float64(tokenID + seed)
	for i, v := range vector {
		logit += v * math.Sin(base*float64(i+1)) * 0.1
	}
	return logit
}

// Distribution returns the softmax distribution over every vocabulary token,
// in vocabulary order. Tokens preferred by the vocabulary's context rules for
// contextText receive vocab.ContextBias on their logit.
func Distribution(last []float64, v vocab.Vocabulary, seed int, contextText string) ([]TokenProb, error) {
	n := v.Len()
	if n == 0 {
		return nil, fmt.Errorf("compute probabilities: %w", ErrEmptyVocabulary)
	}

	preferred := v.Preferred(contextText)
	raw := make([]float64, n)
	out := make([]TokenProb, n)
	for i := range n {
		tok := v.Token(i)
		id := tokenizer.HashToken(tok)
		logit := Logit(last, id, seed)
		if slices.Contains(preferred, tok) {
			logit += vocab.ContextBias
		}
		raw[i] = logit
		out[i] = TokenProb{Token: tok, ID: id}
	}

	probs := tensor.Softmax(raw)
	for i := range out {
		out[i].Probability = probs[i]
	}
	return out, nil
}

// Rank sorts a distribution by descending probability, keeping vocabulary
// order between equal probabilities, and truncates it to limit entries.
func Rank(dist []TokenProb, limit int) []TokenProb {
	ranked := slices.Clone(dist)
	slices.SortStableFunc(ranked, func(a, b TokenProb) int {
		return cmp.Compare(b.Probability, a.Probability)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ComputeProbabilities returns the TopN most likely next tokens.
func ComputeProbabilities(last []float64, v vocab.Vocabulary, seed int, contextText string) ([]TokenProb, error) {
	dist, err := Distribution(last, v, seed, contextText)
	if err != nil {
		return nil, err
	}
	return Rank(dist, TopN), nil
}

// Entropy returns the Shannon entropy of the distribution in nats.
func Entropy(dist []TokenProb) float64 {
	p := make([]float64, len(dist))
	for i, d := range dist {
		p[i] = d.Probability
	}
	return stat.Entropy(p)
}

// Mass returns the total probability held by probs.
func Mass(probs []TokenProb) float64 {
	var sum float64
	for _, p := range probs {
		sum += p.Probability
	}
	return sum
}
