package inference

import (
	"slices"

	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/vocab"
)

// Stage records how far a snapshot has progressed through the pipeline.
type Stage int

const (
	StageInput Stage = iota
	StageTokens
	StageEmbeddings
	StageAttention
	StageProbabilities
)

func (s Stage) String() string {
	switch s {
	case StageTokens:
		return "tokens"
	case StageEmbeddings:
		return "embeddings"
	case StageAttention:
		return "attention"
	case StageProbabilities:
		return "probabilities"
	default:
		return "input"
	}
}

// Snapshot is the state of one pipeline run. Stage functions never modify a
// snapshot in place; they return a copy with the next stage filled in.
type Snapshot struct {
	// Prompt is the text the user submitted.
	Prompt string
	// Text is the full text processed, the prompt plus generated tokens.
	Text  string
	Stage Stage

	Tokens              []string
	TokenIDs            []int
	Embeddings          [][]float64
	PositionalEncodings [][]float64
	Combined            [][]float64

	Heads            []model.AttentionHead
	AttentionWeights [][]float64
	ContextVectors   [][]float64

	Probabilities []logits.TokenProb
	Entropy       float64

	// HeadCount and Seed are the attention and projection parameters last
	// used on this snapshot. Step carries them into the next run.
	HeadCount int
	Seed      int
	seeded    bool

	Vocabulary      vocab.Vocabulary
	GeneratedTokens []string
}

// LastVector returns the combined vector of the final position, or nil when
// there is none.
func (s *Snapshot) LastVector() []float64 {
	if len(s.Combined) == 0 {
		return nil
	}
	return s.Combined[len(s.Combined)-1]
}

// clone returns a shallow copy. Slices are shared with the original because
// stages only ever replace them wholesale.
func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.GeneratedTokens = slices.Clone(s.GeneratedTokens)
	return &c
}

// Stats summarises a generation run.
type Stats struct {
	TokensGenerated int
	Steps           int
}
