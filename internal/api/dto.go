package api

import (
	"math"
	"time"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/model"
	"github.com/samcharles93/explora/internal/session"
	"github.com/samcharles93/explora/internal/tokenizer"
	"github.com/samcharles93/explora/internal/usage"
	"github.com/samcharles93/explora/internal/vocab"
)

// HeadDTO is one attention head. Masked scores are encoded as null.
type HeadDTO struct {
	Index   int          `json:"index"`
	Scores  [][]*float64 `json:"scores"`
	Weights [][]float64  `json:"weights"`
}

// SnapshotDTO is the wire form of an inference.Snapshot.
type SnapshotDTO struct {
	Prompt              string             `json:"prompt"`
	Text                string             `json:"text"`
	Stage               string             `json:"stage"`
	Tokens              []string           `json:"tokens"`
	TokenIDs            []int              `json:"token_ids"`
	Embeddings          [][]float64        `json:"embeddings,omitempty"`
	PositionalEncodings [][]float64        `json:"positional_encodings,omitempty"`
	Combined            [][]float64        `json:"combined_embeddings,omitempty"`
	Heads               []HeadDTO          `json:"attention_heads,omitempty"`
	AttentionWeights    [][]float64        `json:"attention_weights,omitempty"`
	ContextVectors      [][]float64        `json:"context_vectors,omitempty"`
	Probabilities       []logits.TokenProb `json:"probabilities,omitempty"`
	Entropy             float64            `json:"entropy,omitempty"`
	VocabularySize      int                `json:"vocabulary_size,omitempty"`
	GeneratedTokens     []string           `json:"generated_tokens"`
}

// SessionDTO is the wire form of a stored session.
type SessionDTO struct {
	ID              string       `json:"id"`
	Object          string       `json:"object"`
	CreatedAt       int64        `json:"created_at"`
	Step            int          `json:"step"`
	InputText       string       `json:"input_text"`
	ExplanationMode bool         `json:"explanation_mode"`
	Snapshot        *SnapshotDTO `json:"snapshot"`
}

type DeleteSessionResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type CreateSessionReq struct {
	Text string `json:"text"`
	// Full runs every stage immediately instead of stopping at the input.
	Full *bool `json:"full,omitempty"`
}

// AnalyzeReq runs the pipeline once. A missing seed uses the server
// default; an explicit 0 is honoured.
type AnalyzeReq struct {
	Text  string `json:"text"`
	Heads int    `json:"heads,omitempty"`
	Seed  *int   `json:"seed,omitempty"`
}

// ActionReq is a reducer action in wire form. Type selects the action and
// the remaining fields are read only by the actions that use them.
type ActionReq struct {
	Type        string  `json:"type"`
	Text        string  `json:"text,omitempty"`
	Step        *int    `json:"step,omitempty"`
	Heads       int     `json:"heads,omitempty"`
	Seed        *int    `json:"seed,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	K           int     `json:"k,omitempty"`
}

// GenerateReq drives several generation steps. Zero fields take the server
// defaults.
type GenerateReq struct {
	Steps       int      `json:"steps"`
	Strategy    string   `json:"strategy,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	K           int      `json:"k,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	// Stream switches the response to server-sent events.
	Stream      bool     `json:"stream,omitempty"`
}

type GenerateResp struct {
	Session         SessionDTO `json:"session"`
	Tokens          []string   `json:"tokens"`
	TokensGenerated int        `json:"tokens_generated"`
	Steps           int        `json:"steps"`
}

type VocabularyEntry struct {
	Token string `json:"token"`
	ID    int    `json:"id"`
}

type VocabularyResp struct {
	Object string            `json:"object"`
	Data   []VocabularyEntry `json:"data"`
	Rules  []RuleDTO         `json:"rules"`
}

type RuleDTO struct {
	Key           string   `json:"key"`
	Continuations []string `json:"continuations"`
}

// NewVocabularyResp lists v with the ids its tokens hash to.
func NewVocabularyResp(v vocab.Vocabulary) VocabularyResp {
	out := VocabularyResp{
		Object: "list",
		Data:   make([]VocabularyEntry, 0, v.Len()),
		Rules:  []RuleDTO{},
	}
	for _, tok := range v.Tokens() {
		out.Data = append(out.Data, VocabularyEntry{Token: tok, ID: tokenizer.HashToken(tok)})
	}
	for _, r := range v.Rules() {
		out.Rules = append(out.Rules, RuleDTO{Key: r.Key, Continuations: r.Continuations})
	}
	return out
}

type UsageReq struct {
	DemoUsed       string `json:"demo_used"`
	StepsCompleted int    `json:"steps_completed"`
	SessionID      string `json:"session_id,omitempty"`
}

type UsageResp struct {
	Success   bool        `json:"success"`
	Entry     usage.Entry `json:"entry"`
	TotalLogs int         `json:"total_logs"`
}

// NewSnapshotDTO converts s to its wire form. It returns nil for a nil
// snapshot.
func NewSnapshotDTO(s *inference.Snapshot) *SnapshotDTO {
	if s == nil {
		return nil
	}
	out := &SnapshotDTO{
		Prompt:              s.Prompt,
		Text:                s.Text,
		Stage:               s.Stage.String(),
		Tokens:              nonNil(s.Tokens),
		TokenIDs:            nonNil(s.TokenIDs),
		Embeddings:          s.Embeddings,
		PositionalEncodings: s.PositionalEncodings,
		Combined:            s.Combined,
		AttentionWeights:    s.AttentionWeights,
		ContextVectors:      s.ContextVectors,
		Probabilities:       s.Probabilities,
		Entropy:             s.Entropy,
		VocabularySize:      s.Vocabulary.Len(),
		GeneratedTokens:     nonNil(s.GeneratedTokens),
	}
	if len(s.Heads) > 0 {
		out.Heads = make([]HeadDTO, len(s.Heads))
		for i, h := range s.Heads {
			out.Heads[i] = headDTO(h)
		}
	}
	return out
}

func headDTO(h model.AttentionHead) HeadDTO {
	scores := make([][]*float64, len(h.Scores))
	for i, row := range h.Scores {
		scores[i] = make([]*float64, len(row))
		for j, v := range row {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			scores[i][j] = &v
		}
	}
	return HeadDTO{Index: h.Index, Scores: scores, Weights: h.Weights}
}

func sessionDTO(id string, createdAt time.Time, st session.State) SessionDTO {
	return SessionDTO{
		ID:              id,
		Object:          "session",
		CreatedAt:       createdAt.Unix(),
		Step:            st.Step,
		InputText:       st.InputText,
		ExplanationMode: st.ExplanationMode,
		Snapshot:        NewSnapshotDTO(st.Snapshot),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// toAction converts the wire form into a session action.
func (r ActionReq) toAction() (session.Action, error) {
	switch r.Type {
	case "start":
		return session.Start{Text: r.Text}, nil
	case "set_step":
		if r.Step == nil {
			return nil, newInvalidRequest("set_step requires step")
		}
		return session.SetStep{Step: *r.Step}, nil
	case "restart":
		return session.Restart{}, nil
	case "toggle_explanation":
		return session.ToggleExplanation{}, nil
	case "compute_tokens":
		return session.ComputeTokens{}, nil
	case "compute_embeddings":
		return session.ComputeEmbeddings{}, nil
	case "compute_attention":
		return session.ComputeAttention{Heads: r.Heads}, nil
	case "compute_probabilities":
		return session.ComputeProbabilities{Seed: r.Seed}, nil
	case "generate_next":
		strategy, err := logits.ParseStrategy(r.Strategy)
		if err != nil {
			return nil, newInvalidRequest(err.Error())
		}
		return session.GenerateNext{Strategy: strategy, Temperature: r.Temperature, K: r.K}, nil
	case "":
		return nil, newInvalidRequest("action type is required")
	default:
		return nil, newInvalidRequest("unknown action type " + r.Type)
	}
}
