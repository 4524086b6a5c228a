// Package session holds the walkthrough state of one exploration and the
// reducer that advances it.
package session

import (
	"errors"
	"fmt"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
)

// Walkthrough steps shown to the user.
const (
	StepInput = iota
	StepTokens
	StepEmbeddings
	StepAttention
	StepProbabilities
	StepGeneration
)

// MaxStep is the last valid step number.
const MaxStep = StepGeneration

// ErrInvalidTransition is returned when an action is applied to a state that
// cannot accept it.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is the value a session reduces over.
type State struct {
	Step            int
	InputText       string
	ExplanationMode bool
	// Snapshot is nil until the first Start.
	Snapshot *inference.Snapshot
}

// Initial returns the state of a fresh session.
func Initial() State {
	return State{ExplanationMode: true}
}

// Action is one state transition. The set of actions is closed.
type Action interface {
	Name() string
	isAction()
}

type (
	// Start begins a new exploration of Text.
	Start struct{ Text string }
	// SetStep moves the walkthrough to Step.
	SetStep struct{ Step int }
	// Restart returns to the initial state, keeping the explanation mode.
	Restart struct{}
	// ToggleExplanation flips the explanation mode.
	ToggleExplanation struct{}
	// ComputeTokens tokenizes the input text.
	ComputeTokens struct{}
	// ComputeEmbeddings builds embeddings and positional encodings.
	ComputeEmbeddings struct{}
	// ComputeAttention runs attention with Heads heads; zero uses the
	// runner's configuration.
	ComputeAttention struct{ Heads int }
	// ComputeProbabilities ranks the vocabulary; a nil Seed uses the
	// runner's configuration. Zero is a valid seed.
	ComputeProbabilities struct{ Seed *int }
	// GenerateNext samples one token and recomputes the pipeline.
	GenerateNext struct {
		Strategy    logits.Strategy
		Temperature float64
		K           int
	}
)

func (Start) Name() string                { return "start" }
func (SetStep) Name() string              { return "set_step" }
func (Restart) Name() string              { return "restart" }
func (ToggleExplanation) Name() string    { return "toggle_explanation" }
func (ComputeTokens) Name() string        { return "compute_tokens" }
func (ComputeEmbeddings) Name() string    { return "compute_embeddings" }
func (ComputeAttention) Name() string     { return "compute_attention" }
func (ComputeProbabilities) Name() string { return "compute_probabilities" }
func (GenerateNext) Name() string         { return "generate_next" }

func (Start) isAction()                {}
func (SetStep) isAction()              {}
func (Restart) isAction()              {}
func (ToggleExplanation) isAction()    {}
func (ComputeTokens) isAction()        {}
func (ComputeEmbeddings) isAction()    {}
func (ComputeAttention) isAction()     {}
func (ComputeProbabilities) isAction() {}
func (GenerateNext) isAction()         {}

// Machine applies actions using a pipeline runner and a sampler. The sampler
// is the only stateful part, so a Machine must not be shared between
// goroutines without external locking.
type Machine struct {
	runner  *inference.Runner
	sampler *logits.Sampler
}

// NewMachine returns a Machine. A nil sampler draws greedily.
func NewMachine(runner *inference.Runner, sampler *logits.Sampler) *Machine {
	if sampler == nil {
		sampler = logits.NewSampler(logits.SamplerConfig{})
	}
	return &Machine{runner: runner, sampler: sampler}
}

// Reduce returns the state that results from applying a to s. On error the
// returned state is s unchanged.
func (m *Machine) Reduce(s State, a Action) (State, error) {
	next, err := m.reduce(s, a)
	if err != nil {
		return s, fmt.Errorf("%s: %w", a.Name(), err)
	}
	return next, nil
}

func (m *Machine) reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case Start:
		if err := m.runner.CheckText(a.Text); err != nil {
			return s, err
		}
		s.Step = StepTokens
		s.InputText = a.Text
		s.Snapshot = m.runner.Start(a.Text)
		return s, nil

	case SetStep:
		if a.Step < StepInput || a.Step > MaxStep {
			return s, fmt.Errorf("%w: step %d out of range", ErrInvalidTransition, a.Step)
		}
		s.Step = a.Step
		return s, nil

	case Restart:
		next := Initial()
		next.ExplanationMode = s.ExplanationMode
		return next, nil

	case ToggleExplanation:
		s.ExplanationMode = !s.ExplanationMode
		return s, nil

	case ComputeTokens:
		if s.Snapshot == nil {
			return s, fmt.Errorf("%w: no input", ErrInvalidTransition)
		}
		return m.apply(s, m.runner.Tokenize)

	case ComputeEmbeddings:
		if s.Snapshot == nil || s.Snapshot.Stage < inference.StageTokens {
			return s, fmt.Errorf("%w: tokens not computed", ErrInvalidTransition)
		}
		return m.apply(s, m.runner.Embed)

	case ComputeAttention:
		if !hasEmbeddings(s) {
			return s, fmt.Errorf("%w: embeddings not computed", ErrInvalidTransition)
		}
		heads := a.Heads
		if heads <= 0 {
			heads = m.runner.Config().Heads
		}
		return m.apply(s, func(snap *inference.Snapshot) (*inference.Snapshot, error) {
			return m.runner.AttendHeads(snap, heads)
		})

	case ComputeProbabilities:
		if !hasEmbeddings(s) {
			return s, fmt.Errorf("%w: embeddings not computed", ErrInvalidTransition)
		}
		seed := m.runner.Config().Seed
		if a.Seed != nil {
			seed = *a.Seed
		}
		return m.apply(s, func(snap *inference.Snapshot) (*inference.Snapshot, error) {
			return m.runner.PredictSeed(snap, seed)
		})

	case GenerateNext:
		if s.Snapshot == nil || len(s.Snapshot.Probabilities) == 0 {
			return s, fmt.Errorf("%w: probabilities not computed", ErrInvalidTransition)
		}
		token := m.sample(a, s.Snapshot.Probabilities)
		snap, err := m.runner.Step(s.Snapshot, s.Snapshot.Text+" "+token)
		if err != nil {
			return s, err
		}
		snap.GeneratedTokens = append(snap.GeneratedTokens, token)
		s.Snapshot = snap
		s.Step = StepGeneration
		return s, nil

	default:
		return s, fmt.Errorf("%w: unknown action %T", ErrInvalidTransition, a)
	}
}

func (m *Machine) apply(s State, stage func(*inference.Snapshot) (*inference.Snapshot, error)) (State, error) {
	snap, err := stage(s.Snapshot)
	if err != nil {
		return s, err
	}
	s.Snapshot = snap
	return s, nil
}

func (m *Machine) sample(a GenerateNext, probs []logits.TokenProb) string {
	switch a.Strategy {
	case logits.Random:
		return m.sampler.SampleRandom(probs)
	case logits.TopK:
		k := a.K
		if k <= 0 {
			k = logits.DefaultTopK
		}
		return m.sampler.SampleTopK(probs, k)
	case logits.Temperature:
		return m.sampler.SampleTemperature(probs, a.Temperature)
	default:
		return logits.SampleGreedy(probs)
	}
}

func hasEmbeddings(s State) bool {
	return s.Snapshot != nil && len(s.Snapshot.Combined) > 0
}
