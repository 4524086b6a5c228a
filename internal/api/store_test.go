package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/session"
	"github.com/samcharles93/explora/internal/vocab"
)

func newTestRunner(t *testing.T) *inference.Runner {
	t.Helper()
	runner, err := inference.NewRunner(inference.Config{}, vocab.Default(), nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func TestSessionStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(t)
	store := NewSessionStoreSize(2)
	newSession := func() *Session {
		return store.Create(runner, logits.NewSampler(logits.SamplerConfig{}))
	}

	first, second := newSession(), newSession()
	third := newSession()
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, ok := store.Get(first.ID); ok {
		t.Fatal("oldest session was not evicted")
	}
	for _, s := range []*Session{second, third} {
		if _, ok := store.Get(s.ID); !ok {
			t.Fatalf("session %s evicted too early", s.ID)
		}
	}

	// A deleted session frees its slot without evicting anything else.
	if !store.Delete(second.ID) {
		t.Fatal("Delete() = false")
	}
	fourth := newSession()
	for _, s := range []*Session{third, fourth} {
		if _, ok := store.Get(s.ID); !ok {
			t.Fatalf("session %s missing after delete", s.ID)
		}
	}
}

func TestNewSessionStoreSizeDefaults(t *testing.T) {
	t.Parallel()

	if got := NewSessionStoreSize(0).capacity; got != DefaultSessionCapacity {
		t.Fatalf("capacity = %d, want %d", got, DefaultSessionCapacity)
	}
}

func startedSession(t *testing.T, runner *inference.Runner) *Session {
	t.Helper()
	sess := NewSessionStore().Create(runner, logits.NewSampler(logits.SamplerConfig{Seed: 1}))
	for _, a := range []session.Action{
		session.Start{Text: "el perro corre"},
		session.ComputeTokens{},
		session.ComputeEmbeddings{},
		session.ComputeAttention{},
		session.ComputeProbabilities{},
	} {
		if _, err := sess.Apply(a); err != nil {
			t.Fatalf("Apply(%s) error = %v", a.Name(), err)
		}
	}
	return sess
}

func TestSessionGenerateDoesNotBlockReaders(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(t)
	sess := startedSession(t, runner)
	gen := &inference.Generator{Runner: runner, Sampler: logits.NewSampler(logits.SamplerConfig{})}

	st, stats, err := sess.Generate(context.Background(), gen, 3, func(int, string, *inference.Snapshot) error {
		read := make(chan session.State, 1)
		go func() { read <- sess.State() }()
		select {
		case <-read:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("State() blocked during generation")
		}
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if stats.TokensGenerated != 3 || st.Step != session.StepGeneration {
		t.Fatalf("tokens %d step %d", stats.TokensGenerated, st.Step)
	}
	if len(sess.State().Snapshot.GeneratedTokens) != 3 {
		t.Fatal("generated tokens were not stored")
	}
}

func TestSessionGenerateDiscardsStaleRun(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(t)
	sess := startedSession(t, runner)
	gen := &inference.Generator{Runner: runner, Sampler: logits.NewSampler(logits.SamplerConfig{})}

	restarted := false
	_, _, err := sess.Generate(context.Background(), gen, 2, func(int, string, *inference.Snapshot) error {
		if !restarted {
			restarted = true
			if _, err := sess.Apply(session.Restart{}); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if st := sess.State(); st.Snapshot != nil || st.Step != session.StepInput {
		t.Fatalf("restart was overwritten: step %d", st.Step)
	}
}
