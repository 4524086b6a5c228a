// Package usage records which demo texts were explored and how far users got.
// Entries carry no personal data.
package usage

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCapacity is how many entries the memory store retains.
	DefaultCapacity = 100
	// MaxDemoRunes bounds the stored demo text.
	MaxDemoRunes = 100
	// AnonymousSession is recorded when no session id is supplied.
	AnonymousSession = "anonymous"
)

// ErrMissingDemo is returned for entries without a demo text.
var ErrMissingDemo = errors.New("demo text is required")

// Entry is one logged exploration.
type Entry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	DemoUsed       string    `json:"demo_used"`
	StepsCompleted int       `json:"steps_completed"`
	SessionID      string    `json:"session_id"`
}

// Stats summarises the retained entries.
type Stats struct {
	TotalSessions         int        `json:"total_sessions"`
	AverageStepsCompleted float64    `json:"average_steps_completed"`
	LastActivity          *time.Time `json:"last_activity"`
}

// Store persists entries.
type Store interface {
	// Log validates, normalises and stores e, returning the stored entry and
	// the number of entries now retained.
	Log(ctx context.Context, e Entry) (Entry, int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Normalize validates e and fills defaults: the demo text is truncated to
// MaxDemoRunes, negative steps become zero and an empty session id becomes
// AnonymousSession.
func Normalize(e Entry, now time.Time, newID func() string) (Entry, error) {
	if strings.TrimSpace(e.DemoUsed) == "" {
		return Entry{}, ErrMissingDemo
	}
	if r := []rune(e.DemoUsed); len(r) > MaxDemoRunes {
		e.DemoUsed = string(r[:MaxDemoRunes])
	}
	if e.StepsCompleted < 0 {
		e.StepsCompleted = 0
	}
	if e.SessionID == "" {
		e.SessionID = AnonymousSession
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	if e.ID == "" && newID != nil {
		e.ID = newID()
	}
	return e, nil
}
