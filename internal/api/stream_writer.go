package api

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// Server-sent event types for streamed generation.
const (
	sseGenerationCreated = "generation.created"
	sseGenerationToken   = "generation.token"
	sseGenerationDone    = "generation.completed"
	sseGenerationFailed  = "generation.failed"
)

// sseEvent is one data line of a streamed generation. Sequence numbers start
// at 1 and increase by one per event.
type sseEvent struct {
	Type           string        `json:"type"`
	SequenceNumber int           `json:"sequence_number"`
	SessionID      string        `json:"session_id,omitempty"`
	Step           *int          `json:"step,omitempty"`
	Token          string        `json:"token,omitempty"`
	Result         *GenerateResp `json:"result,omitempty"`
	Error          *ErrorBody    `json:"error,omitempty"`
}

// SSEStreamWriter writes generation progress as server-sent events.
type SSEStreamWriter struct {
	w         io.Writer
	flusher   func()
	sessionID string
	seq       int
}

func NewSSEStreamWriter(c *echo.Context, sessionID string) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	return &SSEStreamWriter{
		w:         res,
		flusher:   flusher.Flush,
		sessionID: sessionID,
		seq:       1,
	}, nil
}

// Begin announces the generation. It commits the 200 status, so request
// validation must happen before it.
func (s *SSEStreamWriter) Begin() error {
	return s.emit(sseEvent{Type: sseGenerationCreated, SessionID: s.sessionID})
}

func (s *SSEStreamWriter) EmitToken(step int, token string) error {
	return s.emit(sseEvent{Type: sseGenerationToken, Step: &step, Token: token})
}

func (s *SSEStreamWriter) Complete(resp GenerateResp) error {
	return s.emit(sseEvent{Type: sseGenerationDone, Result: &resp})
}

func (s *SSEStreamWriter) Failed(err error) error {
	errType := "server_error"
	if isClientError(err) {
		errType = "invalid_request_error"
	}
	return s.emit(sseEvent{
		Type:  sseGenerationFailed,
		Error: &ErrorBody{Message: err.Error(), Type: errType},
	})
}

func (s *SSEStreamWriter) emit(ev sseEvent) error {
	ev.SequenceNumber = s.seq
	if err := s.send(ev); err != nil {
		return err
	}
	s.flush()
	s.seq++
	return nil
}

func (s *SSEStreamWriter) send(payload any) error {
	b, err := gojson.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", b)
	return err
}

func (s *SSEStreamWriter) flush() {
	if s.flusher != nil {
		s.flusher()
	}
}
