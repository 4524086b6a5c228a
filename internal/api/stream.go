package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logits"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Stream event types.
const (
	EventTypeToken    = "token"
	EventTypeDone     = "done"
	EventTypeError    = "error"
	EventTypeGenerate = "generate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is the envelope of every websocket message. Clients send
// {"type":"generate","generate":{...}} to request more tokens.
type StreamMessage struct {
	Type      string       `json:"type"`
	Token     *TokenEvent  `json:"token,omitempty"`
	Done      *DoneEvent   `json:"done,omitempty"`
	Error     *ErrorBody   `json:"error,omitempty"`
	Generate  *GenerateReq `json:"generate,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// TokenEvent reports one generated token.
type TokenEvent struct {
	Step          int                `json:"step"`
	Token         string             `json:"token"`
	Text          string             `json:"text"`
	Probabilities []logits.TokenProb `json:"probabilities"`
}

// DoneEvent closes a generation run.
type DoneEvent struct {
	TokensGenerated int      `json:"tokens_generated"`
	Steps           int      `json:"steps"`
	GeneratedTokens []string `json:"generated_tokens"`
	Text            string   `json:"text"`
}

// handleStream upgrades to a websocket and streams generation. A steps query
// parameter starts a run immediately; further runs are requested with
// generate messages. Query parameters strategy, temperature, k and seed
// mirror the generate endpoint.
func (s *Server) handleStream(c *echo.Context) error {
	sess, ok := s.lookup(c)
	if !ok {
		return writeNotFound(c, "session not found")
	}
	initial, err := streamRequest(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "id", sess.ID, "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.pingLoop(ctx, conn)

	st := &streamSession{server: s, sess: sess, conn: conn}
	if initial != nil {
		if err := st.run(ctx, *initial); err != nil {
			return nil
		}
	}

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", "id", sess.ID, "error", err)
			}
			return nil
		}
		if msg.Type != EventTypeGenerate || msg.Generate == nil {
			if err := st.sendError("expected a generate message"); err != nil {
				return nil
			}
			continue
		}
		if err := st.run(ctx, *msg.Generate); err != nil {
			return nil
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

type streamSession struct {
	server *Server
	sess   *Session
	conn   *websocket.Conn
}

// run performs one generation run. Request errors are reported to the client;
// only write failures are returned.
func (st *streamSession) run(ctx context.Context, req GenerateReq) error {
	gen, steps, err := st.server.generator(req)
	if err != nil {
		return st.sendError(err.Error())
	}
	state, stats, err := st.sess.Generate(ctx, gen, steps, func(step int, tok string, snap *inference.Snapshot) error {
		return st.send(StreamMessage{
			Type: EventTypeToken,
			Token: &TokenEvent{
				Step:          step,
				Token:         tok,
				Text:          snap.Text,
				Probabilities: snap.Probabilities,
			},
		})
	})
	if err != nil {
		if isClientError(err) {
			return st.sendError(err.Error())
		}
		return err
	}
	done := &DoneEvent{TokensGenerated: stats.TokensGenerated, Steps: stats.Steps, GeneratedTokens: []string{}}
	if state.Snapshot != nil {
		done.GeneratedTokens = nonNil(state.Snapshot.GeneratedTokens)
		done.Text = state.Snapshot.Text
	}
	return st.send(StreamMessage{Type: EventTypeDone, Done: done})
}

func (st *streamSession) send(msg StreamMessage) error {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	st.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return st.conn.WriteJSON(msg)
}

func (st *streamSession) sendError(msg string) error {
	return st.send(StreamMessage{
		Type:  EventTypeError,
		Error: &ErrorBody{Message: msg, Type: "invalid_request_error"},
	})
}

// streamRequest reads an optional initial generation request from the query.
func streamRequest(c *echo.Context) (*GenerateReq, error) {
	raw := c.QueryParam("steps")
	if raw == "" {
		return nil, nil
	}
	req := &GenerateReq{Strategy: c.QueryParam("strategy")}
	var err error
	if req.Steps, err = strconv.Atoi(raw); err != nil {
		return nil, newInvalidRequest("steps must be an integer")
	}
	if v := c.QueryParam("k"); v != "" {
		if req.K, err = strconv.Atoi(v); err != nil {
			return nil, newInvalidRequest("k must be an integer")
		}
	}
	if v := c.QueryParam("temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, newInvalidRequest("temperature must be a number")
		}
		req.Temperature = &t
	}
	if v := c.QueryParam("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, newInvalidRequest("seed must be an integer")
		}
		req.Seed = &seed
	}
	return req, nil
}
