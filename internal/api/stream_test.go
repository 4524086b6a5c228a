package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samcharles93/explora/internal/inference"
)

func dialStream(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", path, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestStreamGeneratesTokens(t *testing.T) {
	t.Parallel()

	server, e := newTestServer(t, inference.Config{})
	srv := httptest.NewServer(e)
	defer srv.Close()

	created := createSession(t, e, `{"text":"Es importante ahorrar y controlar tus gastos"}`)
	conn := dialStream(t, srv, "/v1/sessions/"+created.ID+"/stream?steps=3&strategy=greedy")

	var tokens []string
	for i := range 3 {
		msg := readMessage(t, conn)
		if msg.Type != EventTypeToken || msg.Token == nil {
			t.Fatalf("message %d: %+v", i, msg)
		}
		if msg.Token.Step != i || len(msg.Token.Probabilities) == 0 {
			t.Fatalf("token event %d = %+v", i, msg.Token)
		}
		tokens = append(tokens, msg.Token.Token)
	}
	done := readMessage(t, conn)
	if done.Type != EventTypeDone || done.Done.TokensGenerated != 3 {
		t.Fatalf("done = %+v", done)
	}
	if strings.Join(done.Done.GeneratedTokens, " ") != strings.Join(tokens, " ") {
		t.Fatalf("done tokens %v, streamed %v", done.Done.GeneratedTokens, tokens)
	}

	// A further run continues from the stored state.
	if err := conn.WriteJSON(StreamMessage{Type: EventTypeGenerate, Generate: &GenerateReq{Steps: 1}}); err != nil {
		t.Fatalf("write generate: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypeToken || msg.Token.Step != 0 {
		t.Fatalf("second run first message = %+v", msg)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypeDone || len(msg.Done.GeneratedTokens) != 4 {
		t.Fatalf("second run done = %+v", msg)
	}

	sess, ok := server.sessions.Get(created.ID)
	if !ok {
		t.Fatal("session disappeared")
	}
	if got := len(sess.State().Snapshot.GeneratedTokens); got != 4 {
		t.Fatalf("stored generated tokens = %d", got)
	}
}

func TestStreamReportsBadMessages(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, inference.Config{})
	srv := httptest.NewServer(e)
	defer srv.Close()

	created := createSession(t, e, `{"text":"hola"}`)
	conn := dialStream(t, srv, "/v1/sessions/"+created.ID+"/stream")

	if err := conn.WriteJSON(StreamMessage{Type: "subscribe"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypeError || msg.Error == nil {
		t.Fatalf("expected error message, got %+v", msg)
	}

	if err := conn.WriteJSON(StreamMessage{Type: EventTypeGenerate, Generate: &GenerateReq{Steps: 1, Strategy: "beam"}}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypeError {
		t.Fatalf("expected error for unknown strategy, got %+v", msg)
	}
}

func TestStreamRejectsUnknownSession(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, inference.Config{})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}

	rec := doJSON(t, e, http.MethodGet, "/v1/sessions/missing/stream?steps=x", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing session: got %d", rec.Code)
	}
}
