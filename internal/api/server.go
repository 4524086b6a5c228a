// Package api serves the exploration pipeline over HTTP.
package api

import (
	"net/http"

	gojson "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/session"
	"github.com/samcharles93/explora/internal/usage"
)

// Config holds the server defaults.
type Config struct {
	// Sampling is the default sampler configuration for new sessions and
	// generation requests.
	Sampling logits.SamplerConfig
	Logger   logger.Logger
}

type Server struct {
	runner   *inference.Runner
	sessions *SessionStore
	usage    usage.Store
	sampling logits.SamplerConfig
	log      logger.Logger
}

// NewServer returns a Server. Nil stores are replaced with in-memory ones.
func NewServer(runner *inference.Runner, sessions *SessionStore, usageStore usage.Store, cfg Config) *Server {
	if sessions == nil {
		sessions = NewSessionStore()
	}
	if usageStore == nil {
		usageStore = usage.NewMemoryStore(usage.DefaultCapacity)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		runner:   runner,
		sessions: sessions,
		usage:    usageStore,
		sampling: cfg.Sampling,
		log:      log.With("component", "api"),
	}
}

func (s *Server) Register(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions", s.handleCreateSession)
	e.GET("/v1/sessions/:id", s.handleGetSession)
	e.DELETE("/v1/sessions/:id", s.handleDeleteSession)
	e.POST("/v1/sessions/:id/actions", s.handleAction)
	e.POST("/v1/sessions/:id/generate", s.handleGenerate)
	e.GET("/v1/sessions/:id/stream", s.handleStream)
	e.GET("/v1/sessions/:id/export", s.handleExport)

	// Stateless
	e.POST("/v1/analyze", s.handleAnalyze)
	e.GET("/v1/vocabulary", s.handleVocabulary)

	// Usage log
	e.POST("/v1/usage", s.handleLogUsage)
	e.GET("/v1/usage/stats", s.handleUsageStats)
}

var fullRun = []session.Action{
	session.ComputeTokens{},
	session.ComputeEmbeddings{},
	session.ComputeAttention{},
	session.ComputeProbabilities{},
	session.SetStep{Step: session.StepProbabilities},
}

func (s *Server) handleCreateSession(c *echo.Context) error {
	req, err := decodeJSON[CreateSessionReq](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	sess := s.sessions.Create(s.runner, logits.NewSampler(s.sampling))
	if req.Text != "" {
		actions := []session.Action{session.Start{Text: req.Text}}
		if req.Full == nil || *req.Full {
			actions = append(actions, fullRun...)
		}
		for _, a := range actions {
			if _, err := sess.Apply(a); err != nil {
				s.sessions.Delete(sess.ID)
				return writeFailure(c, err)
			}
		}
	}
	s.log.Debug("session created", "id", sess.ID, "tokens", s.runner.CountTokens(req.Text))
	return c.JSON(http.StatusOK, sessionDTO(sess.ID, sess.CreatedAt, sess.State()))
}

func (s *Server) lookup(c *echo.Context) (*Session, bool) {
	id := c.Param("id")
	if id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

func (s *Server) handleGetSession(c *echo.Context) error {
	sess, ok := s.lookup(c)
	if !ok {
		return writeNotFound(c, "session not found")
	}
	return c.JSON(http.StatusOK, sessionDTO(sess.ID, sess.CreatedAt, sess.State()))
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.sessions.Delete(id) {
		return writeNotFound(c, "session not found")
	}
	return c.JSON(http.StatusOK, DeleteSessionResp{
		ID:      id,
		Object:  "session",
		Deleted: true,
	})
}

func (s *Server) handleAction(c *echo.Context) error {
	sess, ok := s.lookup(c)
	if !ok {
		return writeNotFound(c, "session not found")
	}
	req, err := decodeJSON[ActionReq](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	action, err := req.toAction()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	st, err := sess.Apply(action)
	if err != nil {
		return writeFailure(c, err)
	}
	s.log.Debug("action applied", "id", sess.ID, "action", action.Name(), "step", st.Step)
	return c.JSON(http.StatusOK, sessionDTO(sess.ID, sess.CreatedAt, st))
}

func (s *Server) handleGenerate(c *echo.Context) error {
	sess, ok := s.lookup(c)
	if !ok {
		return writeNotFound(c, "session not found")
	}
	req, err := decodeJSON[GenerateReq](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	gen, steps, err := s.generator(req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	if req.Stream {
		return s.streamGenerate(c, sess, gen, steps)
	}

	tokens := []string{}
	st, stats, err := sess.Generate(c.Request().Context(), gen, steps, func(_ int, tok string, _ *inference.Snapshot) error {
		tokens = append(tokens, tok)
		return nil
	})
	if err != nil {
		return writeFailure(c, err)
	}
	s.log.Debug("generation complete", "id", sess.ID, "tokens", stats.TokensGenerated, "strategy", gen.Sampler.Config().Strategy)
	return c.JSON(http.StatusOK, GenerateResp{
		Session:         sessionDTO(sess.ID, sess.CreatedAt, st),
		Tokens:          tokens,
		TokensGenerated: stats.TokensGenerated,
		Steps:           stats.Steps,
	})
}

// streamGenerate runs a generation and reports each token as a server-sent
// event. Failures after the stream has begun are reported in-band.
func (s *Server) streamGenerate(c *echo.Context, sess *Session, gen *inference.Generator, steps int) error {
	if st := sess.State(); st.Snapshot == nil {
		return writeBadRequest(c, "session has no input")
	}
	sw, err := NewSSEStreamWriter(c, sess.ID)
	if err != nil {
		return writeServerError(c, err.Error())
	}
	if err := sw.Begin(); err != nil {
		return err
	}

	tokens := []string{}
	st, stats, err := sess.Generate(c.Request().Context(), gen, steps, func(step int, tok string, _ *inference.Snapshot) error {
		tokens = append(tokens, tok)
		return sw.EmitToken(step, tok)
	})
	if err != nil {
		s.log.Warn("streamed generation failed", "id", sess.ID, "tokens", len(tokens), "error", err)
		return sw.Failed(err)
	}
	s.log.Debug("streamed generation complete", "id", sess.ID, "tokens", stats.TokensGenerated)
	return sw.Complete(GenerateResp{
		Session:         sessionDTO(sess.ID, sess.CreatedAt, st),
		Tokens:          tokens,
		TokensGenerated: stats.TokensGenerated,
		Steps:           stats.Steps,
	})
}

// generator builds a per-request generator from req and the server defaults.
func (s *Server) generator(req GenerateReq) (*inference.Generator, int, error) {
	cfg := s.sampling
	if req.Strategy != "" {
		strategy, err := logits.ParseStrategy(req.Strategy)
		if err != nil {
			return nil, 0, newInvalidRequest(err.Error())
		}
		cfg.Strategy = strategy
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.K > 0 {
		cfg.TopK = req.K
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	steps := req.Steps
	if steps < 0 {
		return nil, 0, newInvalidRequest("steps must not be negative")
	}
	if steps == 0 {
		steps = 1
	}
	steps = min(steps, s.runner.Config().MaxTokens)
	return &inference.Generator{Runner: s.runner, Sampler: logits.NewSampler(cfg)}, steps, nil
}

func (s *Server) handleExport(c *echo.Context) error {
	sess, ok := s.lookup(c)
	if !ok {
		return writeNotFound(c, "session not found")
	}
	body, err := gojson.MarshalIndent(sessionDTO(sess.ID, sess.CreatedAt, sess.State()), "", "  ")
	if err != nil {
		return writeServerError(c, err.Error())
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	res.Header().Set("Content-Disposition", `attachment; filename="`+sess.ID+`.json"`)
	res.WriteHeader(http.StatusOK)
	_, err = res.Write(body)
	return err
}

func (s *Server) handleAnalyze(c *echo.Context) error {
	req, err := decodeJSON[AnalyzeReq](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	snap, err := s.analyze(req)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, NewSnapshotDTO(snap))
}

func (s *Server) analyze(req AnalyzeReq) (*inference.Snapshot, error) {
	cfg := s.runner.Config()
	heads, seed := req.Heads, cfg.Seed
	if heads <= 0 {
		heads = cfg.Heads
	}
	if req.Seed != nil {
		seed = *req.Seed
	}

	snap, err := s.runner.Tokenize(s.runner.Start(req.Text))
	if err != nil {
		return nil, err
	}
	if snap, err = s.runner.Embed(snap); err != nil {
		return nil, err
	}
	if snap, err = s.runner.AttendHeads(snap, heads); err != nil {
		return nil, err
	}
	return s.runner.PredictSeed(snap, seed)
}

func (s *Server) handleVocabulary(c *echo.Context) error {
	return c.JSON(http.StatusOK, NewVocabularyResp(s.runner.Vocabulary()))
}

func (s *Server) handleLogUsage(c *echo.Context) error {
	req, err := decodeJSON[UsageReq](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	entry, total, err := s.usage.Log(c.Request().Context(), usage.Entry{
		DemoUsed:       req.DemoUsed,
		StepsCompleted: req.StepsCompleted,
		SessionID:      req.SessionID,
	})
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, UsageResp{Success: true, Entry: entry, TotalLogs: total})
}

func (s *Server) handleUsageStats(c *echo.Context) error {
	st, err := s.usage.Stats(c.Request().Context())
	if err != nil {
		return writeServerError(c, "failed to retrieve stats")
	}
	return c.JSON(http.StatusOK, st)
}
