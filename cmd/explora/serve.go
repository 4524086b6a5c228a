package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/api"
	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/usage"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		usageDSN    string
		maxSessions int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the exploration API (sessions, generation, websocket streaming, usage log)",
		Flags: append(append(pipelineFlags(), samplingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.StringFlag{
				Name:        "usage-dsn",
				Usage:       "Postgres DSN for the usage log (in-memory when empty)",
				Sources:     cli.EnvVars("EXPLORA_USAGE_DSN"),
				Destination: &usageDSN,
			},
			&cli.Int64Flag{
				Name:        "max-sessions",
				Usage:       "sessions kept in memory before the oldest is evicted",
				Value:       api.DefaultSessionCapacity,
				Destination: &maxSessions,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyPipelineConfig(cmd, fileConfig)
			applySamplingConfig(cmd, fileConfig)
			applyServeConfig(cmd, fileConfig, &addr, &usageDSN)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}
			scfg, err := samplerConfig()
			if err != nil {
				return err
			}
			store, err := openUsageStore(ctx, usageDSN)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("closing usage store", "error", err)
				}
			}()

			server := api.NewServer(runner, api.NewSessionStoreSize(int(maxSessions)), store, api.Config{
				Sampling: scfg,
				Logger:   log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server",
				"address", addr,
				"dimensions", runner.Config().Dimensions,
				"heads", runner.Config().Heads,
				"max_sessions", maxSessions,
				"strategy", scfg.Strategy.String(),
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func openUsageStore(ctx context.Context, dsn string) (usage.Store, error) {
	if dsn == "" {
		return usage.NewMemoryStore(usage.DefaultCapacity), nil
	}
	store, err := usage.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("usage log backed by postgres")
	return store, nil
}
