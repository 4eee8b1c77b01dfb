package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vndocker/pos-AI-community/api"
	audithook "github.com/vndocker/pos-AI-community/audit_hook"
	"github.com/vndocker/pos-AI-community/auth"
	"github.com/vndocker/pos-AI-community/client"
	"github.com/vndocker/pos-AI-community/config"
	"github.com/vndocker/pos-AI-community/engine"
	"github.com/vndocker/pos-AI-community/temporal"
	"github.com/vndocker/pos-AI-community/throttle"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sign-in HTTP API",
		Long: `Serve the sign-in HTTP API.

With EXECUTOR=local the workflows run in-process on the checkpointing
engine and interrupted runs are resumed at startup. With EXECUTOR=temporal
runs are started on the Temporal cluster at ORCHESTRATOR_URL and a
separate "posauth worker" executes them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.cfg, opts.logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metricsHandler, shutdownTelemetry, err := setupTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithHealth(st),
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithMetricsHandler(metricsHandler),
		api.WithLogger(logger),
	}

	var (
		orch     client.Orchestrator
		eng      *engine.Engine
		authOpts []auth.Option
	)
	switch cfg.Executor {
	case config.ExecutorTemporal:
		c, err := temporal.Dial(cfg.OrchestratorURL, cfg.TemporalNamespace, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		orch = temporal.NewClient(c, cfg.TaskQueue)
	default:
		set, err := newActivitySet(cfg, logger)
		if err != nil {
			return err
		}
		eng, err = engine.Build(st, set.Table(),
			engine.WithConfig(cfg.Engine()),
			engine.WithLogger(logger),
			engine.WithExtension(audithook.New(newAuditRecorder(cfg, logger), audithook.WithLogger(logger))),
		)
		if err != nil {
			return err
		}
		orch = eng.Client()
		authOpts = append(authOpts, auth.WithIssueOnCompletion())
		if cfg.AdminToken != "" {
			apiOpts = append(apiOpts, api.WithRunner(eng.Runner()), api.WithAdminToken(cfg.AdminToken))
		}
	}

	limiter := throttle.New(cfg.Throttle())
	verifyLimiter := throttle.New(cfg.VerifyThrottle())
	svc := auth.NewService(orch, st, append(authOpts,
		auth.WithThrottle(limiter),
		auth.WithVerifyThrottle(verifyLimiter),
		auth.WithCodeTTL(cfg.OTPTTL),
		auth.WithLogger(logger),
	)...)
	if eng != nil {
		// Registered before Start so resumed runs store their codes.
		eng.Extensions().Register(svc)
		if err := eng.Start(ctx); err != nil {
			return err
		}
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(svc, apiOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("executor", cfg.Executor),
			slog.String("store", cfg.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return limiter.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		return verifyLimiter.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if eng != nil {
			if stopErr := eng.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("engine stop", slog.String("error", stopErr.Error()))
			}
		}
		return err
	})
	return g.Wait()
}
