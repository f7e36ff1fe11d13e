package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/quarto-backend/internal/agent"
	"github.com/DoyleJ11/quarto-backend/internal/config"
	"github.com/DoyleJ11/quarto-backend/internal/coordinator"
	"github.com/DoyleJ11/quarto-backend/internal/history"
	"github.com/DoyleJ11/quarto-backend/internal/httpapi"
	"github.com/DoyleJ11/quarto-backend/internal/hub"
	"github.com/DoyleJ11/quarto-backend/internal/lobby"
	"github.com/DoyleJ11/quarto-backend/internal/logging"
	"github.com/DoyleJ11/quarto-backend/internal/rng"
	"github.com/DoyleJ11/quarto-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("quarto: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := rng.NewCryptoSource()
	h := hub.NewHub(ctx, src, logger)
	defer h.Shutdown()

	opts := coordinator.Options{
		Registry: h,
		Rand:     src,
		Logger:   logger,
	}

	var store *history.Store
	if cfg.DatabaseURL != "" {
		store, err = history.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts.Recorder = store
	}

	if cfg.PvEEnabled() {
		binder := agent.NewBinder(agent.Config{
			Endpoint:      cfg.AgentEndpoint,
			Timeout:       cfg.AgentTimeout,
			HealthTimeout: cfg.AgentHealthTimeout,
		}, nil, logger)
		opts.Binder = coordinator.BinderFunc(func(ctx context.Context) (lobby.Agent, error) {
			c, err := binder.Bind(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		})
	}

	conns := ws.NewConns(ws.DefaultOutboxSize, logger)
	opts.Notifier = conns
	coord := coordinator.New(ctx, opts)

	deps := httpapi.Deps{
		Games:          coord,
		Socket:         ws.NewHandler(coord, conns, cfg.OriginHosts(), logger),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	}
	if store != nil {
		deps.History = store
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.Bool("pve_enabled", coord.PvEEnabled()),
			zap.Bool("history_enabled", store != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
