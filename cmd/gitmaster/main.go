package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comigor/gitmaster-go/internal/backend"
	"github.com/comigor/gitmaster-go/internal/config"
	"github.com/comigor/gitmaster-go/internal/history"
	"github.com/comigor/gitmaster-go/internal/logger"
	"github.com/comigor/gitmaster-go/internal/session"
	"github.com/comigor/gitmaster-go/internal/telemetry"
	"github.com/comigor/gitmaster-go/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.L.Warn("failed to load .env file, continuing with system environment variables only", "error", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logger.Init(os.Stdout, cfg.Log.Level, cfg.Log.File)
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.L.Warn("failed to initialize telemetry, continuing without it", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.L.Warn("telemetry shutdown error", "error", err)
			}
		}()
	}

	client := backend.NewClient(cfg.Backend)

	chatOpts := []session.ChatOption{session.WithCleanupTimeout(cfg.Backend.CleanupTimeout)}
	if cfg.History.DBPath != "" {
		archive, err := history.Open(cfg.History.DBPath)
		if err != nil {
			logger.L.Warn("failed to open history archive, continuing without it", "error", err)
		} else {
			defer archive.Close()
			chatOpts = append(chatOpts, session.WithRecorder(archive))
		}
	}

	chats := session.NewRegistry(client, chatOpts...)
	chats.SetIdleTimeout(cfg.Server.ChatIdleTimeout)
	router := web.NewRouter(session.NewAnalyzer(client), chats)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.L.Info("starting server", "address", srv.Addr, "backend", cfg.Backend.BaseURL)
	if err := runServer(ctx, srv); err != nil {
		logger.L.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.L.Info("server stopped", "live_chats", chats.Len())
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
