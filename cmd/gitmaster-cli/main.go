package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comigor/gitmaster-go/internal/backend"
	"github.com/comigor/gitmaster-go/internal/config"
	"github.com/comigor/gitmaster-go/internal/history"
	"github.com/comigor/gitmaster-go/internal/logger"
	"github.com/comigor/gitmaster-go/internal/repl"
	"github.com/comigor/gitmaster-go/internal/session"
	"github.com/comigor/gitmaster-go/internal/telemetry"
)

func main() {
	repoURL := flag.String("repo", "", "GitHub repository URL to analyze (https://github.com/<owner>/<repo>)")
	sessionID := flag.String("session", "", "existing session id to resume instead of analyzing")
	configPath := flag.String("config", "", "path to a config file (overrides CONFIG_PATH)")
	flag.Parse()

	os.Exit(run(*repoURL, *sessionID, *configPath))
}

func run(repoURL, sessionID, configPath string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file loaded", "error", err)
	}
	if configPath != "" {
		os.Setenv("CONFIG_PATH", configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	// Keep stdout for the conversation.
	logCloser := logger.Init(os.Stderr, cfg.Log.Level, cfg.Log.File)
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

	opts := repl.Options{
		RepositoryURL: repoURL,
		SessionID:     sessionID,
		ChatOptions:   []session.ChatOption{session.WithCleanupTimeout(cfg.Backend.CleanupTimeout)},
	}
	if cfg.History.DBPath != "" {
		archive, err := history.Open(cfg.History.DBPath)
		if err != nil {
			logger.L.Warn("failed to open history archive, continuing without it", "error", err)
		} else {
			defer archive.Close()
			opts.ChatOptions = append(opts.ChatOptions, session.WithRecorder(archive))
			opts.History = archive
		}
	}

	if err := repl.Run(ctx, backend.NewClient(cfg.Backend), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, repl.ErrNoSession) {
			flag.Usage()
		}
		return 1
	}
	return 0
}
