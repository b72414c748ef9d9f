// Automated customer-service agent for a second-hand marketplace IM channel.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ktao87/goofish-agent/internal/agent"
	"github.com/ktao87/goofish-agent/internal/admin"
	"github.com/ktao87/goofish-agent/internal/blacklist"
	"github.com/ktao87/goofish-agent/internal/config"
	"github.com/ktao87/goofish-agent/internal/conn"
	"github.com/ktao87/goofish-agent/internal/intent"
	"github.com/ktao87/goofish-agent/internal/llm"
	"github.com/ktao87/goofish-agent/internal/marketapi"
	"github.com/ktao87/goofish-agent/internal/reply"
	"github.com/ktao87/goofish-agent/internal/session"
	"github.com/ktao87/goofish-agent/internal/store"
	"github.com/ktao87/goofish-agent/internal/wire"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, cfg.MaxHistory)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	market := marketapi.NewClient(cfg.Cookies, 30*time.Second)
	ownUserID := market.UserID()
	if ownUserID == "" {
		slog.Error("COOKIES_STR has no unb cookie, cannot determine account id")
		os.Exit(1)
	}
	deviceID := conn.GenerateDeviceID(ownUserID)
	slog.Info("Account resolved", "user_id", ownUserID)

	bl := blacklist.New(cfg.BlacklistPath)
	defer func() {
		if closeErr := bl.Close(); closeErr != nil {
			slog.Debug("Failed to close blacklist watcher", "error", closeErr)
		}
	}()
	slog.Info("Blacklist loaded", "path", cfg.BlacklistPath, "phrases", bl.Len())

	prompts, err := reply.LoadPrompts(cfg.PromptDir)
	if err != nil {
		slog.Error("Failed to load prompts", "error", err, "dir", cfg.PromptDir)
		os.Exit(1)
	}

	completer := llm.NewClient(cfg.ModelBaseURL, cfg.APIKey, 60*time.Second)
	orchestrator := reply.NewOrchestrator(completer, prompts, cfg.ModelName, cfg.MaxUserHistory)
	router := intent.NewRouter(orchestrator)
	sessions := session.NewStore(cfg.ManualModeTimeout)

	pipeline := agent.NewService(agent.Config{
		OwnUserID:      ownUserID,
		ToggleKeywords: cfg.ToggleKeywords,
		EnableIntent:   cfg.EnableIntent,
		MaxUserTurns:   cfg.MaxUserHistory,
	}, repo, sessions, market, bl, router, orchestrator)

	// The payload cipher is a deployment-provided plugin. Without one,
	// encrypted payloads surface as unrecognized and are skipped.
	codec := wire.NewCodec(nil)
	slog.Warn("No payload decrypter configured, encrypted messages will be skipped")

	manager := conn.NewManager(conn.Config{
		URL:               cfg.WSURL,
		Cookies:           cfg.Cookies,
		UserID:            ownUserID,
		DeviceID:          deviceID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, market, codec, pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Admin API.
	var srv *http.Server
	if cfg.AdminAddr != "" {
		srv = &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      admin.NewHandler(repo, sessions).Router(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			slog.Info("Admin API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Admin API failed", "error", err)
				os.Exit(1)
			}
		}()
	} else {
		slog.Info("Admin API disabled")
	}

	// Connection loop; reconnects until shutdown.
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-done:
		slog.Error("Connection loop exited", "error", err)
	}
	stop()

	slog.Info("Shutting down gracefully...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin API forced to shutdown", "error", err)
		}
	}

	slog.Info("Agent stopped")
}
