// Assistant Chat Server
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

	"github.com/ashureev/assistant-chat/internal/api"
	"github.com/ashureev/assistant-chat/internal/assistant"
	"github.com/ashureev/assistant-chat/internal/chat"
	"github.com/ashureev/assistant-chat/internal/config"
	"github.com/ashureev/assistant-chat/internal/middleware"
	"github.com/ashureev/assistant-chat/internal/store"
	"github.com/ashureev/assistant-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"db_driver", cfg.Database.Driver,
		"cooldown", cfg.Chat.Cooldown,
		"cooldown_mode", cfg.Chat.CooldownMode,
	)

	// Initialize dependencies.
	repo, err := store.Open(cfg.Database)
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
	slog.Info("Database connected")

	threads, err := assistant.NewOpenAIClient(assistant.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.RequestTimeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize assistant client", "error", err)
		os.Exit(1)
	}

	driver := chat.NewRunDriver(threads, chat.RunDriverConfig{
		PollInterval: cfg.Chat.PollInterval,
		MaxAttempts:  cfg.Chat.MaxPollAttempts,
	}, logger)

	svc := chat.NewService(repo, threads, driver, chat.Options{
		Policy: chat.Policy{
			Cooldown: cfg.Chat.Cooldown,
			Mode:     chat.CooldownMode(cfg.Chat.CooldownMode),
		},
		RunParams: assistant.RunParams{
			AssistantID:  cfg.OpenAI.AssistantID,
			Model:        cfg.OpenAI.Model,
			Instructions: cfg.OpenAI.Instructions,
		},
		RunTimeout:      cfg.Chat.RunTimeout,
		CooldownMessage: cfg.Chat.CooldownMessage,
		FallbackMessage: cfg.Chat.FallbackMessage,
		IncludeHistory:  cfg.Chat.IncludeHistory,
	}, logger)

	// Initialize handlers.
	chatHandler := api.NewHandler(svc, cfg.MaxRequestBodySize, logger)
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		chatHandler.RegisterRoutes(r)
	})

	// Serve embedded chat page (SPA catch-all).
	r.Handle("/*", web.Handler())

	// A turn can hold the connection for the whole run, so the write timeout
	// must exceed RUN_TIMEOUT plus persistence.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Chat.RunTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
