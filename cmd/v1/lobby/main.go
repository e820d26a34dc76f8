package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/arcadeparty/backend/internal/v1/config"
	"github.com/arcadeparty/backend/internal/v1/health"
	"github.com/arcadeparty/backend/internal/v1/httpapi"
	"github.com/arcadeparty/backend/internal/v1/lobby"
	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/match"
	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/ratelimit"
	"github.com/arcadeparty/backend/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DebugLogging); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// --- Redis Initialization (Optional) ---
	// Used for the appearance cache and distributed rate limiting. The server
	// runs fine without it.
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("Failed to connect to Redis, continuing without it", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			slog.Info("✅ Redis connected", "addr", cfg.RedisAddr)
		}
	} else {
		slog.Info("Running without Redis (disabled)")
	}

	// --- External Store Clients ---
	profiles := profile.NewClient(cfg.NocodeBackendURL, cfg.NocodeAPIKey, redisClient)
	matches := match.NewClient(cfg.NocodeBackendURL, cfg.NocodeAPIKey)

	// --- Hub + Janitor ---
	hub := lobby.NewHub(profiles)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	go hub.RunJanitor(janitorCtx)

	// --- Rate Limiting ---
	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		slog.Error("Failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	// --- WebSocket Entry ---
	allowedOrigins := transport.AllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	if cfg.ClientURL != "" && !slices.Contains(allowedOrigins, cfg.ClientURL) {
		allowedOrigins = append(allowedOrigins, cfg.ClientURL)
	}
	upgrade := transport.NewUpgradeHandler(hub, limiter, allowedOrigins)

	// --- HTTP Surface ---
	healthHandler := health.NewHandler(func() health.Stats {
		s := hub.Stats()
		return health.Stats{
			ActiveRooms:      s.ActiveRooms,
			ActivePlayers:    s.ActivePlayers,
			TotalRooms:       s.TotalRooms,
			TotalConnections: s.TotalConnections,
			RoomsWithClients: s.RoomsWithClients,
		}
	}, redisClient, cfg.GoEnv, cfg.Port)

	api := httpapi.NewServer(hub, profiles, matches, httpapi.NewSessions())
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Server:         api,
		Health:         healthHandler,
		Limiter:        limiter,
		ServeWs:        upgrade.ServeWs,
		AllowedOrigins: allowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Lobby server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context gives in-flight requests 30 seconds to finish
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stopJanitor()

	// Close all rooms and WebSocket connections gracefully
	hub.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis connection:", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	_ = logging.GetLogger().Sync()
	slog.Info("Server exiting")
}
