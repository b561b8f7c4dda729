package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/ucfjimg/mmb/internal/command"
	"github.com/ucfjimg/mmb/internal/config"
	"github.com/ucfjimg/mmb/internal/database"
	"github.com/ucfjimg/mmb/internal/domain"
	"github.com/ucfjimg/mmb/internal/logging"
	"github.com/ucfjimg/mmb/internal/rating"
	"github.com/ucfjimg/mmb/internal/removal"
	"github.com/ucfjimg/mmb/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupNotifier(cfg *config.Config) domain.RemovalNotifier {
	if cfg.RemovalWebhookURL == "" {
		slog.Warn("No removal webhook configured, removals will only be logged")
		return removal.LogNotifier{}
	}
	return removal.NewWebhookNotifier(cfg.RemovalWebhookURL)
}

func runGracefulShutdown(srv *server.Server, engine *rating.Engine, pool *pgxpool.Pool) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Let in-flight removal signals drain before the pool closes.
		engine.Stop()
		pool.Close()

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)

	store := database.NewRatingRepo(pool)
	notifier := setupNotifier(cfg)

	engine := rating.NewEngine(store, notifier, clockwork.NewRealClock(), rating.Config{
		RatingTimeout:    cfg.RatingTimeout,
		MinRatingToKick:  cfg.MinRatingToKick,
		MinRatingsToKick: cfg.MinRatingsToKick,
		DefaultRating:    cfg.DefaultRating,
		LeaderboardSize:  cfg.LeaderboardSize,
	})

	dispatcher := command.NewDispatcher(engine)

	srv := server.NewServer(cfg, engine, dispatcher, pool)

	done := runGracefulShutdown(srv, engine, pool)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
