package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finance-tracker/backend/internal/config"
	delivery "github.com/finance-tracker/backend/internal/delivery/http"
	"github.com/finance-tracker/backend/internal/middleware"
	"github.com/finance-tracker/backend/internal/repository/postgres"
	"github.com/finance-tracker/backend/internal/token"
	"github.com/finance-tracker/backend/internal/usecase"
	"github.com/finance-tracker/backend/pkg/googleauth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("finance tracker backend starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.RunMigrations(ctx, cfg.Database.URL); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := connectWithRetry(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Error("could not connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)

	// Auth core
	verifier := googleauth.NewVerifier(cfg.Google.ClientID)
	issuer := token.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)

	// Usecases
	authUsecase := usecase.NewAuthUsecase(userRepo, tokenRepo, verifier, issuer, logger)
	transactionUsecase := usecase.NewTransactionUsecase(transactionRepo)
	insightsUsecase := usecase.NewInsightsUsecase(transactionRepo)

	// Periodic cleanup of expired refresh tokens
	go authUsecase.RunSweeper(ctx, cfg.JWT.SweepInterval)

	handler := delivery.NewHandler(authUsecase, transactionUsecase, insightsUsecase)
	authMiddleware := middleware.NewAuthMiddleware(issuer)
	router := delivery.NewRouter(handler, authMiddleware, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func connectWithRetry(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := pgxpool.New(connectCtx, url)
		if err == nil {
			if pingErr := pool.Ping(connectCtx); pingErr == nil {
				cancel()
				logger.Info("connected to postgres")
				return pool, nil
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		lastErr = err
		logger.Warn("database connection failed", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	return nil, lastErr
}
