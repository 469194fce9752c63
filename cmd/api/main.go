package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-flow/internal/config"
	"github.com/go-auth-flow/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-flow/internal/infrastructure/jwt"
	redisinfra "github.com/go-auth-flow/internal/infrastructure/redis"
	"github.com/go-auth-flow/internal/infrastructure/smtp"
	"github.com/go-auth-flow/internal/infrastructure/sns"
	"github.com/go-auth-flow/internal/pkg/logging"
	transporthttp "github.com/go-auth-flow/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	logging.Setup(os.Stdout, cfg.AppEnv, cfg.LogLevel)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("JWT provider: %w", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.UserVerifications),
		Mailer:           smtp.NewMailer(cfg),
		JWTProvider:      jwtProvider,
	}

	// SNS SMS sender (optional, graceful fallback).
	if awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion); err == nil {
		deps.SMSSender = sns.NewSender(awsCfg)
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}

	// Redis resend cooldown (optional).
	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			slog.Warn("redis not available, OTP resend cooldown disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer rdb.Close()
			deps.Cooldown = redisinfra.NewOTPCooldown(rdb, "authflow", cfg.OTPResendCooldown)
		}
	} else {
		slog.Warn("REDIS_ADDR not set, OTP resend cooldown disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
