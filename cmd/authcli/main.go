package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-auth-flow/internal/client/authapi"
	"github.com/go-auth-flow/internal/client/flow"
	"github.com/go-auth-flow/internal/client/session"
	"github.com/go-auth-flow/internal/config"
	"github.com/go-auth-flow/internal/infrastructure/sqlite"
	"github.com/go-auth-flow/internal/pkg/logging"
	"github.com/go-auth-flow/internal/transport/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadClient()
	logging.Setup(os.Stderr, "", cfg.LogLevel)

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg *config.ClientConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		tokens flow.TokenStore
		prefs  cli.ThemeStore
	)
	if cfg.TokenDBPath != "" {
		ts, err := sqlite.NewTokenStore(cfg.TokenDBPath)
		if err != nil {
			return fmt.Errorf("open token store: %w", err)
		}
		defer ts.Close()
		tokens, prefs = ts, ts
	}

	api := authapi.New(cfg.BaseURL, &http.Client{Timeout: cfg.HTTPTimeout})
	app := &cli.App{
		Flow:  flow.New(session.NewStore(), api, tokens),
		In:    os.Stdin,
		Out:   os.Stdout,
		Prefs: prefs,
	}
	return cli.NewRootCommand(app).ExecuteContext(ctx)
}
