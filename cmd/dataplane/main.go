// Command dataplane starts the distributed database access layer: it
// loads configuration, opens every configured endpoint, and serves
// until terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/constants"
	"github.com/hyp3rd/dbplane/internal/dataplane"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/logger/adapter"
	"github.com/hyp3rd/dbplane/internal/secrets"
	"github.com/hyp3rd/dbplane/internal/secrets/providers/dotenv"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql, used by internal/metadata
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := adapter.NewAdapter(logger.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	provider, err := dotenv.New(secrets.Config{
		Source:       secrets.Both,
		Prefix:       constants.EnvPrefix.String(),
		EnvPath:      ".env",
		AllowMissing: true,
	})
	if err != nil {
		return fmt.Errorf("initializing secrets provider: %w", err)
	}

	cfg, err := config.NewConfig(ctx, config.Options{
		ConfigName:      "config",
		SecretsProvider: provider,
		Timeout:         constants.DefaultTimeout,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	db, err := dataplane.New(ctx, dataplane.Options{Config: cfg, Logger: log})
	if err != nil {
		return fmt.Errorf("starting data plane: %w", err)
	}

	log.Info("data plane started")

	<-ctx.Done()

	log.Info("shutting down")
	db.Shutdown(context.Background())

	return log.Sync()
}
