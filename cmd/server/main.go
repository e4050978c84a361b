package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posledger/internal/config"
	"posledger/internal/logger"
	"posledger/internal/sequence"
	"posledger/internal/store"
	"posledger/internal/store/memory"
	pgstore "posledger/internal/store/postgres"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the environment is loaded.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "posledger",
		Short: "Point-of-sale ledger: sale posting and sales reports",
		Long: `posledger records point-of-sale transactions as invoices, decrements
product stock and aggregates sales into reports.

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envErr := godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			if envErr != nil && !os.IsNotExist(envErr) {
				log.Warn("could not read .env file", zap.Error(envErr))
			}

			a.cfg = cfg
			a.logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newReportCmd(a))
	return root
}

// openRepository picks postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise. A configured but unreachable database is an
// error, never a silent fallback.
func (a *app) openRepository(ctx context.Context) (store.Repository, func(), error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Info("repository selected", zap.String("kind", "memory"))
		if memory.UsingDefaultCredentials() {
			a.logger.Warn("demo accounts use the default password; set SEED_*_PASSWORD to override")
		}
		return memory.NewSeeded(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := pgstore.New(connectCtx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	a.logger.Info("repository selected", zap.String("kind", "postgres"))
	return pg, pg.Close, nil
}

// openCounter returns a Redis backed invoice counter when REDIS_ADDR is set and
// reachable. A nil counter makes the service use the repository sequence.
// Either way the numbers already stored in repo are never handed out again.
func (a *app) openCounter(ctx context.Context, repo store.Repository) (sequence.Counter, func()) {
	if a.cfg.RedisAddr == "" {
		return nil, func() {}
	}

	counter := sequence.NewRedisCounter(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, repo.LastInvoiceSequence)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := counter.Ping(pingCtx); err != nil {
		a.logger.Warn("redis unavailable, using repository invoice sequence", zap.String("addr", a.cfg.RedisAddr), zap.Error(err))
		_ = counter.Close()
		return nil, func() {}
	}

	a.logger.Info("invoice counter selected", zap.String("kind", "redis"))
	return counter, func() {
		if err := counter.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}
