package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posledger/internal/domain"
	"posledger/internal/httpapi"
	"posledger/internal/jobs"
	"posledger/internal/service"
	pgstore "posledger/internal/store/postgres"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

Required environment variables:
  AUTH_SECRET     - token signing secret, at least 32 characters
  ALLOWED_ORIGIN  - CORS origin of the point-of-sale client

Optional:
  DATABASE_URL    - PostgreSQL connection string (in-memory demo data when unset)
  REDIS_ADDR      - Redis address for the invoice number counter`,
		Example: `  # Serve with migrations applied on start
  posledger serve

  # Serve against an already migrated database
  posledger serve --migrate=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().Bool("migrate", true, "Apply pending database migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	if err := a.cfg.ValidateSecurity(); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	if pg, ok := repo.(*pgstore.Store); ok && migrate {
		applied, err := pg.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			a.logger.Info("migrations applied", zap.Strings("versions", applied))
		}
	}

	counter, closeCounter := a.openCounter(ctx, repo)
	defer closeCounter()

	svc := service.New(repo, counter, a.logger, service.Options{
		Location:            a.cfg.ReportLocation,
		EnforceCatalogPrice: a.cfg.EnforceCatalogPrice,
	})
	auth := httpapi.NewAuthManager(ctx, a.cfg.AuthSecret, time.Duration(a.cfg.AccessTokenTTLMinutes)*time.Minute, repo, a.logger)
	if err := seedUsers(ctx, auth, a.logger); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	api := httpapi.New(svc, auth, a.cfg.AllowedOrigin, a.logger)

	if a.cfg.LowStockScanInterval > 0 {
		monitor, err := jobs.NewLowStockMonitor(repo, a.logger, a.cfg.LowStockScanInterval)
		if err != nil {
			return fmt.Errorf("low stock monitor: %w", err)
		}
		monitor.Start()
		defer func() {
			if err := monitor.Stop(); err != nil {
				a.logger.Warn("stop low stock monitor", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", server.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutdown error", zap.Error(err))
	}

	a.logger.Info("server stopped")
	return nil
}

type userSeeder interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error)
}

// seedUsers creates one account per role on an empty user table, reading the
// passwords from SEED_*_PASSWORD.
func seedUsers(ctx context.Context, users userSeeder, log *zap.Logger) error {
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, seed := range []struct {
		username string
		name     string
		envKey   string
		role     domain.Role
	}{
		{"admin", "Admin User", "SEED_ADMIN_PASSWORD", domain.RoleAdministrator},
		{"manager", "Manager User", "SEED_MANAGER_PASSWORD", domain.RoleManager},
		{"cashier", "Cashier User", "SEED_CASHIER_PASSWORD", domain.RoleCashier},
	} {
		password := os.Getenv(seed.envKey)
		if password == "" {
			password = "password"
			log.Warn("seeding user with the default password", zap.String("username", seed.username), zap.String("env", seed.envKey))
		}
		if _, err := users.CreateUser(ctx, domain.UserCreateRequest{
			Username: seed.username,
			Name:     seed.name,
			Password: password,
			Role:     seed.role,
		}); err != nil {
			return fmt.Errorf("create %s: %w", seed.username, err)
		}
	}
	return nil
}
