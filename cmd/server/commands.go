package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posledger/internal/domain"
	"posledger/internal/service"
	pgstore "posledger/internal/store/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL schema",
		Long:  "Apply every pending migration to the database named by DATABASE_URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			repo, closeRepo, err := a.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			pg, ok := repo.(*pgstore.Store)
			if !ok {
				return errors.New("migrate needs a postgres repository")
			}
			applied, err := pg.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied", zap.Strings("versions", applied))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a sales report as JSON",
		Example: `  # Month to date
  posledger report

  # One week, end date inclusive
  posledger report --from 2026-05-01 --to 2026-05-07`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")

			repo, closeRepo, err := a.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := service.New(repo, nil, a.logger, service.Options{Location: a.cfg.ReportLocation})
			ctx := service.WithActor(cmd.Context(), domain.Actor{Username: "cli", Role: domain.RoleAdministrator})
			report, err := svc.GetReport(ctx, from, to)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().String("from", "", "First day of the report (YYYY-MM-DD, default: first of the month)")
	cmd.Flags().String("to", "", "Last day of the report, inclusive (YYYY-MM-DD, default: today)")
	return cmd
}
