package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"supplydesk/backend/internal/config"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/httpapi"
	"supplydesk/backend/internal/logger"
	"supplydesk/backend/internal/store"
	"supplydesk/backend/internal/store/memory"
)

func newTokenCmd() *cobra.Command {
	var subject, role string
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Issue a bearer token for the HTTP API",
		Example: `  backoffice token --subject ops@example.com --role admin`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.AuthSecret == "" {
				return fmt.Errorf("AUTH_SECRET is required to issue tokens")
			}
			resp, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL()).Issue(subject, role)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is for")
	cmd.Flags().StringVar(&role, "role", domain.RoleStaff, "staff or admin")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo restaurants, inventory and two weeks of invoices into the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.cfg.DataBackend == config.BackendMemory {
					return fmt.Errorf("seed needs a persistent DATA_BACKEND, got %s", a.cfg.DataBackend)
				}
				dst, ok := a.repo.(store.Seeder)
				if !ok {
					return fmt.Errorf("backend %s does not accept writes", a.cfg.DataBackend)
				}
				n, err := store.Seed(ctx, dst, memory.NewSeeded(time.Now()))
				if err != nil {
					return fmt.Errorf("seed after %d documents: %w", n, err)
				}
				log := logger.WithComponent("seed")
				log.Info().Int("documents", n).Str("backend", a.cfg.DataBackend).Msg("demo data written")
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				m, ok := a.repo.(interface{ Migrate(context.Context) error })
				if !ok {
					return fmt.Errorf("migrate applies to the postgres backend, got %s", a.cfg.DataBackend)
				}
				if err := m.Migrate(ctx); err != nil {
					return err
				}
				log := logger.WithComponent("migrate")
				log.Info().Msg("schema up to date")
				return nil
			})
		},
	}
}
