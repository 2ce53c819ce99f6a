package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"supplydesk/backend/internal/cache"
	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/config"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/events"
	"supplydesk/backend/internal/logger"
	"supplydesk/backend/internal/service"
	"supplydesk/backend/internal/store"
	fsstore "supplydesk/backend/internal/store/firestore"
	"supplydesk/backend/internal/store/memory"
	pgstore "supplydesk/backend/internal/store/postgres"
)

var version = "0.4.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "backoffice",
		Short: "Supply back-office: daily pivot, billing periods and KPI rollups",
		Long: `backoffice derives the operational views of a restaurant supply business
from its invoice stream: today's item-by-restaurant pivot grid, half-month
billing periods per restaurant, and dashboard KPI rollups.

Data comes from the backend named by DATA_BACKEND (memory, postgres or
firestore). Settings are read from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newPivotCmd(),
		newKPICmd(),
		newPeriodsCmd(),
		newSalesCmd(),
		newMarkPaidCmd(),
		newTokenCmd(),
		newSeedCmd(),
		newMigrateCmd(),
	)
	return root
}

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	policy   calendar.Policy
	repo     store.Repository
	catalogs *catalog.Cache
	closers  []func() error
}

func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logger.WithComponent("bootstrap")

	policy, err := calendar.NewPolicy(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	domain.SetLocalZone(policy.Location())

	a := &app{cfg: cfg, policy: policy, catalogs: catalog.NewCache()}
	switch cfg.DataBackend {
	case config.BackendPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.repo = pg
		a.closers = append(a.closers, pg.Close)
	case config.BackendFirestore:
		fs, err := fsstore.New(ctx, fsstore.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		a.repo = fs
		a.closers = append(a.closers, fs.Close)
	default:
		a.repo = memory.NewSeeded(time.Now())
	}
	log.Info().Str("backend", cfg.DataBackend).Str("timezone", cfg.Timezone).Msg("repository ready")
	return a, nil
}

// service builds a service that always computes fresh views.
func (a *app) service() (*service.Service, error) {
	return a.serviceWith(cache.NoopViewCache{}, events.NoopPublisher{})
}

func (a *app) serviceWith(views cache.ViewCache, publisher events.Publisher) (*service.Service, error) {
	window, err := calendar.ParseOrderWindow(a.cfg.OrderWindowStart, a.cfg.OrderWindowEnd)
	if err != nil {
		return nil, fmt.Errorf("order window: %w", err)
	}
	return service.New(a.repo, a.catalogs, service.Options{
		Policy:      a.policy,
		Views:       views,
		ViewTTL:     a.cfg.ViewCacheTTL(),
		Publisher:   publisher,
		OrderWindow: window,
	}), nil
}

func (a *app) Close() {
	log := logger.WithComponent("bootstrap")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// withApp loads configuration, opens the repository and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
