package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"supplydesk/backend/internal/aggregate"
	"supplydesk/backend/internal/cache"
	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/events"
	"supplydesk/backend/internal/logger"
	"supplydesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Policy      calendar.Policy
	Views       cache.ViewCache
	ViewTTL     time.Duration
	Publisher   events.Publisher
	OrderWindow calendar.OrderWindow
	Clock       func() time.Time
	Logger      *zerolog.Logger
}

type Service struct {
	repo      store.Repository
	catalogs  *catalog.Cache
	policy    calendar.Policy
	views     cache.ViewCache
	viewTTL   time.Duration
	publisher events.Publisher
	window    calendar.OrderWindow
	clock     func() time.Time
	log       zerolog.Logger
}

func New(repo store.Repository, catalogs *catalog.Cache, opts Options) *Service {
	if catalogs == nil {
		catalogs = catalog.NewCache()
	}
	if opts.Views == nil {
		opts.Views = cache.NoopViewCache{}
	}
	if opts.ViewTTL <= 0 {
		opts.ViewTTL = 5 * time.Minute
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := logger.WithComponent("service")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		repo:      repo,
		catalogs:  catalogs,
		policy:    opts.Policy,
		views:     opts.Views,
		viewTTL:   opts.ViewTTL,
		publisher: opts.Publisher,
		window:    opts.OrderWindow,
		clock:     opts.Clock,
		log:       log,
	}
}

func (s *Service) Policy() calendar.Policy {
	return s.policy
}

func (s *Service) Now() time.Time {
	return s.clock()
}

// RefreshReference reloads inventory, categories and restaurant accounts.
func (s *Service) RefreshReference(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := s.catalogs.Refresh(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Int("items", len(cat.Items())).
		Int("categories", len(cat.Categories())).
		Int("restaurants", len(cat.Restaurants())).
		Msg("reference data refreshed")
	return cat, nil
}

func (s *Service) reference(ctx context.Context) (*catalog.Catalog, error) {
	cat := s.catalogs.Current()
	if !cat.LoadedAt().IsZero() {
		return cat, nil
	}
	return s.RefreshReference(ctx)
}

// DailyPivot returns today's pivot grid, from the view cache when present.
func (s *Service) DailyPivot(ctx context.Context, now time.Time) (domain.PivotGrid, error) {
	key := cache.PivotKey(s.policy.DateKey(now))
	var grid domain.PivotGrid
	if s.cached(ctx, key, &grid) {
		return grid, nil
	}
	grid, err := s.ComputePivot(ctx, now)
	if err != nil {
		return domain.PivotGrid{}, err
	}
	s.remember(ctx, key, grid)
	return grid, nil
}

func (s *Service) ComputePivot(ctx context.Context, now time.Time) (domain.PivotGrid, error) {
	cat, err := s.reference(ctx)
	if err != nil {
		return domain.PivotGrid{}, err
	}
	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return domain.PivotGrid{}, fmt.Errorf("list invoices: %w", err)
	}
	return aggregate.BuildPivot(invoices, cat, s.policy, now), nil
}

// KPIs returns the dashboard rollup, from the view cache when present.
func (s *Service) KPIs(ctx context.Context, now time.Time) (domain.KPIRollup, error) {
	var rollup domain.KPIRollup
	if s.cached(ctx, cache.KPIKey(), &rollup) {
		return rollup, nil
	}
	rollup, err := s.ComputeKPIs(ctx, now)
	if err != nil {
		return domain.KPIRollup{}, err
	}
	s.remember(ctx, cache.KPIKey(), rollup)
	return rollup, nil
}

func (s *Service) ComputeKPIs(ctx context.Context, now time.Time) (domain.KPIRollup, error) {
	cat, err := s.reference(ctx)
	if err != nil {
		return domain.KPIRollup{}, err
	}
	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return domain.KPIRollup{}, fmt.Errorf("list invoices: %w", err)
	}
	inventory, err := s.repo.ListInventoryItems(ctx)
	if err != nil {
		return domain.KPIRollup{}, fmt.Errorf("list inventory items: %w", err)
	}
	return aggregate.Rollup(invoices, inventory, cat, s.policy, now), nil
}

// SalesSummary totals the month (YYYY-MM) and the day (YYYY-MM-DD). Empty
// arguments default to the current month and day.
func (s *Service) SalesSummary(ctx context.Context, month string, day string) (domain.SalesReport, error) {
	now := s.clock()
	monthAt, dayAt := now, now
	var err error
	if month != "" {
		if monthAt, err = s.policy.ParseMonth(month); err != nil {
			return domain.SalesReport{}, fmt.Errorf("%w: month %q", store.ErrInvalidInput, month)
		}
	}
	if day != "" {
		if dayAt, err = s.policy.ParseDate(day); err != nil {
			return domain.SalesReport{}, fmt.Errorf("%w: date %q", store.ErrInvalidInput, day)
		}
	}

	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{})
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("list invoices: %w", err)
	}
	return domain.SalesReport{
		Month: aggregate.MonthSales(invoices, s.policy, monthAt),
		Day:   aggregate.DaySales(invoices, s.policy, dayAt),
	}, nil
}

func (s *Service) OrderWindow(now time.Time) domain.OrderWindowStatus {
	return domain.OrderWindowStatus{
		Start:  s.window.Start.String(),
		End:    s.window.End.String(),
		Now:    s.policy.In(now).Format("15:04"),
		Active: s.window.Contains(s.policy, now),
	}
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	ok, err := s.views.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("view cache read failed")
		return false
	}
	return ok
}

func (s *Service) remember(ctx context.Context, key string, value any) {
	if err := s.views.Set(ctx, key, value, s.viewTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("view cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.views.Delete(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("view cache invalidation failed")
	}
}
