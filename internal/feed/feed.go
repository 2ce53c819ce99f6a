// Package feed keeps the derived views current. It subscribes to the live
// invoice and inventory snapshots, recomputes every view from scratch on
// each push and writes the results to the view cache.
package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"supplydesk/backend/internal/aggregate"
	"supplydesk/backend/internal/cache"
	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/catalog"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/events"
	"supplydesk/backend/internal/logger"
	"supplydesk/backend/internal/store"
)

type Source interface {
	store.ReferenceDataSource
	store.InvoiceFeed
}

type Options struct {
	Policy       calendar.Policy
	Views        cache.ViewCache
	ViewTTL      time.Duration
	Publisher    events.Publisher
	RefreshEvery time.Duration
	Clock        func() time.Time
}

// Views is one complete recomputation.
type Views struct {
	Pivot          domain.PivotGrid
	KPI            domain.KPIRollup
	Consolidations []domain.Consolidation
}

type Runner struct {
	src       Source
	catalogs  *catalog.Cache
	policy    calendar.Policy
	views     cache.ViewCache
	viewTTL   time.Duration
	publisher events.Publisher
	refresh   time.Duration
	clock     func() time.Time
	log       zerolog.Logger

	mu            sync.Mutex
	invoices      []domain.Invoice
	haveInvoices  bool
	latest        Views
	recomputes    int
	lowStockNames string
}

func NewRunner(src Source, catalogs *catalog.Cache, opts Options) *Runner {
	if catalogs == nil {
		catalogs = catalog.NewCache()
	}
	if opts.Views == nil {
		opts.Views = cache.NoopViewCache{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		src:       src,
		catalogs:  catalogs,
		policy:    opts.Policy,
		views:     opts.Views,
		viewTTL:   opts.ViewTTL,
		publisher: opts.Publisher,
		refresh:   opts.RefreshEvery,
		clock:     opts.Clock,
		log:       logger.WithComponent("feed"),
	}
}

// Run blocks until ctx is done or a subscription fails.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.catalogs.Refresh(ctx, r.src); err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	r.log.Info().Dur("refresh_every", r.refresh).Msg("live feed started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.src.SubscribeInvoices(gctx, store.InvoiceFilter{}, r.onInvoices)
	})
	g.Go(func() error {
		return r.src.SubscribeInventory(gctx, r.onInventory)
	})
	g.Go(func() error {
		return r.refreshLoop(gctx)
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	r.log.Info().Msg("live feed stopped")
	return nil
}

func (r *Runner) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.catalogs.Refresh(ctx, r.src); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn().Err(err).Msg("reference refresh failed, keeping previous snapshot")
				continue
			}
			r.recompute(ctx)
		}
	}
}

func (r *Runner) onInvoices(invoices []domain.Invoice) {
	r.mu.Lock()
	r.invoices = invoices
	r.haveInvoices = true
	r.mu.Unlock()
	r.log.Debug().Int("invoices", len(invoices)).Msg("invoice snapshot received")
	r.recompute(context.Background())
}

func (r *Runner) onInventory(items []domain.InventoryItem) {
	r.catalogs.SwapItems(items)
	r.log.Debug().Int("items", len(items)).Msg("inventory snapshot received")
	r.recompute(context.Background())
}

// recompute derives every view from the latest snapshots. Passes are
// serialized; a later pass overwrites the cached output of an earlier one.
func (r *Runner) recompute(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveInvoices {
		return
	}

	now := r.clock()
	cat := r.catalogs.Current()
	inventory := cat.Items()

	views := Views{
		Pivot: aggregate.BuildPivot(r.invoices, cat, r.policy, now),
		KPI:   aggregate.Rollup(r.invoices, inventory, cat, r.policy, now),
	}
	for _, restaurant := range cat.Restaurants() {
		if restaurant.ID == "" {
			continue
		}
		views.Consolidations = append(views.Consolidations, aggregate.Consolidate(restaurant, r.invoices, r.policy))
	}
	r.latest = views
	r.recomputes++

	r.write(ctx, cache.PivotKey(views.Pivot.Date), views.Pivot)
	r.write(ctx, cache.KPIKey(), views.KPI)
	for _, c := range views.Consolidations {
		r.write(ctx, cache.PeriodsKey(c.RestaurantID), c)
	}

	r.announceLowStock(ctx, views.KPI.LowStockItems)
}

func (r *Runner) write(ctx context.Context, key string, value any) {
	if err := r.views.Set(ctx, key, value, r.viewTTL); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("view cache write failed")
	}
}

func (r *Runner) announceLowStock(ctx context.Context, items []domain.LowStockItem) {
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	sort.Strings(titles)
	names := strings.Join(titles, "\x00")
	if names == r.lowStockNames {
		return
	}
	r.lowStockNames = names
	if len(items) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events.New(events.TypeLowStock, map[string]any{"items": items})); err != nil {
		r.log.Warn().Err(err).Int("items", len(items)).Msg("publish low stock event failed")
	}
}

// Latest returns the most recent recomputation and how many have run.
func (r *Runner) Latest() (Views, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.recomputes
}
