package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"supplydesk/backend/internal/aggregate"
	"supplydesk/backend/internal/cache"
	"supplydesk/backend/internal/calendar"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/events"
	"supplydesk/backend/internal/store"
)

const paymentWriteParallelism = 8

// BillingPeriods consolidates one restaurant's invoices, from the view cache
// when present.
func (s *Service) BillingPeriods(ctx context.Context, restaurantID string) (domain.Consolidation, error) {
	key := cache.PeriodsKey(restaurantID)
	var out domain.Consolidation
	if s.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.ComputeBillingPeriods(ctx, restaurantID)
	if err != nil {
		return domain.Consolidation{}, err
	}
	s.remember(ctx, key, out)
	return out, nil
}

// ComputeBillingPeriods reads the restaurant's invoices by account id and by
// restaurant name and consolidates their union.
func (s *Service) ComputeBillingPeriods(ctx context.Context, restaurantID string) (domain.Consolidation, error) {
	restaurant, err := s.restaurant(ctx, restaurantID)
	if err != nil {
		return domain.Consolidation{}, err
	}

	invoices, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{UserID: restaurant.ID})
	if err != nil {
		return domain.Consolidation{}, fmt.Errorf("list invoices for %s: %w", restaurant.ID, err)
	}
	if restaurant.RestaurantName != "" {
		byName, err := s.repo.ListInvoices(ctx, store.InvoiceFilter{RestaurantName: restaurant.RestaurantName})
		if err != nil {
			return domain.Consolidation{}, fmt.Errorf("list invoices for %q: %w", restaurant.RestaurantName, err)
		}
		invoices = append(invoices, byName...)
	}

	out := aggregate.Consolidate(restaurant, invoices, s.policy)
	if len(out.Unbucketed) > 0 {
		s.log.Warn().
			Str("restaurant_id", restaurant.ID).
			Strs("invoice_ids", out.Unbucketed).
			Msg("invoices without a readable timestamp left out of billing periods")
	}
	return out, nil
}

func (s *Service) restaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	if restaurantID == "" {
		return domain.Restaurant{}, fmt.Errorf("%w: restaurant id required", store.ErrInvalidInput)
	}
	cat, err := s.reference(ctx)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if r, ok := cat.LookupRestaurant(restaurantID); ok {
		return r, nil
	}
	// The account may have been created after the last refresh.
	cat, err = s.RefreshReference(ctx)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if r, ok := cat.LookupRestaurant(restaurantID); ok {
		return r, nil
	}
	return domain.Restaurant{}, fmt.Errorf("%w: restaurant %s", store.ErrNotFound, restaurantID)
}

// SetPeriodPaid sets isBillPaid on every invoice of one billing period.
// Successful writes are kept when others fail; the returned error then
// wraps store.ErrPartialWrite and the update lists the failed ids.
func (s *Service) SetPeriodPaid(ctx context.Context, restaurantID string, periodKey string, paid bool) (domain.PaymentUpdate, error) {
	key, err := calendar.ParsePeriodKey(periodKey)
	if err != nil {
		return domain.PaymentUpdate{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	consolidation, err := s.ComputeBillingPeriods(ctx, restaurantID)
	if err != nil {
		return domain.PaymentUpdate{}, err
	}
	period, ok := aggregate.FindPeriod(consolidation, key)
	if !ok {
		return domain.PaymentUpdate{}, fmt.Errorf("%w: period %s for restaurant %s", store.ErrNotFound, key, restaurantID)
	}

	results := make([]error, len(period.Invoices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(paymentWriteParallelism)
	for i, inv := range period.Invoices {
		i, inv := i, inv
		g.Go(func() error {
			results[i] = s.repo.SetInvoiceBillPaid(gctx, inv.ID, paid)
			return nil
		})
	}
	_ = g.Wait()

	update := domain.PaymentUpdate{
		RestaurantID: restaurantID,
		PeriodKey:    key.String(),
		Paid:         paid,
		Updated:      []string{},
		Failed:       []string{},
	}
	for i, inv := range period.Invoices {
		if results[i] != nil {
			s.log.Warn().Err(results[i]).
				Str("restaurant_id", restaurantID).
				Str("invoice_id", inv.ID).
				Msg("invoice payment update failed")
			update.Failed = append(update.Failed, inv.ID)
			continue
		}
		update.Updated = append(update.Updated, inv.ID)
	}

	s.invalidate(ctx, cache.KPIKey(), cache.PivotKey(s.policy.DateKey(s.clock())), cache.PeriodsKey(restaurantID))
	s.publishPayment(ctx, update)

	if len(update.Failed) > 0 {
		return update, fmt.Errorf("%w: %d of %d invoices not updated", store.ErrPartialWrite, len(update.Failed), len(period.Invoices))
	}
	return update, nil
}

func (s *Service) publishPayment(ctx context.Context, update domain.PaymentUpdate) {
	payload := map[string]any{"update": update}
	if actor, ok := ActorFromContext(ctx); ok {
		payload["actor"] = actor.Subject
	}
	if err := s.publisher.Publish(ctx, events.New(events.TypePeriodPayment, payload)); err != nil {
		s.log.Warn().Err(err).Str("period", update.PeriodKey).Msg("publish period payment event failed")
	}
}
