package cache

import (
	"context"
	"fmt"
	"time"
)

const keyPrefix = "supplydesk:view:"

// ViewCache stores rendered views as JSON. Get reports false on a miss.
type ViewCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func KPIKey() string {
	return keyPrefix + "kpi"
}

func PivotKey(date string) string {
	return fmt.Sprintf("%spivot:%s", keyPrefix, date)
}

func PeriodsKey(restaurantID string) string {
	return fmt.Sprintf("%speriods:%s", keyPrefix, restaurantID)
}

type NoopViewCache struct{}

func (NoopViewCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopViewCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopViewCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
