// Package catalog keeps an immutable snapshot of reference data (inventory
// items, categories, restaurant accounts) and answers join lookups on it.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/store"
)

type Catalog struct {
	items       []domain.InventoryItem
	categories  []domain.Category
	restaurants []domain.Restaurant

	itemByTitle      map[string]int
	categoryByID     map[string]int
	restaurantByID   map[string]int
	restaurantByName map[string]int
	loadedAt         time.Time
}

// New indexes the given reference data. On duplicate keys the first entry
// wins.
func New(items []domain.InventoryItem, categories []domain.Category, restaurants []domain.Restaurant, loadedAt time.Time) *Catalog {
	c := &Catalog{
		items:            slices.Clone(items),
		categories:       slices.Clone(categories),
		restaurants:      slices.Clone(restaurants),
		itemByTitle:      make(map[string]int, len(items)),
		categoryByID:     make(map[string]int, len(categories)),
		restaurantByID:   make(map[string]int, len(restaurants)),
		restaurantByName: make(map[string]int, len(restaurants)),
		loadedAt:         loadedAt,
	}
	for i, item := range c.items {
		if _, ok := c.itemByTitle[item.Title]; !ok {
			c.itemByTitle[item.Title] = i
		}
	}
	for i, cat := range c.categories {
		if _, ok := c.categoryByID[cat.ID]; !ok {
			c.categoryByID[cat.ID] = i
		}
	}
	for i, r := range c.restaurants {
		if _, ok := c.restaurantByID[r.ID]; !ok && r.ID != "" {
			c.restaurantByID[r.ID] = i
		}
		if _, ok := c.restaurantByName[r.RestaurantName]; !ok && r.RestaurantName != "" {
			c.restaurantByName[r.RestaurantName] = i
		}
	}
	return c
}

func Empty() *Catalog {
	return New(nil, nil, nil, time.Time{})
}

// WithItems returns a copy of c whose inventory is replaced by items.
func (c *Catalog) WithItems(items []domain.InventoryItem, at time.Time) *Catalog {
	return New(items, c.categories, c.restaurants, at)
}

func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

func (c *Catalog) Items() []domain.InventoryItem {
	return slices.Clone(c.items)
}

func (c *Catalog) Categories() []domain.Category {
	return slices.Clone(c.categories)
}

func (c *Catalog) Restaurants() []domain.Restaurant {
	return slices.Clone(c.restaurants)
}

// LookupItem finds an inventory item by exact title.
func (c *Catalog) LookupItem(title string) (domain.InventoryItem, bool) {
	i, ok := c.itemByTitle[title]
	if !ok {
		return domain.InventoryItem{}, false
	}
	return c.items[i], true
}

func (c *Catalog) LookupCategory(id string) (domain.Category, bool) {
	i, ok := c.categoryByID[id]
	if !ok {
		return domain.Category{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) LookupRestaurant(id string) (domain.Restaurant, bool) {
	i, ok := c.restaurantByID[id]
	if !ok {
		return domain.Restaurant{}, false
	}
	return c.restaurants[i], true
}

func (c *Catalog) LookupRestaurantByName(name string) (domain.Restaurant, bool) {
	i, ok := c.restaurantByName[name]
	if !ok {
		return domain.Restaurant{}, false
	}
	return c.restaurants[i], true
}

// CategoryNameOf resolves an ordered line title to its category name,
// falling back to Uncategorized when either hop of the join misses.
func (c *Catalog) CategoryNameOf(title string) string {
	item, ok := c.LookupItem(title)
	if !ok {
		return domain.UncategorizedName
	}
	cat, ok := c.LookupCategory(item.CategoryID)
	if !ok || cat.Name == "" {
		return domain.UncategorizedName
	}
	return cat.Name
}

// Cache holds the current catalog and swaps it atomically, so readers
// always see one complete snapshot.
type Cache struct {
	current atomic.Pointer[Catalog]
	now     func() time.Time
}

func NewCache() *Cache {
	c := &Cache{now: time.Now}
	c.current.Store(Empty())
	return c
}

func (c *Cache) Current() *Catalog {
	return c.current.Load()
}

func (c *Cache) Swap(next *Catalog) {
	if next == nil {
		next = Empty()
	}
	c.current.Store(next)
}

// SwapItems replaces only the inventory of the current catalog.
func (c *Cache) SwapItems(items []domain.InventoryItem) *Catalog {
	next := c.Current().WithItems(items, c.now().UTC())
	c.Swap(next)
	return next
}

// Refresh reloads all reference data. The previous catalog stays in place
// when any read fails.
func (c *Cache) Refresh(ctx context.Context, src store.ReferenceDataSource) (*Catalog, error) {
	items, err := src.ListInventoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory items: %w", err)
	}
	categories, err := src.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	restaurants, err := src.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load restaurants: %w", err)
	}
	next := New(items, categories, restaurants, c.now().UTC())
	c.Swap(next)
	return next, nil
}
