package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// NumberFrom coerces a loosely typed document value to a finite float64.
// Missing, non-numeric and non-finite values become 0.
func NumberFrom(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	return Finite(f)
}

func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func StringFrom(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func BoolFrom(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}

var localZone atomic.Pointer[time.Location]

// SetLocalZone sets the zone used for timestamp strings that carry no
// offset. A nil loc restores UTC.
func SetLocalZone(loc *time.Location) {
	localZone.Store(loc)
}

func LocalZone() *time.Location {
	if loc := localZone.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimeFrom reads a timestamp from a document value. It accepts native times,
// ISO-8601 strings, epoch seconds and {seconds, nanoseconds} maps. Strings
// without a zone are read in LocalZone. The zero time is returned when
// nothing usable is present or the epoch is outside years 1970 to 9999.
func TimeFrom(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		loc := LocalZone()
		for _, layout := range timeLayouts {
			if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
				return parsed
			}
		}
		return time.Time{}
	case map[string]any:
		secs, ok := t["seconds"]
		if !ok {
			secs, ok = t["_seconds"]
		}
		if !ok {
			return time.Time{}
		}
		nanos := t["nanoseconds"]
		if nanos == nil {
			nanos = t["_nanoseconds"]
		}
		return epoch(NumberFrom(secs), NumberFrom(nanos))
	case nil:
		return time.Time{}
	default:
		secs := NumberFrom(v)
		if secs == 0 {
			return time.Time{}
		}
		return epoch(secs, 0)
	}
}

// maxEpochSeconds is 9999-12-31T23:59:59Z. Larger values, such as epoch
// milliseconds, are not read as seconds.
const maxEpochSeconds = 253402300799

func epoch(secs, nanos float64) time.Time {
	if secs == 0 && nanos == 0 {
		return time.Time{}
	}
	if secs < 0 || secs > maxEpochSeconds {
		return time.Time{}
	}
	return time.Unix(int64(secs), int64(nanos)).UTC()
}

func LineItemFromDocument(doc map[string]any) LineItem {
	return LineItem{
		Title:    StringFrom(doc["title"]),
		Brand:    StringFrom(doc["brand"]),
		Units:    StringFrom(doc["units"]),
		Price:    NumberFrom(doc["price"]),
		Quantity: NumberFrom(doc["quantity"]),
	}
}

func LineItemsFromDocument(v any) []LineItem {
	raw, ok := v.([]any)
	if !ok {
		return []LineItem{}
	}
	items := make([]LineItem, 0, len(raw))
	for _, entry := range raw {
		doc, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, LineItemFromDocument(doc))
	}
	return items
}

// DecodeLineItems parses a JSON array of line items with the same tolerance
// as document decoding.
func DecodeLineItems(raw []byte) ([]LineItem, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []LineItem{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var entries any
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	return LineItemsFromDocument(entries), nil
}

func InvoiceFromDocument(id string, doc map[string]any) Invoice {
	return Invoice{
		ID:             id,
		UserID:         StringFrom(doc["userId"]),
		RestaurantName: StringFrom(doc["restaurantName"]),
		CreatedAt:      TimeFrom(doc["createdAt"]),
		Items:          LineItemsFromDocument(doc["items"]),
		OrderStatus:    StringFrom(doc["orderStatus"]),
		IsBillPaid:     BoolFrom(doc["isBillPaid"]),
		TotalPrice:     NumberFrom(doc["totalPrice"]),
	}
}

func InventoryItemFromDocument(id string, doc map[string]any) InventoryItem {
	return InventoryItem{
		ID:                id,
		Title:             StringFrom(doc["title"]),
		Brand:             StringFrom(doc["brand"]),
		CategoryID:        StringFrom(doc["categoryId"]),
		AvailableQuantity: NumberFrom(doc["availableQuantity"]),
		SoldQuantity:      NumberFrom(doc["soldQuantity"]),
		Price:             NumberFrom(doc["price"]),
	}
}

func CategoryFromDocument(id string, doc map[string]any) Category {
	return Category{ID: id, Name: StringFrom(doc["category"])}
}

func RestaurantFromDocument(id string, doc map[string]any) Restaurant {
	return Restaurant{
		ID:             id,
		RestaurantName: StringFrom(doc["restaurantName"]),
		Email:          StringFrom(doc["email"]),
		Phone:          StringFrom(doc["phone"]),
		Address:        StringFrom(doc["address"]),
	}
}
