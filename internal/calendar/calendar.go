// Package calendar holds the business-time rules: which zone defines a day,
// how days split into half-month billing periods, and when ordering is open.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"supplydesk/backend/internal/domain"
)

const DefaultTimezone = "Europe/London"

// Policy pins every calendar decision to one location.
type Policy struct {
	loc *time.Location
}

func NewPolicy(name string) (Policy, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Policy{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Policy{loc: loc}, nil
}

func PolicyIn(loc *time.Location) Policy {
	return Policy{loc: loc}
}

func (p Policy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

func (p Policy) In(t time.Time) time.Time {
	return t.In(p.Location())
}

// StartOfDay returns local midnight of the day containing t.
func (p Policy) StartOfDay(t time.Time) time.Time {
	local := p.In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Location())
}

// DayBounds returns the local day containing now as [start, next), where
// next is the following local midnight.
func (p Policy) DayBounds(now time.Time) (time.Time, time.Time) {
	start := p.StartOfDay(now)
	next := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, p.Location())
	return start, next
}

func (p Policy) IsToday(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	start, next := p.DayBounds(now)
	return !t.Before(start) && t.Before(next)
}

func (p Policy) SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	la, lb := p.In(a), p.In(b)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// DaysBack returns the same local wall-clock time n calendar days earlier.
func (p Policy) DaysBack(now time.Time, n int) time.Time {
	return p.In(now).AddDate(0, 0, -n)
}

func (p Policy) DateKey(t time.Time) string {
	return p.In(t).Format("2006-01-02")
}

func (p Policy) MonthKey(t time.Time) string {
	return p.In(t).Format("2006-01")
}

func (p Policy) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), p.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func (p Policy) ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), p.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}

// PeriodKey identifies a half-month billing period.
type PeriodKey struct {
	Year  int
	Month time.Month
	Half  domain.Half
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d-%s", k.Year, int(k.Month), k.Half)
}

// Less orders keys chronologically.
func (k PeriodKey) Less(other PeriodKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Half == domain.HalfFirst && other.Half == domain.HalfSecond
}

func ParsePeriodKey(s string) (PeriodKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return PeriodKey{}, fmt.Errorf("period key %q must look like 2024-03-first", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return PeriodKey{}, fmt.Errorf("period key %q: invalid year", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return PeriodKey{}, fmt.Errorf("period key %q: invalid month", s)
	}
	half := domain.Half(strings.ToLower(parts[2]))
	if half != domain.HalfFirst && half != domain.HalfSecond {
		return PeriodKey{}, fmt.Errorf("period key %q: half must be first or second", s)
	}
	return PeriodKey{Year: year, Month: time.Month(month), Half: half}, nil
}

// PeriodOf buckets t by its local calendar day: days 1-15 are the first
// half, 16 onward the second. ok is false for the zero time.
func (p Policy) PeriodOf(t time.Time) (PeriodKey, bool) {
	if t.IsZero() {
		return PeriodKey{}, false
	}
	local := p.In(t)
	half := domain.HalfSecond
	if local.Day() <= 15 {
		half = domain.HalfFirst
	}
	return PeriodKey{Year: local.Year(), Month: local.Month(), Half: half}, true
}

// Window returns the first and last calendar dates of the period as local
// midnights.
func (p Policy) Window(k PeriodKey) (time.Time, time.Time) {
	loc := p.Location()
	if k.Half == domain.HalfFirst {
		return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc), time.Date(k.Year, k.Month, 15, 0, 0, 0, 0, loc)
	}
	return time.Date(k.Year, k.Month, 16, 0, 0, 0, 0, loc), time.Date(k.Year, k.Month+1, 0, 0, 0, 0, 0, loc)
}
