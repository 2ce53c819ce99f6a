package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydesk/backend/internal/domain"
)

func londonPolicy(t *testing.T) Policy {
	t.Helper()
	p, err := NewPolicy("Europe/London")
	require.NoError(t, err)
	return p
}

func TestPeriodOfSplitsOnTheFifteenth(t *testing.T) {
	p := londonPolicy(t)

	k15, ok := p.PeriodOf(time.Date(2024, 3, 15, 23, 30, 0, 0, p.Location()))
	require.True(t, ok)
	k16, ok := p.PeriodOf(time.Date(2024, 3, 16, 0, 0, 0, 0, p.Location()))
	require.True(t, ok)

	assert.Equal(t, "2024-03-first", k15.String())
	assert.Equal(t, "2024-03-second", k16.String())

	start, end := p.Window(k15)
	assert.Equal(t, "2024-03-01", start.Format("2006-01-02"))
	assert.Equal(t, "2024-03-15", end.Format("2006-01-02"))

	start, end = p.Window(k16)
	assert.Equal(t, "2024-03-16", start.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", end.Format("2006-01-02"))
}

func TestPeriodOfUsesLocalDay(t *testing.T) {
	p := londonPolicy(t)

	// 23:30 UTC on 15 June is 00:30 on 16 June in London (BST).
	k, ok := p.PeriodOf(time.Date(2024, 6, 15, 23, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, domain.HalfSecond, k.Half)
}

func TestWindowHandlesFebruaryAndYearEnd(t *testing.T) {
	p := londonPolicy(t)

	_, end := p.Window(PeriodKey{Year: 2024, Month: time.February, Half: domain.HalfSecond})
	assert.Equal(t, "2024-02-29", end.Format("2006-01-02"))

	_, end = p.Window(PeriodKey{Year: 2023, Month: time.December, Half: domain.HalfSecond})
	assert.Equal(t, "2023-12-31", end.Format("2006-01-02"))
}

func TestPeriodOfZeroTime(t *testing.T) {
	_, ok := londonPolicy(t).PeriodOf(time.Time{})
	assert.False(t, ok)
}

func TestParsePeriodKey(t *testing.T) {
	k, err := ParsePeriodKey("2024-03-second")
	require.NoError(t, err)
	assert.Equal(t, PeriodKey{Year: 2024, Month: time.March, Half: domain.HalfSecond}, k)

	for _, bad := range []string{"", "2024-13-first", "2024-03-third", "x-03-first", "2024-03"} {
		_, err := ParsePeriodKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestPeriodKeyLess(t *testing.T) {
	a := PeriodKey{Year: 2023, Month: time.December, Half: domain.HalfSecond}
	b := PeriodKey{Year: 2024, Month: time.January, Half: domain.HalfFirst}
	c := PeriodKey{Year: 2024, Month: time.January, Half: domain.HalfSecond}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(b))
	assert.False(t, b.Less(b))
}

func TestIsTodayBounds(t *testing.T) {
	p := londonPolicy(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, p.Location())

	assert.True(t, p.IsToday(time.Date(2024, 3, 15, 0, 0, 0, 0, p.Location()), now))
	assert.True(t, p.IsToday(time.Date(2024, 3, 15, 23, 59, 59, 999_000_000, p.Location()), now))
	assert.True(t, p.IsToday(time.Date(2024, 3, 15, 23, 59, 59, 999_500_000, p.Location()), now))
	assert.True(t, p.IsToday(time.Date(2024, 3, 15, 23, 59, 59, 999_999_999, p.Location()), now))
	assert.False(t, p.IsToday(time.Date(2024, 3, 16, 0, 0, 0, 0, p.Location()), now))
	assert.False(t, p.IsToday(time.Date(2024, 3, 14, 23, 59, 59, 0, p.Location()), now))
	assert.False(t, p.IsToday(time.Time{}, now))
}

func TestDayBoundsAcrossDSTChange(t *testing.T) {
	p := londonPolicy(t)
	// Clocks go forward on 31 March 2024; the local day is 23 hours long.
	start, next := p.DayBounds(time.Date(2024, 3, 31, 12, 0, 0, 0, p.Location()))
	assert.Equal(t, 23*time.Hour, next.Sub(start))
}

func TestOrderWindow(t *testing.T) {
	p := londonPolicy(t)
	at := func(h, m int) time.Time { return time.Date(2024, 3, 15, h, m, 0, 0, p.Location()) }

	w, err := ParseOrderWindow("09:00", "23:00")
	require.NoError(t, err)
	assert.True(t, w.Contains(p, at(9, 0)))
	assert.True(t, w.Contains(p, at(23, 0)))
	assert.False(t, w.Contains(p, at(8, 59)))
	assert.False(t, w.Contains(p, at(23, 1)))

	overnight, err := ParseOrderWindow("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, overnight.Contains(p, at(23, 30)))
	assert.True(t, overnight.Contains(p, at(1, 15)))
	assert.False(t, overnight.Contains(p, at(12, 0)))

	_, err = ParseOrderWindow("9am", "23:00")
	assert.Error(t, err)
}
