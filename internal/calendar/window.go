package calendar

import (
	"fmt"
	"strings"
	"time"
)

type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// OrderWindow is the daily interval during which restaurants may order.
// Both ends are inclusive; a start after the end wraps past midnight.
type OrderWindow struct {
	Start ClockTime
	End   ClockTime
}

func ParseOrderWindow(start, end string) (OrderWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return OrderWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return OrderWindow{}, err
	}
	return OrderWindow{Start: s, End: e}, nil
}

func (w OrderWindow) Contains(p Policy, now time.Time) bool {
	local := p.In(now)
	cur := local.Hour()*60 + local.Minute()
	start, end := w.Start.minutes(), w.End.minutes()
	if start <= end {
		return cur >= start && cur <= end
	}
	return cur >= start || cur <= end
}
