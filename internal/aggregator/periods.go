package aggregator

import (
	"fmt"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

// PeriodStart returns the UTC start of the calendar period containing t.
// Weeks start on Monday.
func PeriodStart(t time.Time, period string) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case models.PeriodDay:
		return midnight
	case models.PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.PeriodQuarter:
		first := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), first, 1, 0, 0, 0, 0, time.UTC)
	case models.PeriodYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		offset := (int(t.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	}
}

// PeriodKey formats the key of the calendar period containing t
func PeriodKey(t time.Time, period string) string {
	start := PeriodStart(t, period)
	switch period {
	case models.PeriodMonth:
		return start.Format("2006-01")
	case models.PeriodQuarter:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	case models.PeriodYear:
		return start.Format("2006")
	default:
		return start.Format("2006-01-02")
	}
}

// fixedLength reports the length of periods that are rolling windows
// anchored at now rather than calendar periods
func fixedLength(period string) (time.Duration, bool) {
	switch period {
	case models.PeriodDay:
		return 24 * time.Hour, true
	case models.PeriodMonth, models.PeriodQuarter, models.PeriodYear:
		return 0, false
	default:
		return 7 * 24 * time.Hour, true
	}
}

// shift moves a calendar period start by n periods (negative goes back in time)
func shift(start time.Time, period string, n int) time.Time {
	switch period {
	case models.PeriodMonth:
		return start.AddDate(0, n, 0)
	case models.PeriodQuarter:
		return start.AddDate(0, 3*n, 0)
	case models.PeriodYear:
		return start.AddDate(n, 0, 0)
	}
	return start
}

// Window is the sequence of trend buckets ending at now, oldest first.
// Day and week buckets are back-to-back windows of 24h and 7d whose last
// one ends at now; month, quarter and year buckets are calendar periods
// ending with the one that contains now.
type Window struct {
	Period string
	Starts []time.Time
	Keys   []string

	end    time.Time
	length time.Duration
	index  map[string]int
}

// NewWindow generates exactly count buckets walking backward from now
func NewWindow(now time.Time, period string, count int) Window {
	if count < 0 {
		count = 0
	}
	now = now.UTC()
	w := Window{
		Period: period,
		Starts: make([]time.Time, count),
		Keys:   make([]string, count),
		end:    now,
	}

	if length, ok := fixedLength(period); ok {
		w.length = length
		for i := 0; i < count; i++ {
			w.Starts[i] = now.Add(-time.Duration(count-i) * length)
			w.Keys[i] = w.Starts[i].Format("2006-01-02")
		}
		return w
	}

	current := PeriodStart(now, period)
	w.index = make(map[string]int, count)
	for i := 0; i < count; i++ {
		w.Starts[i] = shift(current, period, i-(count-1))
		w.Keys[i] = PeriodKey(w.Starts[i], period)
		w.index[w.Keys[i]] = i
	}
	return w
}

// Len is the number of buckets
func (w Window) Len() int {
	return len(w.Starts)
}

// Bucket returns the position of the bucket holding t. Rolling windows
// cover [now-count*length, now]; an instant on an inner boundary belongs to
// the older bucket.
func (w Window) Bucket(t time.Time) (int, bool) {
	n := len(w.Starts)
	if n == 0 {
		return 0, false
	}
	if w.length == 0 {
		i, ok := w.index[PeriodKey(t, w.Period)]
		return i, ok
	}

	t = t.UTC()
	if t.After(w.end) {
		return 0, false
	}
	age := w.end.Sub(t)
	k := int(age / w.length)
	if k == n && age == time.Duration(n)*w.length {
		k = n - 1
	}
	if k >= n {
		return 0, false
	}
	return n - 1 - k, true
}

// Buckets returns the bucket starts of NewWindow, oldest first
func Buckets(now time.Time, period string, count int) []time.Time {
	return NewWindow(now, period, count).Starts
}

// Anchor is the instant a cached run is evaluated at. Rolling windows move
// with now, so it is rounded up to the next whole hour to let runs in the
// same hour share a result; calendar windows keep now.
func Anchor(now time.Time, period string) time.Time {
	now = now.UTC()
	if _, ok := fixedLength(period); !ok {
		return now
	}
	if hour := now.Truncate(time.Hour); !hour.Equal(now) {
		return hour.Add(time.Hour)
	}
	return now
}

// WindowKey names the trend window a run at now produces: the anchor for
// rolling windows, the current calendar period otherwise
func WindowKey(now time.Time, period string) string {
	if _, ok := fixedLength(period); ok {
		return Anchor(now, period).Format(time.RFC3339)
	}
	return PeriodKey(now, period)
}
