package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Direction is the sign of a Delta.
type Direction string

const (
	Flat Direction = "flat"
	Up   Direction = "up"
	Down Direction = "down"
)

// Delta compares a current value with the previous window's.
type Delta struct {
	Delta     int64     `json:"delta"`
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
}

// TopDomain is the leading entry of the current window and its change.
type TopDomain struct {
	Kind    Kind   `json:"kind"`
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
	Trend   Delta  `json:"trend"`
}

// Trends compares the query window with the window of equal length that
// ends the day before it starts.
type Trends struct {
	Totals    Delta      `json:"totals"`
	TopDomain *TopDomain `json:"topDomain"`
}

// Difference computes the Delta from previous to current. When previous is
// zero the percentage is 100 for growth and 0 otherwise.
func Difference(current, previous int64) Delta {
	delta := current - previous
	d := Delta{Delta: delta, Direction: Flat}
	switch {
	case delta > 0:
		d.Direction = Up
	case delta < 0:
		d.Direction = Down
	}

	switch {
	case delta == 0:
		d.Percent = 0
	case math.Abs(float64(previous)) < 0.0001:
		if delta > 0 {
			d.Percent = 100
		}
	default:
		d.Percent = float64(delta) / float64(previous) * 100
	}
	return d
}

// PreviousRange returns the window of equal length ending the day before
// the query window starts.
func PreviousRange(q Query) (Range, bool) {
	q = q.normalized()
	r, ok := DateRange(q.EndDate, q.Timeframe)
	if !ok {
		return Range{}, false
	}
	return DateRange(r.Start.Add(-24*time.Hour), q.Timeframe)
}

// CalculateTrends returns nil when the query has no valid end date.
func CalculateTrends(days map[string]storage.DayBucket, q Query) *Trends {
	q = q.normalized()
	prevRange, ok := PreviousRange(q)
	if !ok {
		return nil
	}
	prevQuery := q
	prevQuery.EndDate = prevRange.End

	current := AggregateDomains(days, q)
	previous := AggregateDomains(days, prevQuery)

	t := &Trends{
		Totals: Difference(sumEntries(current).TotalSeconds, sumEntries(previous).TotalSeconds),
	}
	if len(current) == 0 {
		return t
	}

	top := current[0]
	var before int64
	for _, e := range previous {
		if e.Kind == top.Kind && e.Domain == top.Domain {
			before = e.TotalSeconds
			break
		}
	}
	t.TopDomain = &TopDomain{
		Kind:    top.Kind,
		Domain:  top.Domain,
		Seconds: top.TotalSeconds,
		Trend:   Difference(top.TotalSeconds, before),
	}
	return t
}

// ComputeStreak counts the run of calendar-consecutive days, ending at the
// most recent day with time under filter, whose filtered total is positive.
// Empty days newer than that are skipped. A zero Filter means FilterActive.
func ComputeStreak(days map[string]storage.DayBucket, filter Filter) int {
	if filter == "" {
		filter = FilterActive
	}
	filter = ParseFilter(string(filter))

	keys := sortedKeys(days)
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	streak := 0
	var last time.Time
	for _, key := range keys {
		day, ok := storage.ParseDayKey(key)
		if !ok {
			continue
		}
		if dayValue(days[key], filter) <= 0 {
			if streak > 0 {
				break
			}
			continue
		}
		if streak > 0 && !day.Equal(last.AddDate(0, 0, -1)) {
			break
		}
		streak++
		last = day
	}
	return streak
}

func dayValue(b storage.DayBucket, filter Filter) int64 {
	totals := b.Idle
	for _, e := range b.Domains {
		totals.Active += e.Active
		totals.Idle += e.Idle
	}
	switch filter {
	case FilterIdle:
		return totals.Idle
	case FilterAll:
		return totals.Total()
	}
	return totals.Active
}
