// Package analytics derives totals, trends, streaks and top-N summaries
// from ledger day buckets. Every function is pure.
package analytics

import (
	"sort"
	"time"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Timeframe selects the window length ending at a query's end date.
type Timeframe string

const (
	Day   Timeframe = "day"
	Week  Timeframe = "week"
	Month Timeframe = "month"
)

// ParseTimeframe maps unknown values to Day.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Week:
		return Week
	case Month:
		return Month
	}
	return Day
}

// days returns the window length in calendar days.
func (tf Timeframe) days() int {
	switch tf {
	case Week:
		return 7
	case Month:
		return 30
	}
	return 1
}

// Filter selects which activity counters contribute to an aggregate.
type Filter string

const (
	FilterActive Filter = "active"
	FilterIdle   Filter = "idle"
	FilterAll    Filter = "all"
)

// ParseFilter maps unknown values to FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterActive:
		return FilterActive
	case FilterIdle:
		return FilterIdle
	}
	return FilterAll
}

func (f Filter) includesActive() bool { return f != FilterIdle }
func (f Filter) includesIdle() bool   { return f != FilterActive }

// Kind distinguishes real domains from the idle bucket in aggregated output.
type Kind string

const (
	KindDomain Kind = "domain"
	KindIdle   Kind = "idle"
)

// Entry is one aggregated row. Domain is empty for KindIdle.
type Entry struct {
	Kind          Kind   `json:"kind"`
	Domain        string `json:"domain"`
	ActiveSeconds int64  `json:"activeSeconds"`
	IdleSeconds   int64  `json:"idleSeconds"`
	TotalSeconds  int64  `json:"totalSeconds"`
}

// Totals sums a set of entries.
type Totals struct {
	ActiveSeconds int64 `json:"activeSeconds"`
	IdleSeconds   int64 `json:"idleSeconds"`
	TotalSeconds  int64 `json:"totalSeconds"`
}

// Range is an inclusive UTC window. End is the last nanosecond of its day.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the UTC day key falls inside r.
func (r Range) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// Query selects a window and filter. A zero Timeframe or Filter means Day
// or FilterAll.
type Query struct {
	EndDate   time.Time
	Timeframe Timeframe
	Filter    Filter
}

func (q Query) normalized() Query {
	q.Timeframe = ParseTimeframe(string(q.Timeframe))
	q.Filter = ParseFilter(string(q.Filter))
	return q
}

// DateRange returns the window of tf ending on the UTC day of end. It
// reports false for the zero time.
func DateRange(end time.Time, tf Timeframe) (Range, bool) {
	if end.IsZero() {
		return Range{}, false
	}
	last := storage.StartOfDay(end)
	return Range{
		Start: last.AddDate(0, 0, -(ParseTimeframe(string(tf)).days() - 1)),
		End:   last.Add(24*time.Hour - time.Nanosecond),
	}, true
}

// AggregateDomains folds the day buckets inside the query window into one
// entry per domain, plus one idle entry when the window holds idle-bucket
// time. Entries are sorted by total seconds, descending; ties keep the
// order of first appearance (day keys ascending, domains alphabetically,
// idle bucket last within a day).
func AggregateDomains(days map[string]storage.DayBucket, q Query) []Entry {
	q = q.normalized()
	r, ok := DateRange(q.EndDate, q.Timeframe)
	if !ok {
		return []Entry{}
	}

	var (
		entries []Entry
		index   = map[string]int{}
		idleAt  = -1
	)
	fold := func(i int, e storage.DomainEntry) {
		if q.Filter.includesActive() {
			entries[i].ActiveSeconds += e.Active
		}
		if q.Filter.includesIdle() {
			entries[i].IdleSeconds += e.Idle
		}
		entries[i].TotalSeconds = entries[i].ActiveSeconds + entries[i].IdleSeconds
	}

	for _, key := range sortedKeys(days) {
		day, ok := storage.ParseDayKey(key)
		if !ok || !r.Contains(day) {
			continue
		}
		bucket := days[key]

		names := make([]string, 0, len(bucket.Domains))
		for name := range bucket.Domains {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			i, seen := index[name]
			if !seen {
				i = len(entries)
				index[name] = i
				entries = append(entries, Entry{Kind: KindDomain, Domain: name})
			}
			fold(i, bucket.Domains[name])
		}

		if bucket.Idle.Total() > 0 {
			if idleAt < 0 {
				idleAt = len(entries)
				entries = append(entries, Entry{Kind: KindIdle})
			}
			fold(idleAt, bucket.Idle)
		}
	}

	if entries == nil {
		return []Entry{}
	}
	sortByTotal(entries)
	return entries
}

// AggregateTotals sums AggregateDomains over the query window.
func AggregateTotals(days map[string]storage.DayBucket, q Query) Totals {
	return sumEntries(AggregateDomains(days, q))
}

func sumEntries(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		t.ActiveSeconds += e.ActiveSeconds
		t.IdleSeconds += e.IdleSeconds
		t.TotalSeconds += e.TotalSeconds
	}
	return t
}

func sortedKeys(days map[string]storage.DayBucket) []string {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortByTotal(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalSeconds > entries[j].TotalSeconds
	})
}
