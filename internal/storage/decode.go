package storage

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/runnerr0/taskheatmap/internal/domain"
)

// legacyIdleKey is the magic domain key older versions used for idle time.
const legacyIdleKey = "__idle__"

// DecodeLedger turns any persisted ledger shape into the canonical Ledger.
// It never fails: unreadable input yields NewLedger(), and each malformed
// field falls back to its default on its own.
//
// Recognized shapes:
//   - v2: days with a separate "idle" bucket
//   - v1: days whose domains may hold the "__idle__" key or bare numbers
//   - v0: a flat "activities" list of {domain|url, duration, timestamp}
func DecodeLedger(raw []byte) Ledger {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return NewLedger()
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return NewLedger()
	}

	l := Ledger{
		Version: CurrentVersion,
		Days:    map[string]DayBucket{},
		Options: decodeOptions(root.Get("options")),
	}

	if days := root.Get("days"); days.IsObject() {
		days.ForEach(func(key, value gjson.Result) bool {
			if day, ok := decodeDay(value); ok {
				l.Days[key.String()] = day
			}
			return true
		})
	}

	if activities := root.Get("activities"); activities.IsArray() {
		foldActivities(l.Days, activities)
	}

	return NormalizeLedger(l)
}

// UnmarshalJSON decodes any persisted shape through DecodeLedger.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	*l = DecodeLedger(data)
	return nil
}

// EncodeLedger serializes l in the canonical v2 shape.
func EncodeLedger(l Ledger) ([]byte, error) {
	return json.Marshal(NormalizeLedger(l))
}

func decodeOptions(v gjson.Result) Options {
	opts := defaultOptions()
	if !v.IsObject() {
		return opts
	}

	if interval := v.Get("intervalMinutes"); isFinite(interval) && interval.Num >= 1 {
		opts.IntervalMinutes = int(math.Floor(math.Min(interval.Num, math.MaxInt32)))
	}

	summary := v.Get("dailySummary")
	if summary.IsObject() {
		if enabled := summary.Get("enabled"); enabled.Type == gjson.True || enabled.Type == gjson.False {
			opts.DailySummary.Enabled = enabled.Bool()
		}
		if hour := summary.Get("hour"); isFinite(hour) {
			opts.DailySummary.Hour = clampHour(int(math.Round(math.Max(0, math.Min(23, hour.Num)))))
		}
	}
	return opts
}

func decodeDay(v gjson.Result) (DayBucket, bool) {
	if !v.IsObject() {
		return DayBucket{}, false
	}

	day := DayBucket{Domains: map[string]DomainEntry{}}
	if domains := v.Get("domains"); domains.IsObject() {
		domains.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			entry := decodeEntry(value)
			if name == legacyIdleKey {
				day.Idle.Active += entry.Active
				day.Idle.Idle += entry.Idle
				return true
			}
			if name != "" {
				prev := day.Domains[name]
				day.Domains[name] = DomainEntry{
					Active: prev.Active + entry.Active,
					Idle:   prev.Idle + entry.Idle,
				}
			}
			return true
		})
	}

	if idle := v.Get("idle"); idle.IsObject() {
		entry := decodeEntry(idle)
		day.Idle.Active += entry.Active
		day.Idle.Idle += entry.Idle
	}

	if ts, ok := decodeTime(v.Get("lastUpdatedAt")); ok {
		day.LastUpdatedAt = &ts
	}
	return day, true
}

// decodeEntry accepts {active, idle}, {activeSeconds, idleSeconds} or a
// bare number of active seconds.
func decodeEntry(v gjson.Result) DomainEntry {
	if v.Type == gjson.Number {
		return DomainEntry{Active: decodeSeconds(v)}
	}
	if !v.IsObject() {
		return DomainEntry{}
	}
	active := v.Get("active")
	if !active.Exists() {
		active = v.Get("activeSeconds")
	}
	idle := v.Get("idle")
	if !idle.Exists() {
		idle = v.Get("idleSeconds")
	}
	return DomainEntry{
		Active: decodeSeconds(active),
		Idle:   decodeSeconds(idle),
	}
}

// maxSeconds caps decoded counters so sums over a ledger cannot overflow.
const maxSeconds = 1 << 53

func decodeSeconds(v gjson.Result) int64 {
	if !isFinite(v) || v.Num <= 0 {
		return 0
	}
	if v.Num >= maxSeconds {
		return maxSeconds
	}
	return int64(math.Floor(v.Num))
}

func isFinite(v gjson.Result) bool {
	return v.Type == gjson.Number && !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0)
}

// decodeTime accepts epoch milliseconds or an RFC 3339 string.
func decodeTime(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		if !isFinite(v) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v.Num)).UTC(), true
	case gjson.String:
		ts, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}
	return time.Time{}, false
}

// foldActivities migrates the v0 flat activity list into day buckets as
// active time.
func foldActivities(days map[string]DayBucket, activities gjson.Result) {
	activities.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		key := item.Get("domain").String()
		if key == "" {
			key, _ = domain.Normalize(item.Get("url").String())
		}
		seconds := decodeSeconds(item.Get("duration"))
		at, ok := decodeTime(item.Get("timestamp"))
		if key == "" || seconds <= 0 || !ok {
			return true
		}

		dayKey := DayKey(at)
		day, exists := days[dayKey]
		if !exists {
			day = DayBucket{Domains: map[string]DomainEntry{}}
		}
		day.Domains[key] = day.Domains[key].add(ActivityActive, seconds)
		days[dayKey] = day
		return true
	})
}
