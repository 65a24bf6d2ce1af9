package storage

import "time"

const (
	// CurrentVersion is the schema version written by this package.
	CurrentVersion = 2

	DefaultIntervalMinutes = 15
	DefaultSummaryHour     = 21
	DefaultRetentionDays   = 30
	dayKeyLayout           = "2006-01-02"

	// MaxClockSkew is how far past now a manual record may be dated.
	// Accumulate prunes relative to the record's time, so a far-future
	// record would drop every real day.
	MaxClockSkew = 5 * time.Minute
)

// now is the clock used for lastUpdatedAt stamps.
var now = time.Now

// Target identifies where attributed seconds go: a domain key or the
// day's idle bucket.
type Target struct {
	domain string
	idle   bool
}

// DomainTarget attributes time to a normalized domain key.
func DomainTarget(domain string) Target {
	return Target{domain: domain}
}

// IdleBucket attributes time to the day's idle bucket.
func IdleBucket() Target {
	return Target{idle: true}
}

// Domain returns the domain key, or "" for the idle bucket.
func (t Target) Domain() string { return t.domain }

// IsIdleBucket reports whether t is the idle bucket.
func (t Target) IsIdleBucket() bool { return t.idle }

func (t Target) valid() bool {
	return t.idle || t.domain != ""
}

// NewLedger returns an empty ledger with default options.
func NewLedger() Ledger {
	return Ledger{
		Version: CurrentVersion,
		Days:    map[string]DayBucket{},
		Options: defaultOptions(),
	}
}

func defaultOptions() Options {
	return Options{
		IntervalMinutes: DefaultIntervalMinutes,
		DailySummary: DailySummary{
			Enabled: true,
			Hour:    DefaultSummaryHour,
		},
	}
}

// DayKey returns the UTC calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// ParseDayKey parses a YYYY-MM-DD key as UTC midnight.
func ParseDayKey(key string) (time.Time, bool) {
	t, err := time.Parse(dayKeyLayout, key)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StartOfDay returns UTC midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeLedger returns a canonical deep copy of l: non-nil maps, options
// within range, negative counters clamped to zero and totals recomputed.
func NormalizeLedger(l Ledger) Ledger {
	out := Ledger{
		Version: CurrentVersion,
		Days:    make(map[string]DayBucket, len(l.Days)),
		Options: normalizeOptions(l.Options),
	}
	for key, day := range l.Days {
		if key == "" {
			continue
		}
		out.Days[key] = normalizeDay(day)
	}
	return out
}

func normalizeDay(d DayBucket) DayBucket {
	out := DayBucket{
		Domains: make(map[string]DomainEntry, len(d.Domains)),
		Idle:    d.Idle.clamp(),
	}
	for domain, entry := range d.Domains {
		if domain == "" {
			continue
		}
		out.Domains[domain] = entry.clamp()
	}
	out.Totals = sumDay(out)
	if d.LastUpdatedAt != nil {
		ts := d.LastUpdatedAt.UTC()
		out.LastUpdatedAt = &ts
	}
	return out
}

func sumDay(d DayBucket) DomainEntry {
	total := d.Idle
	for _, entry := range d.Domains {
		total.Active += entry.Active
		total.Idle += entry.Idle
	}
	return total
}

func normalizeOptions(o Options) Options {
	if o.IntervalMinutes < 1 {
		o.IntervalMinutes = DefaultIntervalMinutes
	}
	o.DailySummary.Hour = clampHour(o.DailySummary.Hour)
	return o
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}

// Accumulate adds seconds of the given activity type to target on the UTC
// day of at, then prunes days outside the retention window measured from
// at. Invalid input (no target, seconds <= 0, zero time) leaves the ledger
// as NormalizeLedger(l).
func Accumulate(l Ledger, target Target, seconds int64, at time.Time, retentionDays int, activity ActivityType) Ledger {
	out := NormalizeLedger(l)
	if !target.valid() || seconds <= 0 || at.IsZero() {
		return out
	}

	key := DayKey(at)
	day, ok := out.Days[key]
	if !ok {
		day = DayBucket{Domains: map[string]DomainEntry{}}
	}

	if target.idle {
		day.Idle = day.Idle.add(activity, seconds)
	} else {
		day.Domains[target.domain] = day.Domains[target.domain].add(activity, seconds)
	}
	day.Totals = sumDay(day)
	stamp := now().UTC()
	day.LastUpdatedAt = &stamp
	out.Days[key] = day

	pruneInPlace(out.Days, retentionDays, at)
	return out
}

// RetentionCutoff returns the earliest UTC midnight kept by a retention
// window of retentionDays measured from ref.
func RetentionCutoff(retentionDays int, ref time.Time) time.Time {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return StartOfDay(ref).AddDate(0, 0, -(retentionDays - 1))
}

// PruneRetention removes day buckets strictly before the retention cutoff.
// Keys that do not parse as dates are kept.
func PruneRetention(l Ledger, retentionDays int, ref time.Time) Ledger {
	out := NormalizeLedger(l)
	pruneInPlace(out.Days, retentionDays, ref)
	return out
}

func pruneInPlace(days map[string]DayBucket, retentionDays int, ref time.Time) {
	cutoff := RetentionCutoff(retentionDays, ref)
	for key := range days {
		day, ok := ParseDayKey(key)
		if !ok {
			continue
		}
		if day.Before(cutoff) {
			delete(days, key)
		}
	}
}

// UpdateInterval sets the tracking interval; values below one minute are
// raised to one.
func UpdateInterval(l Ledger, minutes int) Ledger {
	out := NormalizeLedger(l)
	if minutes < 1 {
		minutes = 1
	}
	out.Options.IntervalMinutes = minutes
	return out
}

// UpdateDailySummary replaces the daily summary options, clamping the hour
// to 0..23.
func UpdateDailySummary(l Ledger, s DailySummary) Ledger {
	out := NormalizeLedger(l)
	out.Options.DailySummary = DailySummary{
		Enabled: s.Enabled,
		Hour:    clampHour(s.Hour),
	}
	return out
}
