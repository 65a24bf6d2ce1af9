package storage

import "time"

// ActivityType says whether the user was engaged with the browser when a
// span of time was observed.
type ActivityType string

const (
	ActivityActive ActivityType = "active"
	ActivityIdle   ActivityType = "idle"
)

// Normalize maps anything that is not explicitly idle to active.
func (a ActivityType) Normalize() ActivityType {
	if a == ActivityIdle {
		return ActivityIdle
	}
	return ActivityActive
}

// DomainEntry holds the seconds attributed to one domain on one day.
type DomainEntry struct {
	Active int64 `json:"active"`
	Idle   int64 `json:"idle"`
}

// Total returns active plus idle seconds.
func (e DomainEntry) Total() int64 {
	return e.Active + e.Idle
}

// Of returns the counter for the given activity type.
func (e DomainEntry) Of(activity ActivityType) int64 {
	if activity.Normalize() == ActivityIdle {
		return e.Idle
	}
	return e.Active
}

func (e DomainEntry) add(activity ActivityType, seconds int64) DomainEntry {
	if activity.Normalize() == ActivityIdle {
		e.Idle += seconds
	} else {
		e.Active += seconds
	}
	return e
}

func (e DomainEntry) clamp() DomainEntry {
	if e.Active < 0 {
		e.Active = 0
	}
	if e.Idle < 0 {
		e.Idle = 0
	}
	return e
}

// DayBucket is the ledger for a single UTC calendar day. Idle holds time
// observed while no tab was in use; it is kept apart from Domains so it can
// never collide with a real domain key.
type DayBucket struct {
	Domains       map[string]DomainEntry `json:"domains"`
	Idle          DomainEntry            `json:"idle"`
	Totals        DomainEntry            `json:"totals"`
	LastUpdatedAt *time.Time             `json:"lastUpdatedAt"`
}

// DailySummary configures the once-a-day summary notification.
type DailySummary struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
}

// Options are the user-adjustable settings persisted with the ledger.
type Options struct {
	IntervalMinutes int          `json:"intervalMinutes"`
	DailySummary    DailySummary `json:"dailySummary"`
}

// Ledger is the persisted aggregate state: day buckets keyed by YYYY-MM-DD
// (UTC) plus options. Values are treated as immutable; every operation in
// this package returns a fresh Ledger.
type Ledger struct {
	Version int                  `json:"version"`
	Days    map[string]DayBucket `json:"days"`
	Options Options              `json:"options"`
}

// RuntimeSnapshot is the sampler's bridge across process restarts. It is
// owned by the tracker and never merged into the Ledger.
type RuntimeSnapshot struct {
	LastDomain    string
	LastTimestamp time.Time
	ActivityType  ActivityType
	WindowFocused bool
}

// RuntimeUpdate carries the fields to overwrite in a RuntimeSnapshot; nil
// fields are left untouched.
type RuntimeUpdate struct {
	LastDomain    *string
	LastTimestamp *time.Time
	ActivityType  *ActivityType
	WindowFocused *bool
}

// Stats holds a summary of the key-value backend.
type Stats struct {
	Keys       int64
	ValueBytes int64
	LastWrite  time.Time
}
