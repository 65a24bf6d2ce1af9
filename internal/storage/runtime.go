package storage

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// runtimeWire is the persisted form of a RuntimeSnapshot.
type runtimeWire struct {
	LastDomain    *string      `json:"lastDomain"`
	LastTimestamp int64        `json:"lastTimestamp"`
	ActivityType  ActivityType `json:"activityType"`
	WindowFocused bool         `json:"windowFocused"`
}

// DefaultRuntime returns the snapshot used when nothing was persisted.
func DefaultRuntime(at time.Time) RuntimeSnapshot {
	return RuntimeSnapshot{
		LastTimestamp: at.UTC(),
		ActivityType:  ActivityActive,
		WindowFocused: true,
	}
}

// DecodeRuntime reads a persisted snapshot, substituting defaults for
// missing or malformed fields. at is the fallback lastTimestamp.
func DecodeRuntime(raw []byte, at time.Time) RuntimeSnapshot {
	s := DefaultRuntime(at)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return s
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return s
	}

	if d := root.Get("lastDomain"); d.Type == gjson.String {
		s.LastDomain = d.Str
	}
	if ts, ok := decodeTime(root.Get("lastTimestamp")); ok {
		s.LastTimestamp = ts
	}
	if root.Get("activityType").String() == string(ActivityIdle) {
		s.ActivityType = ActivityIdle
	}
	s.WindowFocused = root.Get("windowFocused").Type != gjson.False
	return s
}

// NormalizeRuntime canonicalizes an in-memory snapshot: a zero timestamp
// becomes at and the activity type is one of the two known values.
func NormalizeRuntime(s RuntimeSnapshot, at time.Time) RuntimeSnapshot {
	if s.LastTimestamp.IsZero() {
		s.LastTimestamp = at
	}
	s.LastTimestamp = s.LastTimestamp.UTC()
	s.ActivityType = s.ActivityType.Normalize()
	return s
}

// MergeRuntime overlays the non-nil fields of u on current and
// renormalizes the result.
func MergeRuntime(current RuntimeSnapshot, u RuntimeUpdate, at time.Time) RuntimeSnapshot {
	next := current
	if u.LastDomain != nil {
		next.LastDomain = *u.LastDomain
	}
	if u.LastTimestamp != nil {
		next.LastTimestamp = *u.LastTimestamp
	}
	if u.ActivityType != nil {
		next.ActivityType = *u.ActivityType
	}
	if u.WindowFocused != nil {
		next.WindowFocused = *u.WindowFocused
	}
	return NormalizeRuntime(next, at)
}

// MarshalJSON writes the snapshot with lastDomain as null when unset and
// lastTimestamp in epoch milliseconds.
func (s RuntimeSnapshot) MarshalJSON() ([]byte, error) {
	w := runtimeWire{
		LastTimestamp: s.LastTimestamp.UnixMilli(),
		ActivityType:  s.ActivityType.Normalize(),
		WindowFocused: s.WindowFocused,
	}
	if s.LastDomain != "" {
		d := s.LastDomain
		w.LastDomain = &d
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes through DecodeRuntime.
func (s *RuntimeSnapshot) UnmarshalJSON(data []byte) error {
	*s = DecodeRuntime(data, time.Now())
	return nil
}
