package tracker

import (
	"context"
	"time"

	"github.com/runnerr0/taskheatmap/internal/analytics"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// IdleState is the platform idle detector's view of the user.
type IdleState string

const (
	StateActive IdleState = "active"
	StateIdle   IdleState = "idle"
	StateLocked IdleState = "locked"
)

// ParseIdleState reports false for unknown values.
func ParseIdleState(s string) (IdleState, bool) {
	switch IdleState(s) {
	case StateActive, StateIdle, StateLocked:
		return IdleState(s), true
	}
	return "", false
}

func (s IdleState) away() bool {
	return s == StateIdle || s == StateLocked
}

// IdleSource answers one-shot idle queries.
type IdleSource interface {
	QueryState(ctx context.Context, thresholdSeconds int) (IdleState, error)
}

// TabQuerier returns the URL of the focused window's active tab, or "" when
// there is none.
type TabQuerier interface {
	ActiveTabURL(ctx context.Context) (string, error)
}

// Attribution describes seconds that were just added to the ledger.
type Attribution struct {
	Day      string               `json:"day"`
	Domain   string               `json:"domain,omitempty"`
	Idle     bool                 `json:"idleBucket"`
	Activity storage.ActivityType `json:"activity"`
	Seconds  int64                `json:"seconds"`
	At       time.Time            `json:"at"`
}

// Summary is the once-a-day digest of the current UTC day.
type Summary struct {
	Day     string            `json:"day"`
	Label   string            `json:"label"`
	Totals  analytics.Totals  `json:"totals"`
	Entries []analytics.Entry `json:"entries"`
}

// Listener receives notifications from the queue consumer. Implementations
// must not block and must not call back into the Tracker synchronously.
type Listener interface {
	StateChanged(Attribution)
	DailySummary(Summary)
}
