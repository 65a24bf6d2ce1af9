// Package tracker owns the ledger and runtime snapshot of a running daemon
// and turns tick, idle and focus events into attributed seconds.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/analytics"
	"github.com/runnerr0/taskheatmap/internal/domain"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Options configures a Tracker.
type Options struct {
	Repo          *storage.Repository
	Idle          IdleSource
	Tabs          TabQuerier
	Listeners     []Listener
	Exclude       *domain.Matcher
	RetentionDays int
	// IdleThreshold is passed to IdleSource.QueryState, in seconds.
	IdleThreshold int
	// Debounce delays ledger and snapshot writes; zero writes right after
	// each change.
	Debounce time.Duration
	Clock    func() time.Time
	Logger   zerolog.Logger
}

// StateRequest asks for a consistent view of the ledger.
type StateRequest struct {
	FlushPending bool
	Timeframe    analytics.Timeframe
	Filter       analytics.Filter
}

// StateResponse is what foreground surfaces render.
type StateResponse struct {
	Ledger  storage.Ledger
	Runtime storage.RuntimeSnapshot
	Trend   *analytics.Trends
}

// OptionsUpdate changes the fields that are set.
type OptionsUpdate struct {
	IntervalMinutes *int
	DailySummary    *storage.DailySummary
}

type eventKind int

const (
	eventTick eventKind = iota
	eventIdle
	eventFocus
)

type event struct {
	kind    eventKind
	idle    IdleState
	focused bool
}

// Tracker is a single-writer actor: all fields below queue are read and
// written only by tasks running on the queue.
type Tracker struct {
	opts    Options
	log     zerolog.Logger
	clock   func() time.Time
	queue   *Queue
	changes chan storage.Options

	ledger        storage.Ledger
	ledgerLoaded  bool
	ledgerDirty   bool
	runtime       storage.RuntimeSnapshot
	runtimeLoaded bool
	runtimeDirty  bool
	idleState     IdleState

	ledgerSave  *Debouncer
	runtimeSave *Debouncer
}

// New returns a Tracker. Call Run to start processing events.
func New(opts Options) *Tracker {
	if opts.Repo == nil {
		opts.Repo = storage.NewRepository(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = storage.DefaultRetentionDays
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}

	t := &Tracker{
		opts:      opts,
		log:       opts.Logger,
		clock:     opts.Clock,
		queue:     NewQueue(opts.Logger),
		changes:   make(chan storage.Options, 1),
		ledger:    storage.NewLedger(),
		idleState: StateActive,
	}
	// Steady activity must not hold writes back forever.
	maxWait := 4 * opts.Debounce
	t.ledgerSave = NewDebouncer(opts.Debounce, maxWait, func() {
		t.queue.Submit("persist ledger", t.persistLedger)
	})
	t.runtimeSave = NewDebouncer(opts.Debounce, maxWait, func() {
		t.queue.Submit("persist runtime", t.persistRuntime)
	})
	return t
}

// Run processes events until ctx is done, then attributes the final
// partial interval and writes both records.
func (t *Tracker) Run(ctx context.Context) error {
	t.queue.Submit("startup", t.startup)
	t.queue.Run(ctx)

	// The queue has stopped, so state is no longer shared.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !t.ledgerLoaded {
		return nil
	}
	if err := t.flush(flushCtx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return nil
}

// Tick samples the active tab and attributes time since the last event.
func (t *Tracker) Tick(ctx context.Context) error {
	return t.queue.Do(ctx, "tick", func(ctx context.Context) error {
		return t.step(ctx, event{kind: eventTick})
	})
}

// IdleChanged handles a platform idle-state change.
func (t *Tracker) IdleChanged(ctx context.Context, state IdleState) error {
	return t.queue.Do(ctx, "idle changed", func(ctx context.Context) error {
		return t.step(ctx, event{kind: eventIdle, idle: state})
	})
}

// FocusChanged handles the browser gaining or losing window focus.
func (t *Tracker) FocusChanged(ctx context.Context, focused bool) error {
	return t.queue.Do(ctx, "focus changed", func(ctx context.Context) error {
		return t.step(ctx, event{kind: eventFocus, focused: focused})
	})
}

// Flush runs a tick and writes the ledger and snapshot immediately.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.queue.Do(ctx, "flush", t.flush)
}

// Record adds seconds to target directly, outside the sampling loop. A
// zero at means now. Excluded domains are dropped.
func (t *Tracker) Record(ctx context.Context, target storage.Target, seconds int64, at time.Time, activity storage.ActivityType) error {
	return t.queue.Do(ctx, "record", func(ctx context.Context) error {
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		if at.IsZero() {
			at = t.clock()
		}
		if !target.IsIdleBucket() && t.opts.Exclude.Match(target.Domain()) {
			t.log.Debug().Str("domain", target.Domain()).Msg("record skipped, domain excluded")
			return nil
		}
		t.attribute(target, seconds, at, activity)
		return nil
	})
}

// GetState returns a consistent copy of the ledger and snapshot, flushing
// first when asked. Trend covers the window ending now.
func (t *Tracker) GetState(ctx context.Context, req StateRequest) (StateResponse, error) {
	var resp StateResponse
	err := t.queue.Do(ctx, "get state", func(ctx context.Context) error {
		if req.FlushPending {
			if err := t.flush(ctx); err != nil {
				// The in-memory ledger is still authoritative.
				t.log.Warn().Err(err).Msg("flush before state read failed")
			}
		}
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		resp = StateResponse{
			Ledger:  storage.NormalizeLedger(t.ledger),
			Runtime: t.runtime,
			Trend: analytics.CalculateTrends(t.ledger.Days, analytics.Query{
				EndDate:   t.clock(),
				Timeframe: req.Timeframe,
				Filter:    req.Filter,
			}),
		}
		return nil
	})
	return resp, err
}

// Options returns the persisted options.
func (t *Tracker) Options(ctx context.Context) (storage.Options, error) {
	var opts storage.Options
	err := t.queue.Do(ctx, "read options", func(ctx context.Context) error {
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		opts = t.ledger.Options
		return nil
	})
	return opts, err
}

// UpdateOptions applies u and returns the resulting options.
func (t *Tracker) UpdateOptions(ctx context.Context, u OptionsUpdate) (storage.Options, error) {
	var opts storage.Options
	err := t.queue.Do(ctx, "update options", func(ctx context.Context) error {
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		next := t.ledger
		if u.IntervalMinutes != nil {
			next = storage.UpdateInterval(next, *u.IntervalMinutes)
		}
		if u.DailySummary != nil {
			next = storage.UpdateDailySummary(next, *u.DailySummary)
		}
		t.ledger = next
		t.markLedgerDirty()
		opts = next.Options
		t.publishOptions(opts)
		return nil
	})
	return opts, err
}

// OptionsChanged delivers the latest options after each update. Only the
// most recent value is kept.
func (t *Tracker) OptionsChanged() <-chan storage.Options {
	return t.changes
}

// SendDailySummary builds today's summary and pushes it to listeners. It
// returns nil when the daily summary is disabled.
func (t *Tracker) SendDailySummary(ctx context.Context) (*Summary, error) {
	var out *Summary
	err := t.queue.Do(ctx, "daily summary", func(ctx context.Context) error {
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		if !t.ledger.Options.DailySummary.Enabled {
			return nil
		}
		s := BuildSummary(t.ledger.Days, t.clock())
		for _, l := range t.opts.Listeners {
			l.DailySummary(s)
		}
		out = &s
		return nil
	})
	return out, err
}

// BuildSummary returns the top domains of the UTC day containing at.
func BuildSummary(days map[string]storage.DayBucket, at time.Time) Summary {
	q := analytics.Query{EndDate: at, Timeframe: analytics.Day, Filter: analytics.FilterAll}
	r, _ := analytics.DateRange(at, analytics.Day)
	return Summary{
		Day:     storage.DayKey(at),
		Label:   analytics.FormatRangeLabel(r, analytics.Day),
		Totals:  analytics.AggregateTotals(days, q),
		Entries: analytics.SummarizeTopDomains(days, q),
	}
}

// Prune drops days outside a retention window of retentionDays ending
// today and returns how many were removed.
func (t *Tracker) Prune(ctx context.Context, retentionDays int) (int, error) {
	var removed int
	err := t.queue.Do(ctx, "prune", func(ctx context.Context) error {
		if err := t.ensureLoaded(ctx); err != nil {
			return err
		}
		before := len(t.ledger.Days)
		t.ledger = storage.PruneRetention(t.ledger, retentionDays, t.clock())
		removed = before - len(t.ledger.Days)
		if removed > 0 {
			t.markLedgerDirty()
		}
		return nil
	})
	return removed, err
}

// Purge deletes all persisted data and resets the in-memory ledger. The
// sampler keeps its current domain and activity.
func (t *Tracker) Purge(ctx context.Context) error {
	return t.queue.Do(ctx, "purge", func(ctx context.Context) error {
		t.ledgerSave.Cancel()
		t.runtimeSave.Cancel()
		if err := t.opts.Repo.Purge(ctx); err != nil {
			return err
		}
		opts := t.ledger.Options
		t.ledger = storage.NewLedger()
		t.ledger.Options = opts
		t.ledgerLoaded = true
		t.ledgerDirty = false
		t.runtime.LastTimestamp = t.clock().UTC()
		t.runtimeDirty = false
		return nil
	})
}

// startup loads the snapshot and feeds the current idle state through the
// idle path, so the gap since the persisted timestamp goes to the
// persisted activity type.
func (t *Tracker) startup(ctx context.Context) error {
	t.loadRuntime(ctx)
	if t.opts.Idle == nil {
		return t.step(ctx, event{kind: eventTick})
	}
	state, err := t.opts.Idle.QueryState(ctx, t.opts.IdleThreshold)
	if err != nil {
		t.log.Warn().Err(err).Msg("initial idle state query failed")
		return nil
	}
	return t.step(ctx, event{kind: eventIdle, idle: state})
}

// step is the sampling algorithm shared by every event.
func (t *Tracker) step(ctx context.Context, ev event) error {
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}

	now := t.clock()
	rt := t.runtime
	elapsed := int64(now.Sub(rt.LastTimestamp) / time.Second)
	rt.LastTimestamp = now.UTC()

	if elapsed > 0 {
		switch rt.ActivityType {
		case storage.ActivityIdle:
			t.attribute(storage.IdleBucket(), elapsed, now, storage.ActivityIdle)
		default:
			t.attribute(storage.DomainTarget(rt.LastDomain), elapsed, now, storage.ActivityActive)
		}
	}

	switch ev.kind {
	case eventIdle:
		t.idleState = ev.idle
	case eventFocus:
		rt.WindowFocused = ev.focused
	}

	next := storage.ActivityActive
	if t.idleState.away() || !rt.WindowFocused {
		next = storage.ActivityIdle
	}
	if next == storage.ActivityActive {
		rt.LastDomain = t.resolveDomain(ctx, rt.LastDomain)
	}
	rt.ActivityType = next

	t.runtime = rt
	t.runtimeDirty = true
	t.runtimeSave.Trigger()
	return nil
}

// attribute accumulates into the ledger and notifies listeners when the
// ledger changed.
func (t *Tracker) attribute(target storage.Target, seconds int64, at time.Time, activity storage.ActivityType) {
	if seconds <= 0 || (!target.IsIdleBucket() && target.Domain() == "") {
		return
	}
	t.ledger = storage.Accumulate(t.ledger, target, seconds, at, t.opts.RetentionDays, activity)
	t.markLedgerDirty()

	a := Attribution{
		Day:      storage.DayKey(at),
		Domain:   target.Domain(),
		Idle:     target.IsIdleBucket(),
		Activity: activity.Normalize(),
		Seconds:  seconds,
		At:       at.UTC(),
	}
	t.log.Debug().
		Str("domain", a.Domain).
		Bool("idle_bucket", a.Idle).
		Str("activity", string(a.Activity)).
		Int64("seconds", seconds).
		Msg("tracked")
	for _, l := range t.opts.Listeners {
		l.StateChanged(a)
	}
}

// resolveDomain returns the active tab's domain key. Lookup failures and
// tabs without a URL keep previous; excluded domains become untracked.
func (t *Tracker) resolveDomain(ctx context.Context, previous string) string {
	if t.opts.Tabs == nil {
		return previous
	}
	raw, err := t.opts.Tabs.ActiveTabURL(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("active tab query failed")
		return previous
	}
	key, ok := domain.Normalize(raw)
	if !ok {
		return previous
	}
	if t.opts.Exclude.Match(key) {
		return ""
	}
	return key
}

func (t *Tracker) ensureLoaded(ctx context.Context) error {
	t.loadRuntime(ctx)
	if t.ledgerLoaded {
		return nil
	}
	l, err := t.opts.Repo.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	t.ledger = l
	t.ledgerLoaded = true
	return nil
}

func (t *Tracker) loadRuntime(ctx context.Context) {
	if t.runtimeLoaded {
		return
	}
	now := t.clock()
	rt, err := t.opts.Repo.LoadRuntime(ctx, now)
	if err != nil {
		t.log.Warn().Err(err).Msg("runtime snapshot unreadable, starting fresh")
		rt = storage.DefaultRuntime(now)
	}
	t.runtime = rt
	t.runtimeLoaded = true
}

func (t *Tracker) markLedgerDirty() {
	t.ledgerDirty = true
	t.ledgerSave.Trigger()
}

func (t *Tracker) flush(ctx context.Context) error {
	if err := t.step(ctx, event{kind: eventTick}); err != nil {
		return err
	}
	t.ledgerSave.Cancel()
	t.runtimeSave.Cancel()
	return errors.Join(t.writeLedger(ctx), t.writeRuntime(ctx))
}

func (t *Tracker) persistLedger(ctx context.Context) error {
	if !t.ledgerDirty {
		return nil
	}
	return t.writeLedger(ctx)
}

func (t *Tracker) persistRuntime(ctx context.Context) error {
	if !t.runtimeDirty {
		return nil
	}
	return t.writeRuntime(ctx)
}

func (t *Tracker) writeLedger(ctx context.Context) error {
	if err := t.opts.Repo.SaveLedger(ctx, t.ledger); err != nil {
		return err
	}
	t.ledgerDirty = false
	return nil
}

func (t *Tracker) writeRuntime(ctx context.Context) error {
	saved, err := t.opts.Repo.SaveRuntime(ctx, t.runtime, t.clock())
	if err != nil {
		return err
	}
	t.runtime = saved
	t.runtimeDirty = false
	return nil
}

func (t *Tracker) publishOptions(o storage.Options) {
	select {
	case <-t.changes:
	default:
	}
	select {
	case t.changes <- o:
	default:
	}
}
