package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Alarms drives a Tracker from timers: a fine-grained tick, a checkpoint
// flush every options.intervalMinutes, and the daily summary at
// options.dailySummary.hour local time.
type Alarms struct {
	tracker *Tracker
	tick    time.Duration
	now     func() time.Time
	// minute is the unit of options.intervalMinutes.
	minute time.Duration
	log    zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAlarms returns stopped alarms; tick <= 0 disables the tick loop.
func NewAlarms(t *Tracker, tick time.Duration, log zerolog.Logger) *Alarms {
	return &Alarms{
		tracker: t,
		tick:    tick,
		now:     time.Now,
		minute:  time.Minute,
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Start launches the alarm goroutines.
func (a *Alarms) Start(ctx context.Context) {
	if a.tick > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ticker := time.NewTicker(a.tick)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := a.tracker.Tick(ctx); err != nil && ctx.Err() == nil {
						a.log.Warn().Err(err).Msg("tick failed")
					}
				case <-a.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.schedule(ctx)
	}()
}

// Stop signals goroutines to exit and waits for them to finish.
func (a *Alarms) Stop() {
	close(a.stop)
	a.wg.Wait()
}

func (a *Alarms) schedule(ctx context.Context) {
	opts, err := a.tracker.Options(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.log.Warn().Err(err).Msg("reading options failed, using defaults")
		opts = storage.NewLedger().Options
	}

	checkpoint := time.NewTimer(a.checkpointInterval(opts))
	defer checkpoint.Stop()
	daily := time.NewTimer(NextDaily(a.now(), opts.DailySummary.Hour).Sub(a.now()))
	defer daily.Stop()

	for {
		select {
		case <-checkpoint.C:
			if err := a.tracker.Flush(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("checkpoint flush failed")
			}
			checkpoint.Reset(a.checkpointInterval(opts))

		case <-daily.C:
			s, err := a.tracker.SendDailySummary(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				a.log.Warn().Err(err).Msg("daily summary failed")
			case s != nil:
				a.log.Info().Str("day", s.Day).Int64("total_seconds", s.Totals.TotalSeconds).Msg("daily summary sent")
			}
			daily.Reset(NextDaily(a.now(), opts.DailySummary.Hour).Sub(a.now()))

		case next := <-a.tracker.OptionsChanged():
			opts = next
			resetTimer(checkpoint, a.checkpointInterval(opts))
			resetTimer(daily, NextDaily(a.now(), opts.DailySummary.Hour).Sub(a.now()))
			a.log.Debug().
				Int("interval_minutes", opts.IntervalMinutes).
				Int("summary_hour", opts.DailySummary.Hour).
				Msg("alarms re-armed")

		case <-a.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Alarms) checkpointInterval(o storage.Options) time.Duration {
	if o.IntervalMinutes < 1 {
		return a.minute
	}
	return time.Duration(o.IntervalMinutes) * a.minute
}

// NextDaily returns the first instant strictly after now at hour:00 in
// now's location.
func NextDaily(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, 0, 0, 0, now.Location())
	}
	return next
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
