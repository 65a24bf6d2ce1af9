package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/taskheatmap/internal/bridge"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Execute implements the go-flags Commander interface for OptionsCommand.
func (c *OptionsCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *OptionsCommand) changes() bool {
	return c.Interval != 0 || c.DailySummary != "" || c.SummaryHour >= 0
}

func (c *OptionsCommand) run(ctx context.Context, sess *session) error {
	if c.Interval < 0 {
		return fmt.Errorf("--interval must be at least 1")
	}
	if c.SummaryHour > 23 {
		return fmt.Errorf("--summary-hour must be between 0 and 23")
	}

	ledger, _, err := sess.loadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	current := ledger.Options
	if !c.changes() {
		return c.print(sess, current)
	}

	req := bridge.OptionsRequest{}
	if c.Interval > 0 {
		req.IntervalMinutes = &c.Interval
	}
	if c.DailySummary != "" || c.SummaryHour >= 0 {
		enabled := current.DailySummary.Enabled
		if c.DailySummary != "" {
			enabled = c.DailySummary == "on"
		}
		hour := current.DailySummary.Hour
		if c.SummaryHour >= 0 {
			hour = c.SummaryHour
		}
		req.DailySummary = &bridge.DailySummaryRequest{Enabled: &enabled, Hour: &hour}
	}

	reply, err := sess.client.UpdateOptions(ctx, req)
	if err == nil {
		return c.print(sess, reply.Options)
	}
	if !sess.daemonDown(err) {
		return fmt.Errorf("update options: %w", err)
	}

	var opts storage.Options
	err = sess.withStore(func(st *localStore) error {
		l, err := st.repo.LoadLedger(ctx)
		if err != nil {
			return err
		}
		if req.IntervalMinutes != nil {
			l = storage.UpdateInterval(l, *req.IntervalMinutes)
		}
		if req.DailySummary != nil {
			l = storage.UpdateDailySummary(l, storage.DailySummary{
				Enabled: *req.DailySummary.Enabled,
				Hour:    *req.DailySummary.Hour,
			})
		}
		if err := st.repo.SaveLedger(ctx, l); err != nil {
			return err
		}
		opts = l.Options
		return nil
	})
	if err != nil {
		return fmt.Errorf("update options: %w", err)
	}
	return c.print(sess, opts)
}

func (c *OptionsCommand) print(sess *session, o storage.Options) error {
	if sess.json {
		return sess.printJSON(o)
	}
	summary := "off"
	if o.DailySummary.Enabled {
		summary = fmt.Sprintf("on at %02d:00", o.DailySummary.Hour)
	}
	sess.printf("Checkpoint interval: %d min\n", o.IntervalMinutes)
	sess.printf("Daily summary:       %s\n", summary)
	return nil
}
