package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/taskheatmap/internal/analytics"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// reportJSON is the JSON output structure for the report command.
type reportJSON struct {
	Label     string              `json:"label"`
	Start     string              `json:"start"`
	End       string              `json:"end"`
	Timeframe analytics.Timeframe `json:"timeframe"`
	Filter    analytics.Filter    `json:"filter"`
	Source    string              `json:"source"`
	Totals    analytics.Totals    `json:"totals"`
	Trend     *analytics.Trends   `json:"trend"`
	Streak    int                 `json:"streak"`
	Top       []analytics.Entry   `json:"top"`
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *ReportCommand) run(ctx context.Context, sess *session) error {
	if c.Top < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	end, err := parseDate(c.Date, sess.now())
	if err != nil {
		return err
	}

	ledger, source, err := sess.loadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	out := buildReport(ledger.Days, analytics.Query{
		EndDate:   end,
		Timeframe: analytics.ParseTimeframe(c.Timeframe),
		Filter:    analytics.ParseFilter(c.Filter),
	}, c.Top, c.Rollup)
	out.Source = source

	if sess.json {
		return sess.printJSON(out)
	}
	printReport(sess, out)
	return nil
}

func buildReport(days map[string]storage.DayBucket, q analytics.Query, top int, rollup bool) reportJSON {
	r, _ := analytics.DateRange(q.EndDate, q.Timeframe)

	entries := analytics.AggregateDomains(days, q)
	if rollup {
		entries = analytics.RollupRegistrable(entries)
	}
	if len(entries) > top {
		entries = entries[:top]
	}

	return reportJSON{
		Label:     analytics.FormatRangeLabel(r, q.Timeframe),
		Start:     storage.DayKey(r.Start),
		End:       storage.DayKey(r.End),
		Timeframe: q.Timeframe,
		Filter:    q.Filter,
		Totals:    analytics.AggregateTotals(days, q),
		Trend:     analytics.CalculateTrends(days, q),
		Streak:    analytics.ComputeStreak(days, q.Filter),
		Top:       entries,
	}
}

func printReport(sess *session, r reportJSON) {
	sess.printf("Activity for %s (%s, %s)\n", r.Label, r.Timeframe, r.Filter)
	sess.printf("================\n")
	sess.printf("Total:     %s (active %s, idle %s)\n",
		formatSeconds(r.Totals.TotalSeconds), formatSeconds(r.Totals.ActiveSeconds), formatSeconds(r.Totals.IdleSeconds))
	if r.Trend != nil {
		sess.printf("Change:    %s\n", formatDelta(r.Trend.Totals))
	}
	sess.printf("Streak:    %s\n", formatDays(r.Streak))

	if len(r.Top) > 0 {
		sess.printf("\nTop Domains:\n")
		for _, e := range r.Top {
			sess.printf("  %-28s %10s\n", analytics.FriendlyName(e), formatSeconds(e.TotalSeconds))
		}
	}
	if r.Source == sourceStore {
		sess.printf("\n(daemon not running; read from local store)\n")
	}
}

func formatDelta(d analytics.Delta) string {
	switch d.Direction {
	case analytics.Up:
		return fmt.Sprintf("+%s (+%.1f%%) vs previous window", formatSeconds(d.Delta), d.Percent)
	case analytics.Down:
		return fmt.Sprintf("%s (%.1f%%) vs previous window", formatSeconds(d.Delta), d.Percent)
	}
	return "no change vs previous window"
}
