package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

// pruneJSON is the JSON output structure for the prune command.
type pruneJSON struct {
	RetentionDays int      `json:"retention_days"`
	Cutoff        string   `json:"cutoff"`
	DryRun        bool     `json:"dry_run"`
	Removed       int      `json:"removed"`
	Days          []string `json:"days,omitempty"`
	Source        string   `json:"source"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *PruneCommand) run(ctx context.Context, sess *session) error {
	days := sess.cfg.Tracking.RetentionDays
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		days = retentionDays(d)
		if days < 1 {
			return fmt.Errorf("--older-than must be at least 1d")
		}
	}

	now := sess.now()
	out := pruneJSON{
		RetentionDays: days,
		Cutoff:        storage.DayKey(storage.RetentionCutoff(days, now)),
		DryRun:        c.DryRun,
	}

	if c.DryRun {
		ledger, source, err := sess.loadLedger(ctx)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		out.Days = expiredDays(ledger, days, now)
		out.Removed = len(out.Days)
		out.Source = source
		return c.print(sess, out)
	}

	removed, err := sess.client.Prune(ctx, days)
	out.Source = sourceDaemon
	if err != nil {
		if !sess.daemonDown(err) {
			return fmt.Errorf("prune: %w", err)
		}
		out.Source = sourceStore
		err = sess.withStore(func(st *localStore) error {
			l, err := st.repo.LoadLedger(ctx)
			if err != nil {
				return err
			}
			out.Days = expiredDays(l, days, now)
			removed = len(out.Days)
			if removed == 0 {
				return nil
			}
			if err := st.repo.SaveLedger(ctx, storage.PruneRetention(l, days, now)); err != nil {
				return err
			}
			st.audit(ctx, sess.log, "prune", fmt.Sprintf("removed %d days before %s", removed, out.Cutoff))
			return nil
		})
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	out.Removed = removed
	return c.print(sess, out)
}

func (c *PruneCommand) print(sess *session, out pruneJSON) error {
	if sess.json {
		return sess.printJSON(out)
	}
	verb := "Pruned"
	if out.DryRun {
		verb = "Would prune"
	}
	sess.printf("%s %s before %s (retention %s)\n", verb, formatDays(out.Removed), out.Cutoff, formatDays(out.RetentionDays))
	for _, d := range out.Days {
		sess.printf("  %s\n", d)
	}
	return nil
}

// expiredDays lists, in order, the day keys PruneRetention would remove.
func expiredDays(l storage.Ledger, retention int, now time.Time) []string {
	kept := storage.PruneRetention(l, retention, now).Days
	var out []string
	for key := range l.Days {
		if _, ok := kept[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
