package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/taskheatmap/internal/analytics"
	"github.com/runnerr0/taskheatmap/internal/bridge"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	DatabasePath      string           `json:"database_path"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	Keys              int64            `json:"keys"`
	LastWrite         string           `json:"last_write,omitempty"`
	Days              int              `json:"days"`
	OldestDay         string           `json:"oldest_day,omitempty"`
	NewestDay         string           `json:"newest_day,omitempty"`
	RetentionDays     int              `json:"retention_days"`
	Today             analytics.Totals `json:"today"`
	DaemonRunning     bool             `json:"daemon_running"`
	DaemonVersion     string           `json:"daemon_version,omitempty"`
	DaemonUptime      int64            `json:"daemon_uptime_seconds,omitempty"`
	BridgeURL         string           `json:"bridge_url"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *StatusCommand) run(ctx context.Context, sess *session) error {
	out := statusJSON{
		Version:       c.version,
		RetentionDays: sess.cfg.Tracking.RetentionDays,
		BridgeURL:     sess.cfg.DaemonURL(),
	}

	var ledger storage.Ledger
	if st, err := sess.client.Status(ctx); err == nil {
		out.DaemonRunning = true
		out.DaemonVersion = st.Version
		out.DaemonUptime = st.UptimeSeconds
		if reply, err := sess.client.State(ctx, bridge.StateRequest{}); err == nil {
			ledger = reply.State
		}
	} else if !sess.daemonDown(err) {
		return fmt.Errorf("daemon status: %w", err)
	}

	err := sess.withStore(func(st *localStore) error {
		stats, err := st.kv.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		out.DatabasePath = st.path
		out.DatabaseSizeBytes = getDatabaseSize(st.db, st.path)
		out.Keys = stats.Keys
		if !stats.LastWrite.IsZero() {
			out.LastWrite = stats.LastWrite.UTC().Format(time.RFC3339)
		}
		if !out.DaemonRunning {
			ledger, err = st.repo.LoadLedger(ctx)
		}
		return err
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ledger.Days))
	for k := range ledger.Days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.Days = len(keys)
	if len(keys) > 0 {
		out.OldestDay = keys[0]
		out.NewestDay = keys[len(keys)-1]
	}
	out.Today = analytics.AggregateTotals(ledger.Days, analytics.Query{EndDate: sess.now()})

	if sess.json {
		return sess.printJSON(out)
	}
	c.printHuman(sess, out)
	return nil
}

func (c *StatusCommand) printHuman(sess *session, s statusJSON) {
	sess.printf("taskheatmap Status\n")
	sess.printf("==================\n")
	sess.printf("Version:       %s\n", s.Version)
	sess.printf("Database:      %s (%s)\n", s.DatabasePath, formatBytes(s.DatabaseSizeBytes))
	sess.printf("Records:       %s\n", formatNumber(s.Keys))
	if s.LastWrite != "" {
		sess.printf("Last write:    %s\n", s.LastWrite)
	}
	sess.printf("Days tracked:  %s\n", formatNumber(int64(s.Days)))
	if s.Days > 0 {
		sess.printf("Oldest:        %s\n", s.OldestDay)
		sess.printf("Newest:        %s\n", s.NewestDay)
	}
	sess.printf("Retention:     %s\n", formatDays(s.RetentionDays))
	sess.printf("Today:         %s (active %s, idle %s)\n",
		formatSeconds(s.Today.TotalSeconds), formatSeconds(s.Today.ActiveSeconds), formatSeconds(s.Today.IdleSeconds))

	sess.printf("\n")
	if s.DaemonRunning {
		sess.printf("Daemon:        running at %s (%s, up %s)\n", s.BridgeURL, s.DaemonVersion, formatSeconds(s.DaemonUptime))
	} else {
		sess.printf("Daemon:        not running\n")
	}
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	// Try file stat first
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	// Fallback: query SQLite for in-memory or unavailable file
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
