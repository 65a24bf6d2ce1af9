package analytics

import (
	"fmt"
	"math"

	"github.com/runnerr0/taskheatmap/internal/domain"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// TopDomainsLimit is the number of entries SummarizeTopDomains returns.
const TopDomainsLimit = 5

// IdleLabel is the display name of the idle bucket.
const IdleLabel = "Idle time"

// ExportRow is the flat shape written by CSV and JSON exports.
type ExportRow struct {
	Domain        string `json:"domain"`
	ActiveSeconds int64  `json:"activeSeconds"`
	IdleSeconds   int64  `json:"idleSeconds"`
	TotalSeconds  int64  `json:"totalSeconds"`
}

// BuildExportRows projects AggregateDomains into export rows, naming the
// idle bucket by its display label.
func BuildExportRows(days map[string]storage.DayBucket, q Query) []ExportRow {
	entries := AggregateDomains(days, q)
	rows := make([]ExportRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ExportRow{
			Domain:        FriendlyName(e),
			ActiveSeconds: e.ActiveSeconds,
			IdleSeconds:   e.IdleSeconds,
			TotalSeconds:  e.TotalSeconds,
		})
	}
	return rows
}

// SummarizeTopDomains returns at most TopDomainsLimit leading entries.
func SummarizeTopDomains(days map[string]storage.DayBucket, q Query) []Entry {
	entries := AggregateDomains(days, q)
	if len(entries) > TopDomainsLimit {
		entries = entries[:TopDomainsLimit]
	}
	return entries
}

// RollupRegistrable merges entries whose domains share a registrable
// domain, e.g. docs.google.com and mail.google.com into google.com. The
// result keeps the descending order by total seconds.
func RollupRegistrable(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	index := map[string]int{}
	for _, e := range entries {
		key := string(e.Kind) + ":"
		if e.Kind != KindIdle {
			e.Domain = domain.Registrable(e.Domain)
			key += e.Domain
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, e)
			continue
		}
		out[i].ActiveSeconds += e.ActiveSeconds
		out[i].IdleSeconds += e.IdleSeconds
		out[i].TotalSeconds += e.TotalSeconds
	}
	sortByTotal(out)
	return out
}

// FriendlyName renders an entry for display.
func FriendlyName(e Entry) string {
	if e.Kind == KindIdle {
		return IdleLabel
	}
	return e.Domain
}

// FormatRangeLabel renders r as "Jun 2, 2024" for Day and
// "May 27 – Jun 2, 2024" otherwise. A zero range yields "".
func FormatRangeLabel(r Range, tf Timeframe) string {
	if r.End.IsZero() {
		return ""
	}
	if ParseTimeframe(string(tf)) == Day {
		return r.End.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("%s – %s", r.Start.Format("Jan 2"), r.End.Format("Jan 2, 2006"))
}

// ToMinutes converts seconds to fractional minutes.
func ToMinutes(seconds float64) float64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return seconds / 60
}
