package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

func TestSummarizeTopDomains_LimitsToFive(t *testing.T) {
	domains := map[string]storage.DomainEntry{}
	for i, name := range []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com"} {
		domains[name] = storage.DomainEntry{Active: int64(10 * (i + 1))}
	}
	days := map[string]storage.DayBucket{"2024-06-02": {Domains: domains}}

	top := SummarizeTopDomains(days, Query{EndDate: date(2024, 6, 2)})

	require.Len(t, top, TopDomainsLimit)
	assert.Equal(t, "g.com", top[0].Domain)
	assert.Equal(t, "c.com", top[4].Domain)
}

func TestBuildExportRows(t *testing.T) {
	days := fixtureDays()
	days["2024-06-02"] = storage.DayBucket{
		Domains: days["2024-06-02"].Domains,
		Idle:    storage.DomainEntry{Idle: 45},
	}

	rows := BuildExportRows(days, Query{EndDate: date(2024, 6, 2), Timeframe: Day})

	assert.Equal(t, []ExportRow{
		{Domain: "example.com", ActiveSeconds: 90, TotalSeconds: 90},
		{Domain: "docs.google.com", ActiveSeconds: 40, IdleSeconds: 20, TotalSeconds: 60},
		{Domain: IdleLabel, IdleSeconds: 45, TotalSeconds: 45},
	}, rows)
}

func TestRollupRegistrable(t *testing.T) {
	entries := []Entry{
		{Kind: KindDomain, Domain: "docs.google.com", ActiveSeconds: 40, TotalSeconds: 40},
		{Kind: KindDomain, Domain: "github.com", ActiveSeconds: 35, TotalSeconds: 35},
		{Kind: KindDomain, Domain: "mail.google.com", ActiveSeconds: 10, IdleSeconds: 5, TotalSeconds: 15},
		{Kind: KindIdle, IdleSeconds: 12, TotalSeconds: 12},
		{Kind: KindDomain, Domain: "localhost", ActiveSeconds: 3, TotalSeconds: 3},
	}

	got := RollupRegistrable(entries)

	assert.Equal(t, []Entry{
		{Kind: KindDomain, Domain: "google.com", ActiveSeconds: 50, IdleSeconds: 5, TotalSeconds: 55},
		{Kind: KindDomain, Domain: "github.com", ActiveSeconds: 35, TotalSeconds: 35},
		{Kind: KindIdle, IdleSeconds: 12, TotalSeconds: 12},
		{Kind: KindDomain, Domain: "localhost", ActiveSeconds: 3, TotalSeconds: 3},
	}, got)
	assert.Equal(t, "docs.google.com", entries[0].Domain, "input must not be modified")
}

func TestFriendlyName(t *testing.T) {
	assert.Equal(t, "Idle time", FriendlyName(Entry{Kind: KindIdle}))
	assert.Equal(t, "github.com", FriendlyName(Entry{Kind: KindDomain, Domain: "github.com"}))
	assert.Equal(t, "__idle__", FriendlyName(Entry{Kind: KindDomain, Domain: "__idle__"}))
}

func TestFormatRangeLabel(t *testing.T) {
	day, _ := DateRange(date(2024, 6, 2), Day)
	week, _ := DateRange(date(2024, 6, 2), Week)

	assert.Equal(t, "Jun 2, 2024", FormatRangeLabel(day, Day))
	assert.Equal(t, "May 27 – Jun 2, 2024", FormatRangeLabel(week, Week))
	assert.Equal(t, "", FormatRangeLabel(Range{}, Week))
}

func TestToMinutes(t *testing.T) {
	assert.Equal(t, 1.5, ToMinutes(90))
	assert.Equal(t, 0.0, ToMinutes(0))
	assert.Equal(t, 0.0, ToMinutes(math.NaN()))
	assert.Equal(t, 0.0, ToMinutes(math.Inf(1)))
}
