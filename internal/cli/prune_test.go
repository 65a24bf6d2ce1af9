package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/config"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

func day(key string) time.Time {
	t, _ := storage.ParseDayKey(key)
	return t.Add(12 * time.Hour)
}

// setupPruneTest seeds two days before and two days inside the default
// 30 day window ending on testNow.
func setupPruneTest(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	for _, key := range []string{"2024-04-01", "2024-05-04", "2024-05-05", "2024-06-03"} {
		seedStore(t, cfg, credit("example.com", 60, day(key), storage.ActivityActive))
	}
	return cfg
}

func TestPrune_DefaultRetention(t *testing.T) {
	cfg := setupPruneTest(t)
	sess, out := offlineSession(t, cfg)

	cmd := &PruneCommand{}
	require.NoError(t, cmd.run(context.Background(), sess))

	assert.Contains(t, out.String(), "Pruned 2 days before 2024-05-05 (retention 30 days)")
	assert.Contains(t, out.String(), "  2024-04-01\n  2024-05-04\n")

	l := storedLedger(t, cfg)
	assert.Len(t, l.Days, 2)
	assert.Contains(t, l.Days, "2024-05-05")
	assert.Contains(t, l.Days, "2024-06-03")
	assert.Equal(t, []string{"prune"}, auditActions(t, cfg))
}

func TestPrune_DryRunLeavesLedger(t *testing.T) {
	cfg := setupPruneTest(t)
	sess, out := offlineSession(t, cfg)
	sess.json = true

	cmd := &PruneCommand{DryRun: true}
	require.NoError(t, cmd.run(context.Background(), sess))

	var got pruneJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.DryRun)
	assert.Equal(t, 2, got.Removed)
	assert.Equal(t, []string{"2024-04-01", "2024-05-04"}, got.Days)
	assert.Equal(t, sourceStore, got.Source)

	assert.Len(t, storedLedger(t, cfg).Days, 4)
	assert.Empty(t, auditActions(t, cfg))
}

func TestPrune_OlderThanOverridesRetention(t *testing.T) {
	cfg := setupPruneTest(t)
	sess, out := offlineSession(t, cfg)
	sess.json = true

	cmd := &PruneCommand{OlderThan: "1w"}
	require.NoError(t, cmd.run(context.Background(), sess))

	var got pruneJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 7, got.RetentionDays)
	assert.Equal(t, "2024-05-28", got.Cutoff)
	assert.Equal(t, 3, got.Removed)

	l := storedLedger(t, cfg)
	assert.Len(t, l.Days, 1)
	assert.Contains(t, l.Days, "2024-06-03")
}

func TestPrune_NothingToRemoveSkipsWrite(t *testing.T) {
	cfg := testConfig(t)
	seedStore(t, cfg, credit("example.com", 60, testNow, storage.ActivityActive))
	sess, out := offlineSession(t, cfg)

	cmd := &PruneCommand{}
	require.NoError(t, cmd.run(context.Background(), sess))

	assert.Contains(t, out.String(), "Pruned 0 days")
	assert.Empty(t, auditActions(t, cfg))
}

func TestPrune_InvalidOlderThan(t *testing.T) {
	sess, _ := offlineSession(t, testConfig(t))

	err := (&PruneCommand{OlderThan: "soon"}).run(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")

	err = (&PruneCommand{OlderThan: "0d"}).run(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1d")
}

func TestExpiredDays(t *testing.T) {
	l := storage.NewLedger()
	l.Days["2024-05-01"] = storage.DayBucket{}
	l.Days["2024-06-02"] = storage.DayBucket{}
	l.Days["garbage"] = storage.DayBucket{}

	assert.Equal(t, []string{"2024-05-01"}, expiredDays(l, 7, testNow))
	assert.Empty(t, expiredDays(l, 60, testNow))
}
