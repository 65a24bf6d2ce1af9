package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) (*SQLiteKV, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	kv, err := NewSQLiteKV(db)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv, db
}

func TestSQLiteKV_SetGetDelete(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	got, err := kv.Get(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, kv.Set(ctx, map[string][]byte{
		"a": []byte(`{"x":1}`),
		"b": []byte("two"),
	}))
	require.NoError(t, kv.Set(ctx, map[string][]byte{"a": []byte(`{"x":2}`)}))

	got, err = kv.Get(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte(`{"x":2}`), "b": []byte("two")}, got)

	require.NoError(t, kv.Delete(ctx, []string{"a", "c"}))
	got, err = kv.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": []byte("two")}, got)
}

func TestSQLiteKV_Stats(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	stats, err := kv.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Keys)
	assert.True(t, stats.LastWrite.IsZero())

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, kv.Set(ctx, map[string][]byte{"k1": []byte("abc"), "k2": []byte("de")}))

	stats, err = kv.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Keys)
	assert.Equal(t, int64(5), stats.ValueBytes)
	assert.True(t, stats.LastWrite.After(before))
}

func TestSQLiteKV_RecordAudit(t *testing.T) {
	kv, db := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.RecordAudit(ctx, "prune", "removed 3 days"))
	require.NoError(t, kv.RecordAudit(ctx, "purge", ""))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count))
	assert.Equal(t, 2, count)

	var detail string
	require.NoError(t, db.QueryRow("SELECT detail FROM audit_log WHERE action = 'prune'").Scan(&detail))
	assert.Equal(t, "removed 3 days", detail)
}

func TestSQLiteKV_CanceledContext(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := kv.Set(ctx, map[string][]byte{"a": []byte("1")})
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2024-01-02T03:04:05Z", "2024-01-02T03:04:05.123Z", "2024-01-02 03:04:05"} {
		ts, err := parseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, ts.Year())
	}
	_, err := parseTimestamp("yesterday")
	assert.Error(t, err)
}
