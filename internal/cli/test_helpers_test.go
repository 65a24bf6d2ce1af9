package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/client"
	"github.com/runnerr0/taskheatmap/internal/config"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// testNow is the clock offline sessions run at.
var testNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testConfig returns the default config with storage in a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.SQLiteJournalMode = "delete"
	return cfg
}

// offlineSession returns a session whose daemon URL refuses connections,
// so every command takes the store path.
func offlineSession(t *testing.T, cfg *config.Config) (*session, *bytes.Buffer) {
	t.Helper()
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	out := &bytes.Buffer{}
	return &session{
		cfg:    cfg,
		log:    zerolog.Nop(),
		out:    out,
		in:     strings.NewReader(""),
		client: client.New(client.Options{BaseURL: url, Timeout: time.Second, Logger: zerolog.Nop()}),
		now:    func() time.Time { return testNow },
	}, out
}

// onlineSession starts a daemon on a loopback port and returns a session
// talking to it. The daemon is stopped and its store closed on cleanup.
func onlineSession(t *testing.T, cfg *config.Config) (*session, *bytes.Buffer) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	boot, _ := offlineSession(t, cfg)
	d, err := newDaemon(boot, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, d.Close())
	})

	out := &bytes.Buffer{}
	return &session{
		cfg:    cfg,
		log:    zerolog.Nop(),
		out:    out,
		in:     strings.NewReader(""),
		client: client.New(client.Options{BaseURL: "http://" + ln.Addr().String(), RetryMax: 3, Logger: zerolog.Nop()}),
		now:    time.Now,
	}, out
}

// seedStore applies fn to the ledger stored for cfg.
func seedStore(t *testing.T, cfg *config.Config, fn func(storage.Ledger) storage.Ledger) {
	t.Helper()
	st, err := openStore(cfg)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	l, err := st.repo.LoadLedger(ctx)
	require.NoError(t, err)
	require.NoError(t, st.repo.SaveLedger(ctx, fn(l)))
}

// storedLedger reads the ledger stored for cfg.
func storedLedger(t *testing.T, cfg *config.Config) storage.Ledger {
	t.Helper()
	st, err := openStore(cfg)
	require.NoError(t, err)
	defer st.Close()

	l, err := st.repo.LoadLedger(context.Background())
	require.NoError(t, err)
	return l
}

// credit credits seconds of activity to domain (or the idle bucket when
// domain is empty) on the UTC day of at.
func credit(domain string, seconds int64, at time.Time, activity storage.ActivityType) func(storage.Ledger) storage.Ledger {
	target := storage.DomainTarget(domain)
	if domain == "" {
		target = storage.IdleBucket()
	}
	return func(l storage.Ledger) storage.Ledger {
		return storage.Accumulate(l, target, seconds, at, 365, activity)
	}
}

// auditActions lists the audit log actions recorded for cfg, oldest first.
func auditActions(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	st, err := openStore(cfg)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.db.Query("SELECT action FROM audit_log ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		require.NoError(t, rows.Scan(&a))
		out = append(out, a)
	}
	require.NoError(t, rows.Err())
	return out
}
