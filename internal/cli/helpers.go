package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/bridge"
	"github.com/runnerr0/taskheatmap/internal/client"
	"github.com/runnerr0/taskheatmap/internal/config"
	"github.com/runnerr0/taskheatmap/internal/logger"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Where a command read or wrote its data.
const (
	sourceDaemon = "daemon"
	sourceStore  = "store"
)

// session bundles what every command needs: config, logger, output and a
// daemon client.
type session struct {
	cfg    *config.Config
	log    zerolog.Logger
	json   bool
	out    io.Writer
	in     io.Reader
	client *client.Client
	now    func() time.Time
}

// openSession returns injected when set, otherwise a session built from
// the global flags.
func openSession(g *GlobalFlags, injected *session) (*session, error) {
	if injected != nil {
		return injected, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if g.Config != "" {
		cfg, err = config.LoadOrCreateAt(g.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if g.Verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, Format: cfg.Logging.Format})
	return newSession(cfg, log, g.JSON), nil
}

func newSession(cfg *config.Config, log zerolog.Logger, jsonOut bool) *session {
	return &session{
		cfg:  cfg,
		log:  log,
		json: jsonOut,
		out:  os.Stdout,
		in:   os.Stdin,
		client: client.New(client.Options{
			BaseURL:  cfg.DaemonURL(),
			RetryMax: 2,
			Timeout:  5 * time.Second,
			Logger:   logger.Named(log, "client"),
		}),
		now: time.Now,
	}
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) printJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// daemonDown reports whether err means no daemon is listening, in which
// case commands fall back to the store.
func (s *session) daemonDown(err error) bool {
	if errors.Is(err, client.ErrUnavailable) {
		s.log.Debug().Err(err).Msg("daemon unavailable, using store")
		return true
	}
	return false
}

// loadLedger reads the ledger from the daemon, flushing its pending
// writes, or from the store when no daemon is running.
func (s *session) loadLedger(ctx context.Context) (storage.Ledger, string, error) {
	reply, err := s.client.State(ctx, bridge.StateRequest{FlushPending: true})
	if err == nil {
		return reply.State, sourceDaemon, nil
	}
	if !s.daemonDown(err) {
		return storage.Ledger{}, "", err
	}

	var l storage.Ledger
	err = s.withStore(func(st *localStore) error {
		var err error
		l, err = st.repo.LoadLedger(ctx)
		return err
	})
	return l, sourceStore, err
}

// withStore opens the store, runs fn and closes the store.
func (s *session) withStore(fn func(*localStore) error) error {
	st, err := openStore(s.cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// localStore is the SQLite-backed storage a daemon or an offline command
// works against.
type localStore struct {
	path string
	db   *sql.DB
	kv   *storage.SQLiteKV
	repo *storage.Repository
}

// openStore opens the configured database, runs migrations, and returns a
// ready-to-use store.
func openStore(cfg *config.Config) (*localStore, error) {
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db).WithJournalMode(cfg.Storage.SQLiteJournalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	kv, err := storage.NewSQLiteKV(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}

	return &localStore{path: dbPath, db: db, kv: kv, repo: storage.NewRepository(kv)}, nil
}

func (s *localStore) Close() error {
	return errors.Join(s.kv.Close(), s.db.Close())
}

// audit records action in the audit log; failures are only logged.
func (s *localStore) audit(ctx context.Context, log zerolog.Logger, action, detail string) {
	if err := s.kv.RecordAudit(ctx, action, detail); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("audit log write failed")
	}
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, m or s suffix)", s)
	}
}

// retentionDays converts a pruning duration to whole days, rounding up.
func retentionDays(d time.Duration) int {
	day := 24 * time.Hour
	return int((d + day - 1) / day)
}

// parseDate parses YYYY-MM-DD or RFC3339. Empty means now. A bare date is
// taken as noon UTC so it lands on that UTC day; today's date means now.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC3339)", s)
	}
	if storage.DayKey(t) == storage.DayKey(now) {
		return now, nil
	}
	return t.Add(12 * time.Hour), nil
}

// formatSeconds renders seconds as "2h 05m", "7m 30s" or "45s".
func formatSeconds(sec int64) string {
	sign := ""
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	h, m, s := sec/3600, sec%3600/60, sec%60
	switch {
	case h > 0:
		return fmt.Sprintf("%s%dh %02dm", sign, h, m)
	case m > 0:
		return fmt.Sprintf("%s%dm %02ds", sign, m, s)
	default:
		return fmt.Sprintf("%s%ds", sign, s)
	}
}

// formatDays formats a day count like "30 days".
func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
