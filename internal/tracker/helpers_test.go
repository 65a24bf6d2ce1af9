package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/storage"
)

var t0 = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTabs struct {
	mu  sync.Mutex
	url string
	err error
}

func (f *fakeTabs) ActiveTabURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, f.err
}

func (f *fakeTabs) set(url string, err error) {
	f.mu.Lock()
	f.url, f.err = url, err
	f.mu.Unlock()
}

type fakeIdle struct {
	state IdleState
	err   error
}

func (f fakeIdle) QueryState(context.Context, int) (IdleState, error) {
	return f.state, f.err
}

type recorder struct {
	mu           sync.Mutex
	attributions []Attribution
	summaries    []Summary
}

func (r *recorder) StateChanged(a Attribution) {
	r.mu.Lock()
	r.attributions = append(r.attributions, a)
	r.mu.Unlock()
}

func (r *recorder) DailySummary(s Summary) {
	r.mu.Lock()
	r.summaries = append(r.summaries, s)
	r.mu.Unlock()
}

func (r *recorder) changes() []Attribution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attribution(nil), r.attributions...)
}

func (r *recorder) digests() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Summary(nil), r.summaries...)
}

type harness struct {
	tracker *Tracker
	kv      storage.KV
	mem     *storage.MemoryKV
	repo    *storage.Repository
	clock   *fakeClock
	tabs    *fakeTabs
	events  *recorder
	stop    func() error
}

type harnessOption func(*Options, *harness)

func withKV(kv storage.KV) harnessOption {
	return func(o *Options, h *harness) {
		h.kv = kv
		o.Repo = storage.NewRepository(kv)
	}
}

func withIdle(src IdleSource) harnessOption {
	return func(o *Options, _ *harness) { o.Idle = src }
}

func withDebounce(d time.Duration) harnessOption {
	return func(o *Options, _ *harness) { o.Debounce = d }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(o *Options, _ *harness) { fn(o) }
}

// startTracker runs a tracker whose startup has completed: the browser is
// active on example.com at t0.
func startTracker(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	mem := storage.NewMemoryKV()
	h := &harness{
		mem:    mem,
		kv:     mem,
		clock:  newFakeClock(t0),
		tabs:   &fakeTabs{url: "https://www.example.com/start"},
		events: &recorder{},
	}
	o := Options{
		Repo:          storage.NewRepository(mem),
		Idle:          fakeIdle{state: StateActive},
		Tabs:          h.tabs,
		Listeners:     []Listener{h.events},
		RetentionDays: 30,
		IdleThreshold: 60,
		Debounce:      time.Hour,
		Clock:         h.clock.Now,
		Logger:        zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o, h)
	}
	h.repo = o.Repo
	h.tracker = New(o)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.tracker.Run(ctx) }()

	var once sync.Once
	var runErr error
	h.stop = func() error {
		once.Do(func() {
			cancel()
			runErr = <-done
		})
		return runErr
	}
	t.Cleanup(func() { _ = h.stop() })

	// Any queued call returns only after the startup task has run.
	_, _ = h.tracker.Options(context.Background())
	return h
}

func (h *harness) state(t *testing.T) StateResponse {
	t.Helper()
	resp, err := h.tracker.GetState(context.Background(), StateRequest{})
	require.NoError(t, err)
	return resp
}

func (h *harness) day(t *testing.T) storage.DayBucket {
	t.Helper()
	return h.state(t).Ledger.Days[storage.DayKey(h.clock.Now())]
}
