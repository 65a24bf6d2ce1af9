package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/taskheatmap/internal/storage"
	"github.com/runnerr0/taskheatmap/internal/tracker"
)

var t0 = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

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

type harness struct {
	t       *testing.T
	clock   *fakeClock
	kv      *storage.MemoryKV
	browser *Browser
	hub     *Hub
	tracker *tracker.Tracker
	server  *httptest.Server
	stop    func()
}

type harnessOption func(*Options)

func withMaxRequestSize(n int64) harnessOption {
	return func(o *Options) { o.MaxRequestSize = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   &fakeClock{now: t0},
		kv:      storage.NewMemoryKV(),
		browser: NewBrowser(),
	}
	log := zerolog.Nop()
	h.hub = NewHub(log)
	h.tracker = tracker.New(tracker.Options{
		Repo:      storage.NewRepository(h.kv),
		Idle:      h.browser,
		Tabs:      h.browser,
		Listeners: []tracker.Listener{h.hub},
		Debounce:  time.Hour,
		Clock:     h.clock.Now,
		Logger:    log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.tracker.Run(ctx)
	}()
	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}

	o := Options{
		Service:              h.tracker,
		Browser:              h.browser,
		Hub:                  h.hub,
		TickSeconds:          10,
		IdleThresholdSeconds: 60,
		RetentionDays:        30,
		Version:              "test",
		Logger:               log,
		Clock:                h.clock.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.server = httptest.NewServer(New(o).Handler())

	t.Cleanup(h.server.Close)
	t.Cleanup(h.hub.Close)
	t.Cleanup(h.stop)
	return h
}

// do sends body as JSON and returns the status and raw response.
func (h *harness) do(method, path string, body any) (int, []byte) {
	h.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, r)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, raw
}

// mustOK sends the request and fails the test unless it returns 200.
func (h *harness) mustOK(method, path string, body any) []byte {
	h.t.Helper()
	status, raw := h.do(method, path, body)
	require.Equal(h.t, http.StatusOK, status, string(raw))
	return raw
}

func (h *harness) state() StateReply {
	h.t.Helper()
	var out StateReply
	require.NoError(h.t, json.Unmarshal(h.mustOK(http.MethodPost, "/v1/state", nil), &out))
	require.True(h.t, out.OK)
	return out
}

func (h *harness) today() storage.DayBucket {
	h.t.Helper()
	return h.state().State.Days[storage.DayKey(h.clock.Now())]
}

func decodeError(t *testing.T, raw []byte) Reply {
	t.Helper()
	var out Reply
	require.NoError(t, json.Unmarshal(raw, &out))
	require.False(t, out.OK)
	return out
}
