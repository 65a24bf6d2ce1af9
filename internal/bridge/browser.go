package bridge

import (
	"context"
	"sync"

	"github.com/runnerr0/taskheatmap/internal/tracker"
)

// NoWindow is the window id the extension reports when no browser window
// has focus.
const NoWindow = -1

// Browser mirrors what the extension last reported about the browser. It
// answers the tracker's idle and tab queries from that state.
type Browser struct {
	mu       sync.RWMutex
	idle     tracker.IdleState
	url      string
	windowID int
}

// NewBrowser returns a Browser that starts active and focused, with no tab.
func NewBrowser() *Browser {
	return &Browser{idle: tracker.StateActive}
}

func (b *Browser) SetIdle(s tracker.IdleState) {
	b.mu.Lock()
	b.idle = s
	b.mu.Unlock()
}

func (b *Browser) SetURL(u string) {
	b.mu.Lock()
	b.url = u
	b.mu.Unlock()
}

// SetWindow records the focused window and reports whether any window has
// focus.
func (b *Browser) SetWindow(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windowID = id
	return id != NoWindow
}

// QueryState implements tracker.IdleSource. The threshold is applied by the
// extension when it reports changes.
func (b *Browser) QueryState(_ context.Context, _ int) (tracker.IdleState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idle, nil
}

// ActiveTabURL implements tracker.TabQuerier.
func (b *Browser) ActiveTabURL(_ context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.windowID == NoWindow {
		return "", nil
	}
	return b.url, nil
}
