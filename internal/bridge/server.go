// Package bridge is the local HTTP surface between the browser extension
// and the tracker daemon. The extension reports idle, focus and tab events;
// foreground surfaces read state and subscribe to updates.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/storage"
	"github.com/runnerr0/taskheatmap/internal/tracker"
)

// Service is the tracker surface the bridge drives.
type Service interface {
	Tick(ctx context.Context) error
	IdleChanged(ctx context.Context, state tracker.IdleState) error
	FocusChanged(ctx context.Context, focused bool) error
	Record(ctx context.Context, target storage.Target, seconds int64, at time.Time, activity storage.ActivityType) error
	GetState(ctx context.Context, req tracker.StateRequest) (tracker.StateResponse, error)
	UpdateOptions(ctx context.Context, u tracker.OptionsUpdate) (storage.Options, error)
	Prune(ctx context.Context, retentionDays int) (int, error)
	Purge(ctx context.Context) error
}

// DefaultOrigins allows browser extension pages to call the bridge.
var DefaultOrigins = []string{"chrome-extension://*", "moz-extension://*"}

// Options configures a Server.
type Options struct {
	Addr    string
	Service Service
	Browser *Browser
	Hub     *Hub

	// MaxRequestSize caps request bodies, in bytes.
	MaxRequestSize int64
	AllowedOrigins []string
	// RequestTimeout bounds every route except the update stream.
	RequestTimeout time.Duration

	TickSeconds          int
	IdleThresholdSeconds int
	RetentionDays        int
	Version              string

	Logger zerolog.Logger
	Clock  func() time.Time
}

// Server serves the bridge API.
type Server struct {
	opts    Options
	log     zerolog.Logger
	mux     *chi.Mux
	srv     *http.Server
	started time.Time
}

func New(opts Options) *Server {
	if opts.Browser == nil {
		opts.Browser = NewBrowser()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 1 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = DefaultOrigins
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		started: opts.Clock(),
	}
	s.mux = s.routes()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv.RegisterOnShutdown(opts.Hub.Close)
	return s
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(s.log, time.Second))
	r.Use(chicors.Handler(chicors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(chimw.RequestSize(s.opts.MaxRequestSize))

	r.Get("/status", s.handleStatus)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/updates", s.handleUpdates)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.opts.RequestTimeout))
			r.Post("/events/idle", s.handleIdle)
			r.Post("/events/focus", s.handleFocus)
			r.Post("/events/tab", s.handleTab)
			r.Post("/state", s.handleState)
			r.Delete("/state", s.handlePurge)
			r.Put("/options", s.handleOptions)
			r.Post("/record", s.handleRecord)
			r.Post("/prune", s.handlePrune)
			r.Get("/config", s.handleConfig)
		})
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.opts.Addr }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")

	errc := make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// Shutdown stops the server gracefully and disconnects subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
