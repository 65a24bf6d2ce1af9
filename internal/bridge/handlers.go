package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/runnerr0/taskheatmap/internal/analytics"
	"github.com/runnerr0/taskheatmap/internal/domain"
	"github.com/runnerr0/taskheatmap/internal/storage"
	"github.com/runnerr0/taskheatmap/internal/tracker"
)

const heartbeatInterval = 25 * time.Second

// Request bodies. Unknown fields are rejected.

type IdleRequest struct {
	State string `json:"state" validate:"required,oneof=active idle locked"`
}

type FocusRequest struct {
	WindowID *int `json:"window_id" validate:"required,min=-1"`
}

type TabRequest struct {
	URL string `json:"url" validate:"max=8192"`
}

type StateRequest struct {
	FlushPending bool   `json:"flush_pending"`
	Timeframe    string `json:"timeframe" validate:"omitempty,oneof=day week month"`
	Filter       string `json:"filter" validate:"omitempty,oneof=active idle all"`
}

type DailySummaryRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
	Hour    *int  `json:"hour" validate:"required,min=0,max=23"`
}

type OptionsRequest struct {
	IntervalMinutes *int                 `json:"interval_minutes" validate:"omitempty,min=1,max=1440"`
	DailySummary    *DailySummaryRequest `json:"daily_summary"`
}

type RecordRequest struct {
	Domain     string     `json:"domain" validate:"required_without=IdleBucket,excluded_with=IdleBucket"`
	IdleBucket bool       `json:"idle_bucket"`
	Seconds    int64      `json:"seconds" validate:"required,min=1,max=86400"`
	Activity   string     `json:"activity" validate:"omitempty,oneof=active idle"`
	At         *time.Time `json:"at"`
}

type PruneRequest struct {
	RetentionDays int `json:"retention_days" validate:"required,min=1,max=3650"`
}

// Reply is the body of responses that carry no data. Every response has
// ok; failures add error.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type StateReply struct {
	OK      bool                    `json:"ok"`
	State   storage.Ledger          `json:"state"`
	Runtime storage.RuntimeSnapshot `json:"runtime"`
	Trend   *analytics.Trends       `json:"trend"`
}

type OptionsReply struct {
	OK      bool            `json:"ok"`
	Options storage.Options `json:"options"`
}

type PruneReply struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed"`
}

type ConfigReply struct {
	OK                   bool `json:"ok"`
	TickSeconds          int  `json:"tick_seconds"`
	IdleThresholdSeconds int  `json:"idle_threshold_seconds"`
	RetentionDays        int  `json:"retention_days"`
}

type StatusReply struct {
	OK            bool      `json:"ok"`
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Subscribers   int       `json:"subscribers"`
}

func (s *Server) handleIdle(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[IdleRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	state, _ := tracker.ParseIdleState(req.State)
	s.opts.Browser.SetIdle(state)
	if err := s.opts.Service.IdleChanged(r.Context(), state); err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, Reply{OK: true})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[FocusRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	focused := s.opts.Browser.SetWindow(*req.WindowID)
	if err := s.opts.Service.FocusChanged(r.Context(), focused); err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, Reply{OK: true})
}

// handleTab records the new active tab and samples it right away.
func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[TabRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.opts.Browser.SetURL(req.URL)
	if err := s.opts.Service.Tick(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, Reply{OK: true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[StateRequest](r, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.opts.Service.GetState(r.Context(), tracker.StateRequest{
		FlushPending: req.FlushPending,
		Timeframe:    analytics.ParseTimeframe(req.Timeframe),
		Filter:       analytics.ParseFilter(req.Filter),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, StateReply{
		OK:      true,
		State:   resp.Ledger,
		Runtime: resp.Runtime,
		Trend:   resp.Trend,
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[OptionsRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u := tracker.OptionsUpdate{IntervalMinutes: req.IntervalMinutes}
	if req.DailySummary != nil {
		u.DailySummary = &storage.DailySummary{
			Enabled: *req.DailySummary.Enabled,
			Hour:    *req.DailySummary.Hour,
		}
	}
	opts, err := s.opts.Service.UpdateOptions(r.Context(), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, OptionsReply{OK: true, Options: opts})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[RecordRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	target := storage.IdleBucket()
	if !req.IdleBucket {
		key, ok := domain.Normalize(req.Domain)
		if !ok {
			s.fail(w, r, badRequestf("domain %q is not a valid host", req.Domain))
			return
		}
		target = storage.DomainTarget(key)
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
		if at.After(s.opts.Clock().Add(storage.MaxClockSkew)) {
			s.fail(w, r, badRequestf("at %s is in the future", at.UTC().Format(time.RFC3339)))
			return
		}
	}
	activity := storage.ActivityType(req.Activity)
	if req.Activity == "" && req.IdleBucket {
		activity = storage.ActivityIdle
	}
	if err := s.opts.Service.Record(r.Context(), target, req.Seconds, at, activity); err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, Reply{OK: true})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[PruneRequest](r, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removed, err := s.opts.Service.Prune(r.Context(), req.RetentionDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, PruneReply{OK: true, Removed: removed})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Service.Purge(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, http.StatusOK, Reply{OK: true})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, http.StatusOK, ConfigReply{
		OK:                   true,
		TickSeconds:          s.opts.TickSeconds,
		IdleThresholdSeconds: s.opts.IdleThresholdSeconds,
		RetentionDays:        s.opts.RetentionDays,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := s.opts.Clock()
	s.reply(w, http.StatusOK, StatusReply{
		OK:            true,
		Version:       s.opts.Version,
		StartedAt:     s.started.UTC(),
		UptimeSeconds: int64(now.Sub(s.started) / time.Second),
		Subscribers:   s.opts.Hub.Subscribers(),
	})
}

// handleUpdates streams tracker notifications as server-sent events until
// the client goes away or the server shuts down.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, r, errors.New("streaming unsupported"))
		return
	}

	id, ch := s.opts.Hub.Subscribe()
	defer s.opts.Hub.Unsubscribe(id)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected %s\n\n", id)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}

// fail maps err to a status: 400 for bad payloads, 503 once the tracker
// has stopped, 500 otherwise.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var bad *badRequest
	switch {
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.Is(err, tracker.ErrQueueClosed):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.reply(w, status, Reply{OK: false, Error: err.Error()})
}
