package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/bridge"
	"github.com/runnerr0/taskheatmap/internal/domain"
	"github.com/runnerr0/taskheatmap/internal/logger"
	"github.com/runnerr0/taskheatmap/internal/tracker"
)

// Execute implements the go-flags Commander interface for DaemonCommand.
func (c *DaemonCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	if c.Host != "" {
		sess.cfg.Daemon.Host = c.Host
	}
	if c.Port > 0 {
		sess.cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		sess.log = sess.log.Level(logger.ParseLevel(c.LogLevel))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(sess, c.version)
	if err != nil {
		return err
	}
	defer d.Close()

	ln, err := net.Listen("tcp", sess.cfg.DaemonAddr())
	if err != nil {
		return err
	}
	return d.Serve(ctx, ln)
}

// daemon wires the store, tracker, alarms and bridge of a running process.
type daemon struct {
	store   *localStore
	tracker *tracker.Tracker
	alarms  *tracker.Alarms
	server  *bridge.Server
	log     zerolog.Logger
	version string
}

func newDaemon(sess *session, version string) (*daemon, error) {
	cfg := sess.cfg
	log := logger.Named(sess.log, "daemon")

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	browser := bridge.NewBrowser()
	hub := bridge.NewHub(logger.Named(sess.log, "hub"))
	tr := tracker.New(tracker.Options{
		Repo:          store.repo,
		Idle:          browser,
		Tabs:          browser,
		Listeners:     []tracker.Listener{hub},
		Exclude:       domain.NewMatcher(cfg.ExcludedDomains()),
		RetentionDays: cfg.Tracking.RetentionDays,
		IdleThreshold: cfg.Tracking.IdleThresholdSeconds,
		Debounce:      time.Duration(cfg.Tracking.DebounceSeconds) * time.Second,
		Logger:        logger.Named(sess.log, "tracker"),
	})
	srv := bridge.New(bridge.Options{
		Addr:                 cfg.DaemonAddr(),
		Service:              tr,
		Browser:              browser,
		Hub:                  hub,
		MaxRequestSize:       cfg.Daemon.MaxRequestSize,
		TickSeconds:          cfg.Tracking.TickSeconds,
		IdleThresholdSeconds: cfg.Tracking.IdleThresholdSeconds,
		RetentionDays:        cfg.Tracking.RetentionDays,
		Version:              version,
		Logger:               logger.Named(sess.log, "bridge"),
	})

	return &daemon{
		store:   store,
		tracker: tr,
		alarms:  tracker.NewAlarms(tr, time.Duration(cfg.Tracking.TickSeconds)*time.Second, logger.Named(sess.log, "alarms")),
		server:  srv,
		log:     log,
		version: version,
	}, nil
}

// Serve runs until ctx is done or the bridge fails. On return the tracker
// has written its final state.
func (d *daemon) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.store.audit(ctx, d.log, "daemon_start", d.version)
	d.log.Info().Str("db", d.store.path).Str("version", d.version).Msg("daemon starting")

	trackerDone := make(chan error, 1)
	go func() { trackerDone <- d.tracker.Run(ctx) }()
	d.alarms.Start(ctx)

	srvErr := d.server.Serve(ctx, ln)
	cancel()
	d.alarms.Stop()
	trErr := <-trackerDone

	d.store.audit(context.Background(), d.log, "daemon_stop", d.version)
	d.log.Info().Msg("daemon stopped")
	return errors.Join(srvErr, trErr)
}

func (d *daemon) Close() error {
	return d.store.Close()
}
