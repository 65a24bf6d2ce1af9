package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/taskheatmap/internal/bridge"
	"github.com/runnerr0/taskheatmap/internal/domain"
	"github.com/runnerr0/taskheatmap/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.Duration == "" {
		return fmt.Errorf("--duration is required for add command")
	}
	if c.Domain == "" && !c.Idle {
		return fmt.Errorf("--domain or --idle-bucket is required for add command")
	}
	if c.Domain != "" && c.Idle {
		return fmt.Errorf("--domain and --idle-bucket are mutually exclusive")
	}

	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

// addJSON is the JSON output structure for the add command.
type addJSON struct {
	Domain   string `json:"domain,omitempty"`
	Idle     bool   `json:"idle_bucket"`
	Seconds  int64  `json:"seconds"`
	Activity string `json:"activity"`
	Day      string `json:"day"`
	Source   string `json:"source"`
}

func (c *AddCommand) run(ctx context.Context, sess *session) error {
	d, err := parseDuration(c.Duration)
	if err != nil {
		return err
	}
	seconds := int64(d / time.Second)
	if seconds < 1 {
		return fmt.Errorf("--duration must be at least 1s")
	}
	if seconds > 24*60*60 {
		return fmt.Errorf("--duration must be at most 24h")
	}

	now := sess.now()
	at, err := parseDate(c.At, now)
	if err != nil {
		return err
	}
	if at.After(now.Add(storage.MaxClockSkew)) {
		return fmt.Errorf("--at must not be in the future")
	}

	target := storage.IdleBucket()
	key := ""
	if !c.Idle {
		var ok bool
		key, ok = domain.Normalize(c.Domain)
		if !ok {
			return fmt.Errorf("invalid domain: %s", c.Domain)
		}
		if domain.NewMatcher(sess.cfg.ExcludedDomains()).Match(key) {
			return fmt.Errorf("domain %q is excluded by exclusion rules", key)
		}
		target = storage.DomainTarget(key)
	}

	activity := storage.ActivityType(c.Activity)
	if c.Activity == "" && c.Idle {
		activity = storage.ActivityIdle
	}
	activity = activity.Normalize()

	source := sourceDaemon
	err = sess.client.Record(ctx, bridge.RecordRequest{
		Domain:     key,
		IdleBucket: c.Idle,
		Seconds:    seconds,
		Activity:   string(activity),
		At:         &at,
	})
	if err != nil {
		if !sess.daemonDown(err) {
			return fmt.Errorf("record: %w", err)
		}
		source = sourceStore
		err = sess.withStore(func(st *localStore) error {
			l, err := st.repo.LoadLedger(ctx)
			if err != nil {
				return err
			}
			l = storage.Accumulate(l, target, seconds, at, sess.cfg.Tracking.RetentionDays, activity)
			if err := st.repo.SaveLedger(ctx, l); err != nil {
				return err
			}
			st.audit(ctx, sess.log, "manual_add", fmt.Sprintf("%s %ds %s", c.label(key), seconds, storage.DayKey(at)))
			return nil
		})
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}

	if sess.json {
		return sess.printJSON(addJSON{
			Domain:   key,
			Idle:     c.Idle,
			Seconds:  seconds,
			Activity: string(activity),
			Day:      storage.DayKey(at),
			Source:   source,
		})
	}
	sess.printf("Added %s of %s time to %s on %s\n", formatSeconds(seconds), activity, c.label(key), storage.DayKey(at))
	return nil
}

func (c *AddCommand) label(key string) string {
	if c.Idle {
		return "the idle bucket"
	}
	return key
}
