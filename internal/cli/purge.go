package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *PurgeCommand) run(ctx context.Context, sess *session) error {
	// Confirmation prompt unless --force
	if !c.Force {
		sess.printf("⚠ WARNING: This will permanently delete ALL tracked data.\n")
		sess.printf("  - All per-day domain totals\n")
		sess.printf("  - The tracker's runtime snapshot\n")
		sess.printf("\nThis action cannot be undone.\n\n")
		sess.printf(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(sess.in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	source := sourceDaemon
	if err := sess.client.Purge(ctx); err != nil {
		if !sess.daemonDown(err) {
			return fmt.Errorf("purge failed: %w", err)
		}
		source = sourceStore
		err = sess.withStore(func(st *localStore) error {
			if err := st.repo.Purge(ctx); err != nil {
				return err
			}
			st.audit(ctx, sess.log, "purge", "all data deleted")
			return nil
		})
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
	}

	if sess.json {
		return sess.printJSON(map[string]interface{}{
			"purged":  true,
			"source":  source,
			"message": "all data deleted",
		})
	}

	sess.printf("Purged all data. The ledger is empty.\n")
	return nil
}
