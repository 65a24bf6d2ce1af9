package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/runnerr0/taskheatmap/internal/analytics"
)

var exportHeader = []string{"domain", "activeSeconds", "idleSeconds", "totalSeconds"}

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	sess, err := openSession(c.globals, c.sess)
	if err != nil {
		return err
	}
	return c.run(context.Background(), sess)
}

func (c *ExportCommand) run(ctx context.Context, sess *session) error {
	end, err := parseDate(c.Date, sess.now())
	if err != nil {
		return err
	}
	ledger, _, err := sess.loadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	rows := analytics.BuildExportRows(ledger.Days, analytics.Query{
		EndDate:   end,
		Timeframe: analytics.ParseTimeframe(c.Timeframe),
		Filter:    analytics.ParseFilter(c.Filter),
	})

	w := sess.out
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	format := c.Format
	if sess.json {
		format = "json"
	}
	if format == "json" {
		err = writeExportJSON(w, rows)
	} else {
		err = writeExportCSV(w, rows)
	}
	if err != nil {
		return err
	}

	if c.Output != "" && !sess.json {
		fmt.Fprintf(os.Stderr, "Exported %d rows to %s\n", len(rows), c.Output)
	}
	return nil
}

func writeExportCSV(w io.Writer, rows []analytics.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Domain,
			strconv.FormatInt(r.ActiveSeconds, 10),
			strconv.FormatInt(r.IdleSeconds, 10),
			strconv.FormatInt(r.TotalSeconds, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeExportJSON(w io.Writer, rows []analytics.ExportRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
