// Package client talks to a running taskheatmap daemon over its bridge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/bridge"
)

// ErrUnavailable means the daemon could not be reached.
var ErrUnavailable = errors.New("daemon unavailable")

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	RetryMax int
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Client is a bridge API client. Connection failures and 503 replies are
// retried; everything else is returned as is.
type Client struct {
	base string
	http *retryablehttp.Client
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.Logger = leveledLogger{opts.Logger}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		base: strings.TrimRight(opts.BaseURL, "/"),
		http: rc,
	}
}

// checkRetry retries transport errors and 503s. Other statuses are final
// because writes such as record are not idempotent.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return resp.StatusCode == http.StatusServiceUnavailable, nil
}

func (c *Client) Status(ctx context.Context) (bridge.StatusReply, error) {
	var out bridge.StatusReply
	err := c.call(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) Config(ctx context.Context) (bridge.ConfigReply, error) {
	var out bridge.ConfigReply
	err := c.call(ctx, http.MethodGet, "/v1/config", nil, &out)
	return out, err
}

// State fetches the ledger, the runtime snapshot and the trend for req.
func (c *Client) State(ctx context.Context, req bridge.StateRequest) (bridge.StateReply, error) {
	var out bridge.StateReply
	err := c.call(ctx, http.MethodPost, "/v1/state", req, &out)
	return out, err
}

func (c *Client) UpdateOptions(ctx context.Context, req bridge.OptionsRequest) (bridge.OptionsReply, error) {
	var out bridge.OptionsReply
	err := c.call(ctx, http.MethodPut, "/v1/options", req, &out)
	return out, err
}

func (c *Client) Record(ctx context.Context, req bridge.RecordRequest) error {
	return c.call(ctx, http.MethodPost, "/v1/record", req, nil)
}

// Prune returns the number of days removed.
func (c *Client) Prune(ctx context.Context, retentionDays int) (int, error) {
	var out bridge.PruneReply
	err := c.call(ctx, http.MethodPost, "/v1/prune", bridge.PruneRequest{RetentionDays: retentionDays}, &out)
	return out.Removed, err
}

func (c *Client) Purge(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/v1/state", nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		payload = raw
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var reply bridge.Reply
		if json.Unmarshal(raw, &reply) != nil || reply.Error == "" {
			reply.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: reply.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
