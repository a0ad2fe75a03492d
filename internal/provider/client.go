package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/jsonenc"
)

// clock abstracts wall time and sleeping so tests can run the retry loop
// without actually waiting. PC's spacing gate and backoff sleeps are not
// interruptible mid-sleep, but are cancellable between attempts via ctx.
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		time.Sleep(d)
	}
	return ctx.Err()
}

// Client is the rate-limit-aware Provider Client (PC). Its only mutable
// state is lastRequestAt and requestCount, guarded by mu: keep them atomic
// or behind a short-lived lock.
type Client struct {
	caller     AuthenticatedCaller
	maxRetries int
	retryDelay time.Duration
	clk        clock

	mu            sync.Mutex
	lastRequestAt time.Time
	requestCount  uint64
}

// NewClient constructs a Client from a ProviderConfig and an
// AuthenticatedCaller.
func NewClient(caller AuthenticatedCaller, cfg config.ProviderConfig) *Client {
	return &Client{
		caller:     caller,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		clk:        realClock{},
	}
}

// RequestCount returns the monotonic count of requests attempted so far,
// for observability.
func (c *Client) RequestCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// ListDescriptors lists all current descriptors, paginated, excluding
// trashed entries by default.
func (c *Client) ListDescriptors(ctx context.Context, pageToken string, pageSize int) (*ListDescriptorsResponse, error) {
	result, err := c.executeWithRetry(ctx, EndpointListDescriptors, CallParams{
		PageToken:      pageToken,
		PageSize:       pageSize,
		ExcludeTrashed: true,
	})
	if err != nil {
		return nil, err
	}

	var resp ListDescriptorsResponse
	if err := jsonenc.Unmarshal(result.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode list descriptors response: %w", err)
	}
	return &resp, nil
}

// ListChanges lists change records since pageToken, paginated.
func (c *Client) ListChanges(ctx context.Context, pageToken string, pageSize int) (*ListChangesResponse, error) {
	if pageToken == "" {
		return nil, fmt.Errorf("list changes requires a cursor")
	}

	result, err := c.executeWithRetry(ctx, EndpointListChanges, CallParams{
		PageToken: pageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, err
	}

	var resp ListChangesResponse
	if err := jsonenc.Unmarshal(result.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode list changes response: %w", err)
	}
	return &resp, nil
}

// StartCursor obtains the initial change cursor for a fresh incremental
// sync.
func (c *Client) StartCursor(ctx context.Context) (string, error) {
	result, err := c.executeWithRetry(ctx, EndpointStartCursor, CallParams{})
	if err != nil {
		return "", err
	}

	var resp StartCursorResponse
	if err := jsonenc.Unmarshal(result.Body, &resp); err != nil {
		return "", fmt.Errorf("decode start cursor response: %w", err)
	}
	return resp.StartPageToken, nil
}

// executeWithRetry classifies each response and retries rate-limited or
// transient failures with backoff, surfacing terminal failures immediately.
func (c *Client) executeWithRetry(ctx context.Context, endpoint Endpoint, params CallParams) (*RawResult, error) {
	var lastErr error
	var lastHint time.Duration

	for attempt := 0; ; attempt++ {
		if err := c.waitForSpacingGate(ctx); err != nil {
			return nil, err
		}

		result, err := c.invoke(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		switch classify(result.StatusCode) {
		case classOK:
			return result, nil

		case classRateLimit:
			hint := parseRetryHint(result.Header)
			if hint <= 0 {
				hint = c.retryDelay * 2
			}
			lastHint = hint
			lastErr = fmt.Errorf("status %d", result.StatusCode)

			if attempt >= c.maxRetries {
				return nil, RateLimitError{RetryHint: lastHint, Err: lastErr}
			}
			slog.DebugContext(ctx, "provider rate limited, retrying", slog.Int("attempt", attempt), slog.Duration("hint", hint))
			if err := c.clk.Sleep(ctx, hint); err != nil {
				return nil, err
			}

		case classTransient:
			lastErr = fmt.Errorf("status %d", result.StatusCode)

			if attempt >= c.maxRetries {
				return nil, TransientError{StatusCode: result.StatusCode, Err: lastErr}
			}
			delay := c.backoffDelay(attempt)
			slog.DebugContext(ctx, "provider transient failure, retrying", slog.Int("attempt", attempt), slog.Duration("delay", delay))
			if err := c.clk.Sleep(ctx, delay); err != nil {
				return nil, err
			}

		case classTerminal:
			return nil, TerminalError{StatusCode: result.StatusCode, Err: fmt.Errorf("status %d", result.StatusCode)}
		}
	}
}

// backoffDelay computes min(retry_delay_ms * 2^attempt, 60s) + jitter(0,1s).
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))
	if delay > config.MaxTransientBackoff {
		delay = config.MaxTransientBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(time.Second)))
	return delay + jitter
}

func (c *Client) invoke(ctx context.Context, endpoint Endpoint, params CallParams) (*RawResult, error) {
	c.mu.Lock()
	c.lastRequestAt = c.clk.Now()
	c.requestCount++
	c.mu.Unlock()

	return c.caller.Call(ctx, endpoint, params)
}

func (c *Client) waitForSpacingGate(ctx context.Context) error {
	c.mu.Lock()
	elapsed := c.clk.Now().Sub(c.lastRequestAt)
	c.mu.Unlock()

	wait := config.MinRequestSpacing - elapsed
	if wait <= 0 {
		return nil
	}
	return c.clk.Sleep(ctx, wait)
}

// parseRetryHint extracts a provider-supplied retry hint (seconds,
// converted to ms then to a time.Duration) from response headers.
// Returns 0 if absent or unparsable.
func parseRetryHint(header map[string][]string) time.Duration {
	values := header["Retry-After"]
	if len(values) == 0 {
		return 0
	}
	seconds, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
