// Package ratefeed fetches the daily USD to ARS exchange rate from the
// public currency API published on jsDelivr.
package ratefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/hazyhaar/larder/safeio"
)

// DefaultURL is the currency API endpoint; {date} is replaced by YYYY-MM-DD.
const DefaultURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@{date}/v1/currencies/usd.json"

// DateLayout is the date format used in URLs and cache keys.
const DateLayout = "2006-01-02"

// ErrRateUnavailable is returned when no rate could be obtained. Costing
// treats it as "no USD total" rather than as a failure.
var ErrRateUnavailable = errors.New("ratefeed: usd rate unavailable")

// errCircuitOpen is reported while the breaker rejects requests.
var errCircuitOpen = errors.New("circuit open")

// permanentError marks failures that retrying cannot fix (unknown date,
// malformed payload).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Client fetches and caches exchange rates. It is safe for concurrent use.
type Client struct {
	urlTemplate string
	http        *http.Client
	breaker     *Breaker
	retries     int
	backoff     time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]decimal.Decimal
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (its Timeout is kept as is).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetry sets the retry count and the initial backoff, doubled on each
// attempt. Default: 2 retries, 200ms.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for urlTemplate (DefaultURL when empty).
func New(urlTemplate string, opts ...Option) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultURL
	}
	c := &Client{
		urlTemplate: urlTemplate,
		http:        &http.Client{Timeout: 5 * time.Second},
		breaker:     NewBreaker(),
		retries:     2,
		backoff:     200 * time.Millisecond,
		logger:      slog.Default(),
		cache:       make(map[string]decimal.Decimal),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Breaker returns the client circuit breaker.
func (c *Client) Breaker() *Breaker { return c.breaker }

// USDRate returns how many pesos one dollar buys on date. Successful
// lookups are cached for the life of the client.
func (c *Client) USDRate(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	key := date.Format(DateLayout)

	c.mu.Lock()
	rate, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return rate, nil
	}

	if !c.breaker.Allow() {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrRateUnavailable, errCircuitOpen)
	}

	rate, err := c.fetchWithRetry(ctx, key)
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) {
			c.breaker.Success()
		} else {
			c.breaker.Failure()
		}
		c.logger.WarnContext(ctx, "usd rate unavailable", "date", key, "error", err,
			"breaker", c.breaker.State().String())
		return decimal.Zero, fmt.Errorf("%w: %w", ErrRateUnavailable, err)
	}
	c.breaker.Success()

	c.mu.Lock()
	c.cache[key] = rate
	c.mu.Unlock()
	return rate, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, key string) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		rate, err := c.fetch(ctx, key)
		if err == nil {
			return rate, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			return decimal.Zero, err
		}

		if attempt < c.retries {
			wait := c.backoff * (1 << uint(attempt))
			c.logger.DebugContext(ctx, "retrying usd rate",
				"attempt", attempt+1,
				"max_retries", c.retries,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return decimal.Zero, lastErr
			case <-time.After(wait):
			}
		}
	}
	return decimal.Zero, lastErr
}

func (c *Client) fetch(ctx context.Context, key string) (decimal.Decimal, error) {
	url := strings.ReplaceAll(c.urlTemplate, "{date}", key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, &permanentError{fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := safeio.LimitedReadAll(resp.Body, safeio.MaxResponseBody)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return decimal.Zero, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	default:
		return decimal.Zero, &permanentError{fmt.Errorf("get %s: status %d", url, resp.StatusCode)}
	}

	res := gjson.GetBytes(body, "usd.ars")
	if res.Type != gjson.Number {
		return decimal.Zero, &permanentError{errors.New("response has no numeric usd.ars")}
	}
	rate, err := decimal.NewFromString(res.Raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, &permanentError{fmt.Errorf("invalid usd.ars %q", res.Raw)}
	}
	return rate, nil
}
