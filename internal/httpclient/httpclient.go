// Package httpclient wraps net/http with per-host pacing and bounded
// retry/back-off, honoring Retry-After. Per-host last-call bookkeeping uses
// github.com/jellydator/ttlcache/v3, generalized from the teacher's
// PathCache (sync/pathcache.go, inode→path) to host→last-call-time, with a
// TTL well beyond any realistic pacing window so entries age out instead of
// accumulating forever across a long-running gap-fix pass.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// lastCallTTL bounds how long a host's pacing entry is retained; far larger
// than any MinIntervalMs so it never evicts mid-pacing, just prevents
// unbounded growth over a long run touching many distinct hosts.
const lastCallTTL = time.Hour

// Policy is the per-host pacing/back-off configuration.
type Policy struct {
	MinIntervalMs  int64
	MaxAttempts    int
	BaseBackoffMs  int64
	MaxBackoffMs   int64
}

// DefaultPolicy is a reasonable default for exchange archive hosts.
var DefaultPolicy = Policy{
	MinIntervalMs: 200,
	MaxAttempts:   5,
	BaseBackoffMs: 500,
	MaxBackoffMs:  60_000,
}

// retryAfterCeilingMs is the hard ceiling on an honored Retry-After value.
const retryAfterCeilingMs = 300_000

// Client paces requests per host and retries on 429/5xx.
type Client struct {
	Policy Policy
	Now    func() time.Time
	Sleep  func(time.Duration)
	Do     func(*http.Request) (*http.Response, error)

	lastCall *ttlcache.Cache[string, time.Time]
}

// New creates a Client with the given policy and a real net/http transport.
func New(policy Policy) *Client {
	return &Client{
		Policy:   policy,
		Now:      time.Now,
		Sleep:    time.Sleep,
		Do:       http.DefaultClient.Do,
		lastCall: ttlcache.New[string, time.Time](),
	}
}

// Fetch issues a GET to rawURL, pacing and retrying per Policy. The last
// response is returned even after retry exhaustion (caller inspects status).
func (c *Client) Fetch(rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse url: %w", err)
	}
	host := u.Hostname()

	var resp *http.Response
	maxAttempts := c.Policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.waitForSlot(host)

		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: build request: %w", err)
		}

		resp, err = c.Do(req)
		c.recordCall(host)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}

		if resp.StatusCode != 429 && resp.StatusCode < 500 {
			return resp, nil
		}

		if attempt == maxAttempts {
			return resp, nil
		}

		sleepMs := c.backoffMs(attempt, resp)
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()
		c.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}

	return resp, nil
}

// backoffMs computes the sleep duration for a retried attempt: Retry-After
// is honored verbatim (converted to ms) up to retryAfterCeilingMs, otherwise
// exponential back-off clamped to Policy.MaxBackoffMs.
func (c *Client) backoffMs(attempt int, resp *http.Response) int64 {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.ParseFloat(ra, 64); err == nil {
			ms := int64(secs * 1000)
			if ms > retryAfterCeilingMs {
				ms = retryAfterCeilingMs
			}
			return ms
		}
	}

	backoff := c.Policy.BaseBackoffMs
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.Policy.MaxBackoffMs {
		backoff = c.Policy.MaxBackoffMs
	}
	return backoff
}

// waitForSlot blocks (via Sleep) until minIntervalMs has elapsed since the
// last call to host.
func (c *Client) waitForSlot(host string) {
	item := c.lastCall.Get(host)
	if item == nil {
		return
	}

	minInterval := time.Duration(c.Policy.MinIntervalMs) * time.Millisecond
	elapsed := c.Now().Sub(item.Value())
	if elapsed < minInterval {
		c.Sleep(minInterval - elapsed)
	}
}

func (c *Client) recordCall(host string) {
	c.lastCall.Set(host, c.Now(), lastCallTTL)
}
