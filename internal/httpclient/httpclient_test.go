package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResponse(status int, retryAfter string) *http.Response {
	h := http.Header{}
	if retryAfter != "" {
		h.Set("Retry-After", retryAfter)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func newFakeClient(t *testing.T, responses []*http.Response) (*Client, *[]time.Duration, *[]time.Time) {
	t.Helper()
	var sleeps []time.Duration
	var calls []time.Time
	now := time.Unix(0, 0)

	idx := 0
	c := &Client{
		Policy: DefaultPolicy,
		Now:    func() time.Time { return now },
		Sleep: func(d time.Duration) {
			sleeps = append(sleeps, d)
			now = now.Add(d)
		},
		Do: func(req *http.Request) (*http.Response, error) {
			require.Less(t, idx, len(responses))
			resp := responses[idx]
			idx++
			calls = append(calls, now)
			return resp, nil
		},
		lastCall: ttlcache.New[string, time.Time](),
	}
	return c, &sleeps, &calls
}

func TestFetchRetryAfterPointTwoSecondsSleeps200ms(t *testing.T) {
	c, sleeps, calls := newFakeClient(t, []*http.Response{
		fakeResponse(429, "0.2"),
		fakeResponse(200, ""),
	})

	resp, err := c.Fetch("https://archive.example.com/trades.csv")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, *sleeps)
	assert.Len(t, *calls, 2)
}

func TestFetchRetryAfterCapsAtCeiling(t *testing.T) {
	c, sleeps, calls := newFakeClient(t, []*http.Response{
		fakeResponse(429, "9999"),
		fakeResponse(200, ""),
	})

	resp, err := c.Fetch("https://archive.example.com/trades.csv")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []time.Duration{300_000 * time.Millisecond}, *sleeps)
	assert.Len(t, *calls, 2)
}

func TestFetchPacesSuccessiveCallsToSameHost(t *testing.T) {
	c, sleeps, calls := newFakeClient(t, []*http.Response{
		fakeResponse(200, ""),
		fakeResponse(200, ""),
	})

	_, err := c.Fetch("https://archive.example.com/a.csv")
	require.NoError(t, err)
	_, err = c.Fetch("https://archive.example.com/b.csv")
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.GreaterOrEqual(t, (*calls)[1].Sub((*calls)[0]), time.Duration(c.Policy.MinIntervalMs)*time.Millisecond)
	assert.NotEmpty(t, *sleeps)
}

func TestFetchReturnsLastResponseAfterExhaustion(t *testing.T) {
	c, _, calls := newFakeClient(t, []*http.Response{
		fakeResponse(500, ""),
		fakeResponse(500, ""),
	})
	c.Policy.MaxAttempts = 2

	resp, err := c.Fetch("https://archive.example.com/a.csv")
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Len(t, *calls, 2)
}

func TestFetchDoesNotRetryOnPlain404(t *testing.T) {
	c, _, calls := newFakeClient(t, []*http.Response{
		fakeResponse(404, ""),
	})

	resp, err := c.Fetch("https://archive.example.com/missing.csv")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Len(t, *calls, 1)
}
