package adapters

import (
	"fmt"
	"io"

	"github.com/tucsky/aggr-ingest/internal/httpclient"
)

// maxArchiveBytes caps a single fetched archive body, guarding against a
// misbehaving or malicious endpoint streaming an unbounded response.
const maxArchiveBytes = 256 << 20

// FetchViaHTTPClient adapts an httpclient.Client to the Fetcher signature
// Adapter.Recover expects.
func FetchViaHTTPClient(c *httpclient.Client) Fetcher {
	return func(url string) ([]byte, int, error) {
		resp, err := c.Fetch(url)
		if err != nil {
			return nil, 0, fmt.Errorf("adapters: http fetch: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("adapters: read response body: %w", err)
		}
		return body, resp.StatusCode, nil
	}
}
