// Package catalog supplies orbital element catalogs from a Celestrak
// style TLE text endpoint. It runs before a screening is invoked; the
// engine itself never touches the network.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/signalsfoundry/conjunction-screener/model"
)

// DefaultURL is the Celestrak "active" group in TLE format.
const DefaultURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle"

const userAgent = "conjunction-screener/1.0 (orbital safety screening)"

// maxResponseBytes caps how much catalog text is read; the full active
// catalog is a few MB.
const maxResponseBytes = 64 << 20

// Client fetches TLE catalog text over HTTP.
type Client struct {
	// URL overrides DefaultURL when non-empty.
	URL string
	// HTTPClient defaults to a client with a 30 s timeout.
	HTTPClient *http.Client
}

// NewClient returns a client for the given URL ("" means DefaultURL).
func NewClient(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads and parses the catalog. Failures are returned to the
// caller, which decides between failing the request and falling back to
// the built-in mini catalog.
func (c *Client) Fetch(ctx context.Context) ([]model.TLE, error) {
	url := c.URL
	if url == "" {
		url = DefaultURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read catalog body: %w", err)
	}
	return ParseTLEText(string(body)), nil
}

// ParseTLEText splits raw catalog text into element sets. A set is a
// name line followed by two element lines with "1 " and "2 " prefixes;
// anything that does not match is skipped one line at a time.
func ParseTLEText(text string) []model.TLE {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var sets []model.TLE
	for i := 0; i+2 < len(lines); {
		name, l1, l2 := lines[i], lines[i+1], lines[i+2]
		if strings.HasPrefix(l1, "1 ") && strings.HasPrefix(l2, "2 ") {
			sets = append(sets, model.TLE{Name: name, Line1: l1, Line2: l2})
			i += 3
		} else {
			i++
		}
	}
	return sets
}

// Fallback returns a minimal built-in catalog for degraded operation
// when the upstream source is unreachable.
func Fallback() []model.TLE {
	return []model.TLE{
		{
			Name:  "ISS (ZARYA)",
			Line1: "1 25544U 98067A   24298.50000000  .00016717  00000+0  10270-3 0  9005",
			Line2: "2 25544  51.6400 208.9163 0006317  69.9862 320.6634 15.50192628473224",
		},
		{
			Name:  "HUBBLE SPACE TELESCOPE",
			Line1: "1 20580U 90037B   24298.50000000  .00001390  00000+0  71139-4 0  9991",
			Line2: "2 20580  28.4697 259.1734 0002901 300.5682 151.9476 15.09742863334442",
		},
	}
}
