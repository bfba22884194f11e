// Package spaceweather summarises geomagnetic conditions from the NOAA
// SWPC JSON feeds. It is a best-effort collaborator: a screening
// response carries whatever summary could be produced, and feed
// failures degrade to an "unknown" risk rather than failing the
// request.
package spaceweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the NOAA Space Weather Prediction Center host.
const DefaultBaseURL = "https://services.swpc.noaa.gov"

const (
	kpIndexPath = "/json/planetary_k_index_1m.json"
	xrayPath    = "/json/goes/primary/xrays-1-day.json"
)

const maxResponseBytes = 16 << 20

// Summary is the compact space-weather block attached to screening
// responses.
type Summary struct {
	KpLatest        map[string]any `json:"kp_latest,omitempty"`
	XraySampleLen   int            `json:"xray_sample_len"`
	GeomagneticRisk string         `json:"geomagnetic_risk"`
	Err             string         `json:"error,omitempty"`
}

// Client queries the SWPC feeds.
type Client struct {
	// BaseURL overrides DefaultBaseURL when non-empty.
	BaseURL string
	// HTTPClient defaults to a client with a 20 s timeout.
	HTTPClient *http.Client
}

// NewClient returns a client for the given base URL ("" means the NOAA
// production host).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Summarize fetches the planetary Kp feed and the GOES X-ray feed and
// reduces them to a risk tag: "elevated" when the latest Kp is >= 5,
// "nominal" below, "unknown" when the feed cannot be read.
func (c *Client) Summarize(ctx context.Context) Summary {
	var summary Summary

	kp, err := c.fetchSeries(ctx, kpIndexPath)
	if err != nil {
		summary.GeomagneticRisk = "unknown"
		summary.Err = err.Error()
		return summary
	}
	if len(kp) > 0 {
		summary.KpLatest = kp[len(kp)-1]
	}

	if kpVal, ok := latestKpValue(summary.KpLatest); ok {
		if kpVal >= 5 {
			summary.GeomagneticRisk = "elevated"
		} else {
			summary.GeomagneticRisk = "nominal"
		}
	} else {
		summary.GeomagneticRisk = "unknown"
	}

	// The X-ray feed is informational only; ignore its failure.
	if xray, err := c.fetchSeries(ctx, xrayPath); err == nil {
		summary.XraySampleLen = len(xray)
	}

	return summary
}

func (c *Client) fetchSeries(ctx context.Context, path string) ([]map[string]any, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", path, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var series []map[string]any
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return series, nil
}

// latestKpValue pulls the Kp number out of a feed entry; the feed has
// used both "kp_index" and "kp" keys, and both numeric and string
// encodings.
func latestKpValue(entry map[string]any) (float64, bool) {
	if entry == nil {
		return 0, false
	}
	for _, key := range []string{"kp_index", "kp"} {
		switch v := entry[key].(type) {
		case float64:
			return v, true
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
