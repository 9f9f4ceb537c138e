// Package metering is an HTTP client for the metering service that lists
// tenants and returns their raw usage samples.
package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

const (
	authHeader     = "X-Auth-Token"
	defaultTimeout = 60 * time.Second
	queryTimeFmt   = "2006-01-02T15:04:05"
)

// Samples without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type sample struct {
	ResourceID string          `json:"resource_id"`
	Source     string          `json:"source"`
	Volume     decimal.Decimal `json:"counter_volume"`
	Unit       string          `json:"counter_unit"`
	Timestamp  string          `json:"timestamp"`
	Metadata   json.RawMessage `json:"resource_metadata"`
}

// Tenants lists every project known to the metering service.
func (c *Client) Tenants(ctx context.Context) ([]model.TenantInfo, error) {
	var projects []project
	if err := c.get(ctx, "/v2/projects", nil, &projects); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	tenants := make([]model.TenantInfo, 0, len(projects))
	for _, p := range projects {
		tenants = append(tenants, model.TenantInfo{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return tenants, nil
}

// Usage returns the samples of meter for the tenant with
// start <= timestamp < end, ordered by timestamp.
func (c *Client) Usage(ctx context.Context, tenantID, meter string, start, end time.Time) ([]model.Sample, error) {
	q := url.Values{}
	q.Set("project_id", tenantID)
	q.Set("start", start.UTC().Format(queryTimeFmt))
	q.Set("end", end.UTC().Format(queryTimeFmt))

	var raw []sample
	if err := c.get(ctx, "/v2/meters/"+url.PathEscape(meter), q, &raw); err != nil {
		return nil, fmt.Errorf("usage %s for %s: %w", meter, tenantID, err)
	}

	samples := make([]model.Sample, 0, len(raw))
	for _, s := range raw {
		ts, err := parseTimestamp(s.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("usage %s for %s: sample %s: %w", meter, tenantID, s.ResourceID, err)
		}
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		samples = append(samples, model.Sample{
			ResourceID: s.ResourceID,
			Source:     s.Source,
			Volume:     s.Volume,
			Unit:       s.Unit,
			Timestamp:  ts,
			Metadata:   s.Metadata,
		})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(authHeader, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
