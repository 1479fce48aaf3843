package tours

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/httpclient"
	"github.com/Checker-Finance/experiences/internal/rate"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// Metric/log labels for each upstream endpoint.
const (
	endpointList         = "tours.list"
	endpointGet          = "tours.get"
	endpointPrices       = "tours.prices"
	endpointAvailability = "tours.availability"
	endpointProbe        = "tours.probe"
)

// Client wraps low-level HTTP communication with a tours API.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	probe   *httpclient.Executor
	baseURL string
	apiKey  string
}

// NewClient constructs a tours HTTP client. Probes use a separate executor
// that never retries.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, cfg Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		logger:  logger,
		exec:    httpclient.New(logger, rateMgr, httpClient, cfg.RetryMax, cfg.Name, nil),
		probe:   httpclient.New(logger, nil, httpClient, 0, cfg.Name, nil),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// ListTours fetches one page of tours for a date range.
// GET /api/tours?start_date&end_date&limit&page
func (c *Client) ListTours(ctx context.Context, r model.DateRange, f model.Filters) ([]json.RawMessage, error) {
	f = f.WithDefaults()
	q := url.Values{}
	q.Set("start_date", r.Start.String())
	q.Set("end_date", r.End.String())
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("page", strconv.Itoa(f.Page))

	var resp tourListResponse
	if err := c.getJSON(ctx, c.exec, "/api/tours", q, endpointList, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetTour fetches one tour by its native id.
// GET /api/tours/{id}
func (c *Client) GetTour(ctx context.Context, nativeID string) (*TourRecord, error) {
	var resp TourRecord
	if err := c.getJSON(ctx, c.exec, "/api/tours/"+url.PathEscape(nativeID), nil, endpointGet, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TourPrices fetches the price list for a tour. Elements are returned raw.
// GET /api/tour-prices?tour_id={id}
func (c *Client) TourPrices(ctx context.Context, nativeID string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("tour_id", nativeID)

	var resp []json.RawMessage
	if err := c.getJSON(ctx, c.exec, "/api/tour-prices", q, endpointPrices, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Availability fetches the availability record of a tour on one date.
// GET /api/tours/{id}/availability?date=YYYY-MM-DD
func (c *Client) Availability(ctx context.Context, nativeID string, date model.Date) (*TourAvailability, error) {
	q := url.Values{}
	q.Set("date", date.String())

	var resp TourAvailability
	path := "/api/tours/" + url.PathEscape(nativeID) + "/availability"
	if err := c.getJSON(ctx, c.exec, path, q, endpointAvailability, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe performs a minimal listing request to check liveness.
// GET /api/tours?limit=1
func (c *Client) Probe(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	return c.getJSON(ctx, c.probe, "/api/tours", q, endpointProbe, nil)
}

// getJSON performs an authenticated GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, exec *httpclient.Executor, path string, q url.Values, endpoint string, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return exec.DoJSON(ctx, req, endpoint, out)
}
