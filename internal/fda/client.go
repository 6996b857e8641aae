package fda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"device-research/internal/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://api.fda.gov/device"
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrTransport covers DNS, connection and timeout failures.
	ErrTransport = errors.New("FDA_TRANSPORT_ERROR")
	// ErrUpstream matches any *UpstreamError.
	ErrUpstream = errors.New("FDA_UPSTREAM_ERROR")
)

// UpstreamError is a non-200 answer from openFDA.
type UpstreamError struct {
	SubResource SubResource
	StatusCode  int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Response is the decoded body of one openFDA query. A missing or empty
// results list means no matches.
type Response struct {
	Meta    map[string]interface{} `json:"meta,omitempty"`
	Results []Record               `json:"results"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client queries one openFDA device sub-resource per call. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tracer:  otel.Tracer("device-research/fda"),
	}
}

// Query sends the sanitized form of query to {base}/{sr}.json.
func (c *Client) Query(ctx context.Context, query string, sr SubResource, limit int) (*Response, error) {
	if sr == All {
		return nil, fmt.Errorf("%q is not a queryable FDA database", sr)
	}

	ctx, span := c.tracer.Start(ctx, "fda.query", trace.WithAttributes(
		attribute.String("fda.sub_resource", string(sr)),
		attribute.Int("fda.limit", limit),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, query, sr, limit)
	metrics.FDARequestDuration.WithLabelValues(string(sr)).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTransport):
		outcome = "transport_error"
	case errors.Is(err, ErrUpstream):
		outcome = "upstream_error"
	case err != nil:
		outcome = "error"
	case len(resp.Results) == 0:
		outcome = "empty"
	}
	metrics.FDASubResourceRequests.WithLabelValues(string(sr), outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("fda.results", len(resp.Results)))
	return resp, nil
}

func (c *Client) do(ctx context.Context, query string, sr SubResource, limit int) (*Response, error) {
	params := url.Values{}
	params.Set("search", Sanitize(query, sr))
	params.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/%s.json?%s", c.baseURL, sr, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &UpstreamError{SubResource: sr, StatusCode: res.StatusCode}
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrTransport, sr, err)
	}
	return &out, nil
}
