// Package strapi talks to the content-management API that owns locations and timings.
package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/namaznow/timings-import/internal/logging"
	"github.com/namaznow/timings-import/internal/timings"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	locationsPath     = "/api/locations"
	importTimingsPath = "/api/timing/importTimings"

	// maxResponseBytes caps how much of a response body is read
	maxResponseBytes = 4 << 20
	// DefaultTimeout applies when Config.Timeout is zero
	DefaultTimeout = 30 * time.Second
)

// Config holds what a Client needs to reach the API
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	// Transport is the base transport under the bearer-token layer; nil uses http.DefaultTransport
	Transport http.RoundTripper
}

// Location is a submission target
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubmissionPayload is the body of an import request
type SubmissionPayload struct {
	PrayerTimings   timings.PrayerTimesByDate `json:"prayerTimings"`
	LocationID      int64                     `json:"locationId"`
	SchoolOfThought timings.SchoolOfThought   `json:"schoolOfThought"`
}

// Ack is the API's answer to an accepted import
type Ack struct {
	StatusCode int
	Body       []byte
}

// Client calls the locations and import endpoints with a bearer token
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the API at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AuthToken,
		TokenType:   "Bearer",
	})

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: tokenSource,
				Base:   transport,
			},
		},
		logger: logging.GetLogger("strapi").With().Str("base_url", base.String()).Logger(),
	}, nil
}

type locationsResponse struct {
	Data []struct {
		ID         int64 `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchLocations lists the locations timings can be imported for
func (c *Client) FetchLocations(ctx context.Context) ([]Location, error) {
	const op = "fetch locations"
	c.logger.Debug().Msg("Fetching locations")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(locationsPath), nil)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: status, Body: excerpt(body), Err: err}
	}

	var resp locationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error().Err(err).Msg("Failed to decode locations response")
		return nil, &NetworkError{Op: op, StatusCode: status, Body: excerpt(body), Err: fmt.Errorf("decode response: %w", err)}
	}

	locations := make([]Location, 0, len(resp.Data))
	for _, item := range resp.Data {
		locations = append(locations, Location{ID: item.ID, Name: item.Attributes.Name})
	}

	c.logger.Info().Int("count", len(locations)).Msg("Fetched locations")
	return locations, nil
}

// SubmitTimings posts an import payload
func (c *Client) SubmitTimings(ctx context.Context, payload SubmissionPayload) (Ack, error) {
	const op = "submit timings"
	logger := c.logger.With().
		Int64("location_id", payload.LocationID).
		Str("school_of_thought", payload.SchoolOfThought.String()).
		Int("entries", len(payload.PrayerTimings)).
		Logger()
	logger.Debug().Msg("Submitting timings")

	data, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, &NetworkError{Op: op, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(importTimingsPath), bytes.NewReader(data))
	if err != nil {
		return Ack{}, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return Ack{}, &NetworkError{Op: op, StatusCode: status, Body: excerpt(body), Err: err}
	}

	logger.Info().Int("status", status).Msg("Timings submitted")
	return Ack{StatusCode: status, Body: body}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends req and returns status and body; non-2xx statuses are errors
func (c *Client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("Request failed")
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error().Err(err).Str("path", req.URL.Path).Msg("Failed to read response body")
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).Msg("Unexpected response status")
		return resp.StatusCode, body, ErrUnexpectedStatus
	}
	return resp.StatusCode, body, nil
}
