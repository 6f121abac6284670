// Package oracle talks to the external news verification service that scores
// how well a claim matches its cited source.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trustfeed/internal/resilience"
)

// Client scores news claims.
type Client interface {
	Verify(ctx context.Context, req Request) (*Response, error)
	Health(ctx context.Context) error
}

// Request is the body of POST /verify-news.
type Request struct {
	Headline    string `json:"headline"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

// Response is the service's verdict. ConfidenceScore is nil when the service
// omitted it.
type Response struct {
	ConfidenceScore *float64 `json:"confidence_score"`
	IsVerified      bool     `json:"isVerified"`
	MatchingDetails []string `json:"matching_details"`
	Discrepancies   []string `json:"discrepancies"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default 60s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client that posts claims to endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Verify(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "oracle: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("oracle", resp.StatusCode, respBody)
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "oracle: decode response")
	}
	if result.ConfidenceScore == nil {
		return nil, eris.New("oracle: response missing confidence_score")
	}

	return &result, nil
}

// Health calls GET /health on the oracle's host.
func (c *httpClient) Health(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return eris.Wrap(err, "oracle: parse endpoint")
	}
	u.Path = "/health"
	u.RawQuery = ""

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return eris.Wrap(err, "oracle: create health request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "oracle: health check")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("oracle: health check status %d", resp.StatusCode)
	}
	return nil
}
