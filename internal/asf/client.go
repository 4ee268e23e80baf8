// Package asf is a client for the ASF Search API and the ASF product
// download endpoints.
package asf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// DefaultAuthHost is the Earthdata Login host ASF downloads redirect to.
const DefaultAuthHost = "urs.earthdata.nasa.gov"

const userAgent = "cohdet/1.0"

// Client handles communication with the ASF Search API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
	user           string
	password       string
	authHost       string
	logger         *slog.Logger
}

// NewClient creates a new ASF API client. Searches are bounded by timeout;
// downloads use WithDownloadTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		authHost: DefaultAuthHost,
		logger:   slog.Default(),
	}
	c.downloadClient = &http.Client{
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: c.checkRedirect,
	}
	return c
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithCredentials sets the Earthdata Login credentials used for downloads.
func (c *Client) WithCredentials(user, password string) *Client {
	c.user = user
	c.password = password
	return c
}

// WithAuthHost overrides the only host that receives credentials.
func (c *Client) WithAuthHost(host string) *Client {
	c.authHost = host
	return c
}

// WithDownloadTimeout bounds a whole download. Zero means no limit.
func (c *Client) WithDownloadTimeout(timeout time.Duration) *Client {
	c.downloadClient.Timeout = timeout
	return c
}

// Search performs a search against the ASF API
func (c *Client) Search(ctx context.Context, params SearchParams) (*ASFGeoJSONResponse, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing ASF search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ASF API request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, fmt.Errorf("ASF API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "ASF API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("ASF API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ASFGeoJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode ASF response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode ASF response: %w", err)
	}

	c.logger.DebugContext(ctx, "ASF search completed",
		slog.Int("feature_count", len(result.Features)),
	)

	return &result, nil
}

// buildSearchURL constructs the full search URL with query parameters
func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = "/services/search/param"
	base.RawQuery = params.ToQueryString()
	return base.String(), nil
}
