// Package cmr provides a client for NASA's Common Metadata Repository (CMR) API.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the default CMR API base URL.
	DefaultBaseURL = "https://cmr.earthdata.nasa.gov/search"

	// DefaultProvider is the default CMR provider for ASF data.
	DefaultProvider = "ASF"

	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 250

	// MaxPageSize is the maximum page size supported by CMR.
	MaxPageSize = 2000

	// CMRSearchAfterHeader is the header used for cursor-based pagination.
	CMRSearchAfterHeader = "CMR-Search-After"

	// maxPages bounds SearchAll so a misbehaving cursor cannot loop forever.
	maxPages = 100
)

// Client handles communication with the CMR API.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new CMR API client.
func NewClient(baseURL, provider string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if provider == "" {
		provider = DefaultProvider
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// SearchResult contains the results of a CMR search.
type SearchResult struct {
	Granules    []UMMGranule
	Hits        int
	SearchAfter string // Cursor for next page
}

// Search performs a granule search against CMR and returns one page.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	searchURL := c.baseURL + "/granules.umm_json"

	queryParams := params.ToURLValues()
	queryParams.Set("provider", c.provider)

	c.logger.DebugContext(ctx, "executing CMR search",
		slog.String("url", searchURL),
		slog.String("params", queryParams.Encode()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+queryParams.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
	req.Header.Set("User-Agent", "cohdet/1.0")
	if params.SearchAfter != "" {
		req.Header.Set(CMRSearchAfterHeader, params.SearchAfter)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "CMR API request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("CMR API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "CMR API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("CMR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var cmrResp UMMSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmrResp); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode CMR response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode CMR response: %w", err)
	}

	granules := make([]UMMGranule, 0, len(cmrResp.Items))
	for _, item := range cmrResp.Items {
		granules = append(granules, item.UMM)
	}

	searchAfter := resp.Header.Get(CMRSearchAfterHeader)

	c.logger.DebugContext(ctx, "CMR search completed",
		slog.Int("hits", cmrResp.Hits),
		slog.Int("returned", len(granules)),
		slog.Bool("has_next", searchAfter != ""),
	)

	return &SearchResult{
		Granules:    granules,
		Hits:        cmrResp.Hits,
		SearchAfter: searchAfter,
	}, nil
}

// SearchAll follows the CMR-Search-After cursor until every hit has been
// returned.
func (c *Client) SearchAll(ctx context.Context, params *SearchParams) ([]UMMGranule, error) {
	p := *params
	var all []UMMGranule
	for page := 0; page < maxPages; page++ {
		result, err := c.Search(ctx, &p)
		if err != nil {
			return nil, err
		}
		all = append(all, result.Granules...)
		if result.SearchAfter == "" || len(result.Granules) == 0 || len(all) >= result.Hits {
			return all, nil
		}
		p.SearchAfter = result.SearchAfter
	}
	return nil, fmt.Errorf("CMR search did not finish after %d pages", maxPages)
}

// SearchParams represents parameters for CMR granule searches.
type SearchParams struct {
	// Collection short names (e.g. "SENTINEL-1A_SLC")
	ShortName []string

	// Spatial filter, lon1,lat1,lon2,lat2,... counter-clockwise and closed
	Polygon string

	// Temporal filter, start,end in ISO 8601 format; either side may be empty
	Temporal string

	// SAR-specific (via additional attributes)
	BeamMode        []string
	ProcessingLevel []string

	// AttributeOr matches granules satisfying any attribute filter instead
	// of all of them.
	AttributeOr bool

	// Pagination
	PageSize    int
	SearchAfter string // CMR-Search-After cursor

	// Sorting
	SortKey string // CMR sort key (e.g., "start_date")
}

// ToURLValues converts SearchParams to URL query parameters.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, sn := range p.ShortName {
		values.Add("short_name", sn)
	}
	if p.Polygon != "" {
		values.Set("polygon", p.Polygon)
	}
	if p.Temporal != "" {
		values.Set("temporal", p.Temporal)
	}

	// CMR uses attribute[] parameter for additional attributes
	for _, bm := range p.BeamMode {
		values.Add("attribute[]", fmt.Sprintf("string,BEAM_MODE,%s", bm))
	}
	for _, pl := range p.ProcessingLevel {
		values.Add("attribute[]", fmt.Sprintf("string,PROCESSING_TYPE,%s", pl))
	}
	if p.AttributeOr {
		values.Set("options[attribute][or]", "true")
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	values.Set("page_size", fmt.Sprintf("%d", pageSize))

	if p.SortKey != "" {
		values.Set("sort_key", p.SortKey)
	} else {
		values.Set("sort_key", "start_date")
	}

	return values
}
