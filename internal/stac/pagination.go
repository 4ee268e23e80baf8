package stac

import (
	"net/url"
	"strconv"
)

// PaginationInfo holds information needed to generate pagination links
// for an offset-paged item listing.
type PaginationInfo struct {
	BaseURL       string
	Offset        int
	Limit         int
	Matched       int
	ReturnedCount int
	QueryParams   url.Values // Original query parameters
}

// BuildPaginationLinks generates the self, next and prev links of a page.
// next is present while items remain past this page; prev whenever the
// page does not start at the first item.
func BuildPaginationLinks(info PaginationInfo) []*Link {
	links := make([]*Link, 0, 3)

	links = append(links, &Link{
		Rel:  "self",
		Href: buildPageURL(info.BaseURL, info.QueryParams, info.Offset, info.Limit),
		Type: MediaGeoJSON,
	})

	if info.Offset+info.ReturnedCount < info.Matched {
		links = append(links, &Link{
			Rel:  "next",
			Href: buildPageURL(info.BaseURL, info.QueryParams, info.Offset+info.ReturnedCount, info.Limit),
			Type: MediaGeoJSON,
		})
	}

	if info.Offset > 0 {
		links = append(links, &Link{
			Rel:  "prev",
			Href: buildPageURL(info.BaseURL, info.QueryParams, max(info.Offset-info.Limit, 0), info.Limit),
			Type: MediaGeoJSON,
		})
	}

	return links
}

// buildPageURL constructs a URL for the page starting at offset, keeping
// every other query parameter.
func buildPageURL(baseURL string, params url.Values, offset, limit int) string {
	// Clone the params to avoid modifying the original
	newParams := url.Values{}
	for key, values := range params {
		for _, value := range values {
			newParams.Add(key, value)
		}
	}

	newParams.Set("limit", strconv.Itoa(limit))
	newParams.Set("offset", strconv.Itoa(offset))

	return baseURL + "?" + newParams.Encode()
}
