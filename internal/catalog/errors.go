package catalog

import "errors"

var (
	// ErrCatalogUnavailable is returned when the catalog cannot be queried:
	// transport failure, rejected credentials or an undecodable response.
	// It is never reported as an empty result.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrDownloadFailed is returned when a scene archive could not be
	// retrieved and stored.
	ErrDownloadFailed = errors.New("download failed")
)
