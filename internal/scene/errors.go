package scene

import "errors"

var (
	// ErrMalformedIdentifier is returned when a product name does not follow
	// the Sentinel-1 naming convention.
	ErrMalformedIdentifier = errors.New("malformed scene identifier")

	// ErrInvalidDate is returned when a date token is not in YYYYMMDD form.
	ErrInvalidDate = errors.New("invalid scene date")
)
