package inventory

import "errors"

var (
	// ErrInventoryScan is returned when a stage directory is missing or
	// cannot be read. Completeness cannot be decided without it.
	ErrInventoryScan = errors.New("inventory scan failed")

	// ErrUnknownStage is returned for stage names outside the stage graph.
	ErrUnknownStage = errors.New("unknown stage")
)
