package environment

import "errors"

var (
	// ErrConfigMissing is returned when the environment file is absent,
	// unreadable, malformed or fails validation.
	ErrConfigMissing = errors.New("environment configuration missing or invalid")

	// ErrStoreLocked is returned when another run holds the environment lock.
	ErrStoreLocked = errors.New("environment store is locked by another run")
)
