package processing

import "errors"

// ErrOperator is returned when a processing operator fails. The error
// message carries the operator's diagnostic output.
var ErrOperator = errors.New("operator failed")
