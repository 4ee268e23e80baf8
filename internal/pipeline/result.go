package pipeline

import (
	"fmt"

	"github.com/robert-malhotra/cohdet/internal/inventory"
)

// Outcome is what the sequencer decided for one stage and subject.
type Outcome string

const (
	OutcomeRan     Outcome = "ran"
	OutcomeSkipped Outcome = "skipped"
	OutcomeBlocked Outcome = "blocked"
)

// StageResult reports one stage decision. Subject is a scene name, a date
// or a pair key depending on the stage.
type StageResult struct {
	Stage    inventory.Stage `json:"stage"`
	Subject  string          `json:"subject"`
	Outcome  Outcome         `json:"outcome"`
	Artifact string          `json:"artifact,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// StageError is returned when a stage fails. The run stops at the first
// StageError.
type StageError struct {
	Stage   inventory.Stage
	Subject string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed for %s: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
