package inventory

import (
	"fmt"

	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

// Stage is one step of the pipeline's stage graph.
type Stage string

const (
	StageDownload      Stage = "download"
	StagePreprocess    Stage = "preprocess"
	StageCoregister    Stage = "coregister"
	StageInterferogram Stage = "interferogram"
	StageCollocate     Stage = "collocate"
	StageMask          Stage = "mask"
)

// File extensions of stage artifacts.
const (
	ExtArchive = ".zip"
	ExtProduct = ".dim"
)

// Stages returns the stage graph in execution order.
func Stages() []Stage {
	return []Stage{StageDownload, StagePreprocess, StageCoregister, StageInterferogram, StageCollocate, StageMask}
}

// ParseStage converts a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// IsPair reports whether the stage operates on a scene pair.
func (s Stage) IsPair() bool {
	switch s {
	case StageCoregister, StageInterferogram, StageCollocate, StageMask:
		return true
	default:
		return false
	}
}

// Input returns the stage whose artifacts this stage consumes. Download has
// no local input.
func (s Stage) Input() (Stage, bool) {
	switch s {
	case StagePreprocess:
		return StageDownload, true
	case StageCoregister:
		return StagePreprocess, true
	case StageInterferogram:
		return StageCoregister, true
	case StageCollocate:
		return StageInterferogram, true
	case StageMask:
		return StageCollocate, true
	default:
		return "", false
	}
}

// Suffix is the stem suffix of the stage's artifacts.
func (s Stage) Suffix() string {
	switch s {
	case StagePreprocess:
		return "subset"
	case StageCoregister:
		return "coreg"
	case StageInterferogram:
		return "ifg"
	case StageCollocate:
		return "colloc"
	case StageMask:
		return "mask"
	default:
		return ""
	}
}

// Extension is the file extension of the stage's artifacts.
func (s Stage) Extension() string {
	if s == StageDownload {
		return ExtArchive
	}
	return ExtProduct
}

// Dir returns the directory holding the stage's artifacts.
func (s Stage) Dir(l environment.Layout) string {
	switch s {
	case StageDownload:
		return l.Raw
	case StagePreprocess:
		return l.Preprocessed
	case StageCoregister:
		return l.Coregistered
	case StageInterferogram:
		return l.Interferograms
	case StageCollocate:
		return l.Collocated
	case StageMask:
		return l.Results
	default:
		return ""
	}
}

// SceneStem returns the artifact stem of a single-scene stage, e.g.
// "20230602_subset".
func SceneStem(s Stage, d scene.Date) string {
	return d.String() + "_" + s.Suffix()
}

// PairStem returns the artifact stem of a pair stage, e.g.
// "20230602_20230614_coreg".
func PairStem(s Stage, p scene.Pair) string {
	return p.Key() + "_" + s.Suffix()
}
