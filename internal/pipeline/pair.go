package pipeline

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/cohdet/internal/scene"
)

// PairSpec names a pair to process and, optionally, the previously
// processed pair its coherence is compared against.
type PairSpec struct {
	Pair     scene.Pair
	Baseline *scene.Pair
}

// ParsePairSpec parses "P:S" or "P:S@BP:BS".
func ParsePairSpec(s string) (PairSpec, error) {
	pairText, baselineText, hasBaseline := strings.Cut(strings.TrimSpace(s), "@")

	p, err := scene.ParsePair(pairText)
	if err != nil {
		return PairSpec{}, err
	}
	spec := PairSpec{Pair: p}
	if !hasBaseline {
		return spec, nil
	}

	b, err := scene.ParsePair(baselineText)
	if err != nil {
		return PairSpec{}, fmt.Errorf("baseline of %s: %w", p, err)
	}
	if b == p {
		return PairSpec{}, fmt.Errorf("%w: pair %s cannot be its own baseline", scene.ErrInvalidDate, p)
	}
	spec.Baseline = &b
	return spec, nil
}

func (ps PairSpec) String() string {
	if ps.Baseline == nil {
		return ps.Pair.String()
	}
	return ps.Pair.String() + "@" + ps.Baseline.String()
}
