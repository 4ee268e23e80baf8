package pipeline

import (
	"fmt"
	"strconv"

	"github.com/robert-malhotra/cohdet/internal/processing"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

// bandDateLayout is how the interferogram operator writes dates into band
// names.
const bandDateLayout = "02Jan2006"

// MaskOperator computes the change mask.
const MaskOperator = "BandMaths"

// Collocation component suffixes.
const (
	SuffixMaster = "_M"
	SuffixSlave  = "_S"
)

// CoherenceBand names the coherence band the interferogram operator writes
// for p, with the collocation suffix appended, e.g.
// "coh_VV_02Jun2023_14Jun2023_M".
func CoherenceBand(pol string, p scene.Pair, suffix string) string {
	return fmt.Sprintf("coh_%s_%s_%s%s", pol, p.Primary.Format(bandDateLayout), p.Secondary.Format(bandDateLayout), suffix)
}

// MaskExpression flags pixels that were coherent in the baseline pair and
// lost at least the configured share of that coherence in the current pair.
// The baseline interferogram is the collocation master.
func MaskExpression(m processing.Masking, baseline, current scene.Pair) string {
	ref := CoherenceBand(m.Polarisation, baseline, SuffixMaster)
	cur := CoherenceBand(m.Polarisation, current, SuffixSlave)
	return fmt.Sprintf("(%s > %s && %s / %s < %s) ? 1 : 0",
		ref, formatFloat(m.CoherenceThreshold), cur, ref, formatFloat(m.DropRatio))
}

// MaskStep is the band maths step producing the change mask.
func MaskStep(m processing.Masking, baseline, current scene.Pair) processing.Step {
	return processing.Step{
		Operator: MaskOperator,
		Parameters: map[string]string{
			"targetBands/targetBand/name":        m.BandName,
			"targetBands/targetBand/type":        "uint8",
			"targetBands/targetBand/expression":  MaskExpression(m, baseline, current),
			"targetBands/targetBand/noDataValue": "255",
		},
	}
}

// Operators lists the operators p runs, once each, in stage order.
func Operators(p *processing.Profile) []string {
	var ops []string
	seen := make(map[string]bool)
	for _, steps := range [][]processing.Step{p.Preprocess, p.Coregister, p.Interferogram, p.Collocate, {{Operator: MaskOperator}}} {
		for _, st := range steps {
			if !seen[st.Operator] {
				seen[st.Operator] = true
				ops = append(ops, st.Operator)
			}
		}
	}
	return ops
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
