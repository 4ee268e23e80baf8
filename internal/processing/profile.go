package processing

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile holds the fixed parameter sets of every processing stage.
// Dynamic parameters (the subset region, the mask band names) are added by
// the caller when an operation is built.
type Profile struct {
	Preprocess    []Step  `yaml:"preprocess" validate:"required,min=1,dive"`
	Coregister    []Step  `yaml:"coregister" validate:"required,min=1,dive"`
	Interferogram []Step  `yaml:"interferogram" validate:"required,min=1,dive"`
	Collocate     []Step  `yaml:"collocate" validate:"required,min=1,dive"`
	Mask          Masking `yaml:"mask"`
}

// Masking configures the coherence-change test.
type Masking struct {
	// Pixels whose reference coherence is at or below this are not tested.
	CoherenceThreshold float64 `yaml:"coherenceThreshold" validate:"gt=0,lte=1"`
	// A pixel is flagged when current/reference coherence falls below this.
	DropRatio float64 `yaml:"dropRatio" validate:"gt=0,lte=1"`
	// Polarisation of the coherence bands compared.
	Polarisation string `yaml:"polarisation" validate:"oneof=VV VH HH HV"`
	// Name of the output band.
	BandName string `yaml:"bandName" validate:"required"`
}

var profileValidate = validator.New()

// DefaultProfile returns the documented parameter sets.
func DefaultProfile() *Profile {
	return &Profile{
		Preprocess: []Step{
			{Operator: "Apply-Orbit-File", Parameters: map[string]string{
				"orbitType":      "Sentinel Precise (Auto Download)",
				"polyDegree":     "3",
				"continueOnFail": "false",
			}},
			{Operator: "Subset", Parameters: map[string]string{
				"copyMetadata": "true",
			}},
		},
		Coregister: []Step{
			{Operator: "CreateStack", Parameters: map[string]string{
				"extent":              "Master",
				"initialOffsetMethod": "Orbit",
				"resamplingType":      "NONE",
			}},
			{Operator: "Cross-Correlation", Parameters: map[string]string{
				"numGCPtoGenerate":               "2000",
				"coarseRegistrationWindowWidth":  "128",
				"coarseRegistrationWindowHeight": "128",
				"maxIteration":                   "10",
				"gcpTolerance":                   "0.5",
			}},
			{Operator: "Warp", Parameters: map[string]string{
				"warpPolynomialOrder": "1",
				"interpolationMethod": "Bilinear interpolation",
			}},
		},
		Interferogram: []Step{
			{Operator: "Interferogram", Parameters: map[string]string{
				"subtractFlatEarthPhase": "true",
				"srpPolynomialDegree":    "5",
				"srpNumberPoints":        "501",
				"orbitDegree":            "3",
				"includeCoherence":       "true",
				"cohWinAz":               "10",
				"cohWinRg":               "10",
			}},
		},
		Collocate: []Step{
			{Operator: "Collocate", Parameters: map[string]string{
				"resamplingType":         "NEAREST_NEIGHBOUR",
				"renameMasterComponents": "true",
				"renameSlaveComponents":  "true",
				"masterComponentPattern": "${ORIGINAL_NAME}_M",
				"slaveComponentPattern":  "${ORIGINAL_NAME}_S",
			}},
		},
		Mask: Masking{
			CoherenceThreshold: 0.7,
			DropRatio:          0.5,
			Polarisation:       "VV",
			BandName:           "coherence_change",
		},
	}
}

// LoadProfile reads a YAML profile from path on top of the defaults. A
// stage present in the file replaces that stage's steps entirely.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter profile: %w", err)
	}
	defer f.Close()

	p, err := DecodeProfile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodeProfile decodes a YAML profile on top of the defaults.
func DecodeProfile(r io.Reader) (*Profile, error) {
	p := DefaultProfile()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid parameter profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every stage has steps and the mask settings are in
// range.
func (p *Profile) Validate() error {
	if err := profileValidate.Struct(p); err != nil {
		return fmt.Errorf("invalid parameter profile: %w", err)
	}
	return nil
}

// Encode writes the profile as YAML.
func (p *Profile) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Clone returns a deep copy, so callers may add parameters to the steps.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Preprocess = cloneSteps(p.Preprocess)
	c.Coregister = cloneSteps(p.Coregister)
	c.Interferogram = cloneSteps(p.Interferogram)
	c.Collocate = cloneSteps(p.Collocate)
	return &c
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		params := make(map[string]string, len(s.Parameters))
		for k, v := range s.Parameters {
			params[k] = v
		}
		out[i] = Step{Operator: s.Operator, Parameters: params}
	}
	return out
}
