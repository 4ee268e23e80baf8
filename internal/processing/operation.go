// Package processing runs SAR processing operators. It is an invocation
// boundary only: callers decide what to run and this package runs it,
// producing a BEAM-DIMAP product or an error.
package processing

import (
	"context"
	"path/filepath"
)

// Product file conventions of the BEAM-DIMAP format.
const (
	ProductExt = ".dim"
	DataExt    = ".data"
	FormatName = "BEAM-DIMAP"
)

// Step is one operator invocation with its named parameters. Parameter keys
// containing '/' describe nested elements, for example
// "targetBands/targetBand/expression".
type Step struct {
	Operator   string            `yaml:"operator" json:"operator" validate:"required"`
	Parameters map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Operation is a chain of steps applied to input products, written as
// <OutputDir>/<Stem>.dim. The first step receives every input; each later
// step receives the output of the one before.
type Operation struct {
	Name      string
	Steps     []Step
	Inputs    []string
	OutputDir string
	Stem      string
}

// Target returns the final product path.
func (op Operation) Target() string {
	return filepath.Join(op.OutputDir, op.Stem+ProductExt)
}

// Processor runs operations. Run blocks until the product is in place and
// returns its path. On failure nothing is left under the target name.
type Processor interface {
	Run(ctx context.Context, op Operation) (string, error)
}
