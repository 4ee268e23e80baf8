// Package environment persists the pipeline's configuration and progress
// state (directory layout, catalog credentials, area of interest, observation
// window and the latest ingested scene date) as a key=value file.
package environment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/robert-malhotra/cohdet/internal/scene"
	"github.com/robert-malhotra/cohdet/pkg/geojson"
)

// Record keys as they appear in the environment file.
const (
	KeyBaseDir           = "base_dir"
	KeyDataDir           = "data_dir"
	KeyPreprocessedDir   = "preprocessed_dir"
	KeyCoregisteredDir   = "coregistered_dir"
	KeyInterferogramsDir = "interferograms_dir"
	KeyCollocatedDir     = "collocated_dir"
	KeyResultsDir        = "results_dir"
	KeyStart             = "start"
	KeyLatest            = "latest"
	KeyUser              = "user"
	KeyPassword          = "password"
	KeyServiceURL        = "service_url"
	KeyFootprint         = "footprint"
	KeySensorMode        = "sensor_mode"
)

// Record is the typed form of the environment file.
type Record struct {
	BaseDir           string `validate:"required"`
	DataDir           string `validate:"required"`
	PreprocessedDir   string `validate:"required"`
	CoregisteredDir   string `validate:"required"`
	InterferogramsDir string `validate:"required"`
	CollocatedDir     string `validate:"required"`
	ResultsDir        string `validate:"required"`

	// Start is the lower bound of the catalog observation window.
	Start scene.Date
	// Latest is the acquisition date of the most recently ingested scene.
	// Zero until the first download.
	Latest scene.Date

	User       string `validate:"required"`
	Password   string `validate:"required"`
	ServiceURL string `validate:"required,url"`
	Footprint  string `validate:"required,footprint"`
	SensorMode string `validate:"required,oneof=SM IW EW WV"`

	// Extra holds keys this version does not know about. They are written
	// back unchanged.
	Extra map[string]string `validate:"-"`
}

type field struct {
	key string
	get func(*Record) string
	set func(*Record, string) error
}

func stringField(key string, ptr func(*Record) *string) field {
	return field{
		key: key,
		get: func(r *Record) string { return *ptr(r) },
		set: func(r *Record, v string) error { *ptr(r) = v; return nil },
	}
}

func dateField(key string, ptr func(*Record) *scene.Date) field {
	return field{
		key: key,
		get: func(r *Record) string { return ptr(r).String() },
		set: func(r *Record, v string) error { return ptr(r).UnmarshalText([]byte(v)) },
	}
}

// fields lists the known keys in file order.
var fields = []field{
	stringField(KeyBaseDir, func(r *Record) *string { return &r.BaseDir }),
	stringField(KeyDataDir, func(r *Record) *string { return &r.DataDir }),
	stringField(KeyPreprocessedDir, func(r *Record) *string { return &r.PreprocessedDir }),
	stringField(KeyCoregisteredDir, func(r *Record) *string { return &r.CoregisteredDir }),
	stringField(KeyInterferogramsDir, func(r *Record) *string { return &r.InterferogramsDir }),
	stringField(KeyCollocatedDir, func(r *Record) *string { return &r.CollocatedDir }),
	stringField(KeyResultsDir, func(r *Record) *string { return &r.ResultsDir }),
	dateField(KeyStart, func(r *Record) *scene.Date { return &r.Start }),
	dateField(KeyLatest, func(r *Record) *scene.Date { return &r.Latest }),
	stringField(KeyUser, func(r *Record) *string { return &r.User }),
	stringField(KeyPassword, func(r *Record) *string { return &r.Password }),
	stringField(KeyServiceURL, func(r *Record) *string { return &r.ServiceURL }),
	stringField(KeyFootprint, func(r *Record) *string { return &r.Footprint }),
	stringField(KeySensorMode, func(r *Record) *string { return &r.SensorMode }),
}

var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()
	_ = recordValidate.RegisterValidation("footprint", func(fl validator.FieldLevel) bool {
		_, err := geojson.ParseFootprint(fl.Field().String())
		return err == nil
	})
}

// Parse reads key=value lines. Each non-blank line is split on its first
// '='; a line without '=' or with an empty key is an error. Later
// occurrences of a key override earlier ones.
func Parse(r io.Reader) (*Record, error) {
	rec := &Record{Extra: make(map[string]string)}
	byKey := make(map[string]field, len(fields))
	for _, f := range fields {
		byKey[f.key] = f
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d is not a key=value pair", ErrConfigMissing, lineNo)
		}
		value = strings.TrimSpace(value)

		f, known := byKey[key]
		if !known {
			rec.Extra[key] = value
			continue
		}
		if err := f.set(rec, value); err != nil {
			return nil, fmt.Errorf("%w: line %d (%s): %v", ErrConfigMissing, lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMissing, err)
	}

	return rec, nil
}

// Validate checks required keys and value formats.
func (r *Record) Validate() error {
	if err := recordValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigMissing, err)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: %s is required", ErrConfigMissing, KeyStart)
	}
	if !r.Latest.IsZero() && r.Latest.Before(r.Start) {
		return fmt.Errorf("%w: %s (%s) is before %s (%s)", ErrConfigMissing, KeyLatest, r.Latest, KeyStart, r.Start)
	}
	return nil
}

// WriteTo writes the record as key=value lines: known keys in fixed order,
// then unknown keys sorted.
func (r *Record) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s=%s\n", f.key, f.get(r))
	}
	extra := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(&b, "%s=%s\n", k, r.Extra[k])
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Values returns all keys and values. The password is masked when redact is
// set.
func (r *Record) Values(redact bool) map[string]string {
	out := make(map[string]string, len(fields)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for _, f := range fields {
		out[f.key] = f.get(r)
	}
	if redact && out[KeyPassword] != "" {
		out[KeyPassword] = "********"
	}
	return out
}

// AdvanceLatest moves the latest marker forward to d. Dates that are not
// strictly newer are ignored. Reports whether the marker changed.
func (r *Record) AdvanceLatest(d scene.Date) bool {
	if d.IsZero() || !d.After(r.Latest) {
		return false
	}
	r.Latest = d
	return true
}

// ResetLatest clears the latest marker so the next update re-diffs the whole
// observation window.
func (r *Record) ResetLatest() {
	r.Latest = scene.Date{}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Extra = make(map[string]string, len(r.Extra))
	for k, v := range r.Extra {
		c.Extra[k] = v
	}
	return &c
}

// FootprintGeometry parses the footprint.
func (r *Record) FootprintGeometry() (*geojson.Footprint, error) {
	return geojson.ParseFootprint(r.Footprint)
}

// Layout resolves the stage directories. Relative directories are taken
// relative to BaseDir.
func (r *Record) Layout() Layout {
	base := filepath.Clean(r.BaseDir)
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}
	return Layout{
		Base:           base,
		Raw:            resolve(r.DataDir),
		Preprocessed:   resolve(r.PreprocessedDir),
		Coregistered:   resolve(r.CoregisteredDir),
		Interferograms: resolve(r.InterferogramsDir),
		Collocated:     resolve(r.CollocatedDir),
		Results:        resolve(r.ResultsDir),
	}
}

// Layout holds the resolved directory of each pipeline stage.
type Layout struct {
	Base           string
	Raw            string
	Preprocessed   string
	Coregistered   string
	Interferograms string
	Collocated     string
	Results        string
}

// Dirs returns every stage directory.
func (l Layout) Dirs() []string {
	return []string{l.Raw, l.Preprocessed, l.Coregistered, l.Interferograms, l.Collocated, l.Results}
}

// Ensure creates any missing stage directory.
func (l Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
