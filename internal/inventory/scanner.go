// Package inventory derives pipeline progress from the files present in the
// per-stage artifact directories. A stage is complete for a scene or pair
// exactly when a matching artifact exists; there is no other record.
package inventory

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robert-malhotra/cohdet/internal/environment"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

// Artifact is a completed stage output found on disk.
type Artifact struct {
	Stage   Stage
	Name    string
	Path    string
	Stem    string
	Date    scene.Date      // scene date, or primary date of a pair
	Pair    scene.Pair      // zero for single-scene stages
	Scene   *scene.Identity // set for raw downloads only
	Size    int64
	ModTime time.Time
}

// Scanner reads the stage directories of a Layout. It only reads.
type Scanner struct {
	layout environment.Layout
	logger *slog.Logger
}

// NewScanner creates a scanner over the given directories.
func NewScanner(layout environment.Layout) *Scanner {
	return &Scanner{
		layout: layout,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the scanner.
func (s *Scanner) WithLogger(logger *slog.Logger) *Scanner {
	s.logger = logger
	return s
}

// Layout returns the scanned directories.
func (s *Scanner) Layout() environment.Layout {
	return s.layout
}

// ScenesMissingStage returns the scenes whose input artifact exists but
// whose output for stage does not. Only single-scene stages with a local
// input (preprocess) qualify. The result holds one identity per date,
// sorted by date.
//
// An output exists for a scene when any file in the stage directory starts
// with the scene date and carries the stage extension, so
// 20230602_subset_v2.dim satisfies 20230602 as well.
func (s *Scanner) ScenesMissingStage(stage Stage) ([]scene.Identity, error) {
	input, ok := stage.Input()
	if !ok || stage.IsPair() || input != StageDownload {
		return nil, fmt.Errorf("%w: %s is not a single-scene stage", ErrUnknownStage, stage)
	}

	raws, err := s.RawScenes()
	if err != nil {
		return nil, err
	}
	done, err := s.sceneDates(stage)
	if err != nil {
		return nil, err
	}

	var missing []scene.Identity
	seen := make(map[string]bool)
	for _, id := range raws {
		date := id.Date().String()
		if done[date] {
			continue
		}
		if seen[date] {
			s.logger.Debug("another scene already covers this date",
				slog.String("scene", id.Name),
				slog.String("date", date),
			)
			continue
		}
		seen[date] = true
		missing = append(missing, id)
	}
	return missing, nil
}

// RawScenes returns the identities of the downloaded archives, sorted by
// acquisition start then name. Archives whose names do not follow the
// product naming convention are logged and skipped.
func (s *Scanner) RawScenes() ([]scene.Identity, error) {
	artifacts, err := s.List(StageDownload)
	if err != nil {
		return nil, err
	}
	ids := make([]scene.Identity, 0, len(artifacts))
	for _, a := range artifacts {
		ids = append(ids, *a.Scene)
	}
	return ids, nil
}

// HasRaw reports whether the archive for id has been downloaded.
func (s *Scanner) HasRaw(id scene.Identity) (bool, error) {
	return s.exists(filepath.Join(s.layout.Raw, id.Name+ExtArchive))
}

// RawPath returns where the archive for id is stored.
func (s *Scanner) RawPath(id scene.Identity) string {
	return filepath.Join(s.layout.Raw, id.Name+ExtArchive)
}

// SceneArtifact returns the path of a single-scene stage output for the
// given date. The canonical stem is preferred over other matching names.
func (s *Scanner) SceneArtifact(stage Stage, d scene.Date) (string, bool, error) {
	return s.find(stage, d.String(), SceneStem(stage, d))
}

// PairArtifact returns the path of a pair stage output. Any file starting
// with "<primary>_<secondary>" and carrying the stage extension matches;
// the canonical stem is preferred.
func (s *Scanner) PairArtifact(stage Stage, p scene.Pair) (string, bool, error) {
	if !stage.IsPair() {
		return "", false, fmt.Errorf("%w: %s is not a pair stage", ErrUnknownStage, stage)
	}
	return s.find(stage, p.Key(), PairStem(stage, p))
}

// List returns every completed artifact of a stage, in file name order.
func (s *Scanner) List(stage Stage) ([]Artifact, error) {
	entries, dir, err := s.readDir(stage)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	seen := make(map[string]bool)
	for _, e := range entries {
		a, ok := s.artifact(stage, dir, e)
		if !ok {
			continue
		}
		if a.Scene != nil {
			if seen[a.Scene.Name] {
				continue
			}
			seen[a.Scene.Name] = true
		}
		out = append(out, a)
	}

	if stage == StageDownload {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Scene, out[j].Scene
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			return a.Name < b.Name
		})
	}
	return out, nil
}

func (s *Scanner) artifact(stage Stage, dir string, e os.DirEntry) (Artifact, bool) {
	name := e.Name()
	if !candidate(e, stage.Extension()) {
		return Artifact{}, false
	}
	a := Artifact{
		Stage: stage,
		Name:  name,
		Path:  filepath.Join(dir, name),
		Stem:  strings.TrimSuffix(name, filepath.Ext(name)),
	}

	switch {
	case stage == StageDownload:
		id, err := scene.Parse(name)
		if err != nil {
			s.logger.Warn("skipping archive with unrecognised name",
				slog.String("file", a.Path),
				slog.String("error", err.Error()),
			)
			return Artifact{}, false
		}
		a.Scene = &id
		a.Date = id.Date()
	case stage.IsPair():
		p, ok := pairPrefix(name)
		if !ok {
			return Artifact{}, false
		}
		a.Pair = p
		a.Date = p.Primary
	default:
		d, ok := datePrefix(name)
		if !ok {
			return Artifact{}, false
		}
		a.Date = d
	}

	if info, err := e.Info(); err == nil {
		a.Size = info.Size()
		a.ModTime = info.ModTime()
	}
	return a, true
}

func (s *Scanner) sceneDates(stage Stage) (map[string]bool, error) {
	entries, _, err := s.readDir(stage)
	if err != nil {
		return nil, err
	}
	dates := make(map[string]bool)
	for _, e := range entries {
		if !candidate(e, stage.Extension()) {
			continue
		}
		if d, ok := datePrefix(e.Name()); ok {
			dates[d.String()] = true
		}
	}
	return dates, nil
}

func (s *Scanner) find(stage Stage, prefix, stem string) (string, bool, error) {
	entries, dir, err := s.readDir(stage)
	if err != nil {
		return "", false, err
	}
	var first string
	for _, e := range entries {
		name := e.Name()
		if !candidate(e, stage.Extension()) || !strings.HasPrefix(name, prefix) {
			continue
		}
		if name == stem+stage.Extension() {
			return filepath.Join(dir, name), true, nil
		}
		if first == "" {
			first = name
		}
	}
	if first == "" {
		return "", false, nil
	}
	return filepath.Join(dir, first), true, nil
}

func (s *Scanner) readDir(stage Stage) ([]os.DirEntry, string, error) {
	dir := stage.Dir(s.layout)
	if dir == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dir, fmt.Errorf("%w: %s directory %s: %v", ErrInventoryScan, stage, dir, err)
	}
	return entries, dir, nil
}

func (s *Scanner) exists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case os.IsNotExist(err):
		if _, derr := os.Stat(filepath.Dir(path)); derr != nil {
			return false, fmt.Errorf("%w: %v", ErrInventoryScan, derr)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInventoryScan, err)
	}
}

// candidate filters out directories, hidden files (temporary writes) and
// foreign extensions.
func candidate(e os.DirEntry, ext string) bool {
	name := e.Name()
	if e.IsDir() || strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

func datePrefix(name string) (scene.Date, bool) {
	if len(name) < len(scene.DateLayout) {
		return scene.Date{}, false
	}
	d, err := scene.ParseDate(name[:len(scene.DateLayout)])
	if err != nil {
		return scene.Date{}, false
	}
	return d, true
}

func pairPrefix(name string) (scene.Pair, bool) {
	n := len(scene.DateLayout)
	if len(name) < 2*n+1 || name[n] != '_' {
		return scene.Pair{}, false
	}
	p, err := scene.ParsePair(name[:n] + ":" + name[n+1:2*n+1])
	if err != nil {
		return scene.Pair{}, false
	}
	return p, true
}
