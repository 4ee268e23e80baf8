package environment

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store loads and saves a Record at a fixed path. It never changes the
// process working directory.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the store.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads, parses and validates the record.
func (s *Store) Load() (*Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMissing, err)
	}
	defer f.Close()

	rec, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	s.logger.Debug("environment loaded",
		slog.String("path", s.path),
		slog.String("latest", rec.Latest.String()),
	)
	return rec, nil
}

// Save validates rec and replaces the backing file. The new content is
// written to a temporary file in the same directory and renamed over the
// old one, so readers see either the old or the new record.
func (s *Store) Save(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}

	var buf bytes.Buffer
	if _, err := rec.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to render environment: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp environment file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write environment: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync environment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close environment: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace environment: %w", err)
	}
	committed = true

	s.logger.Debug("environment saved",
		slog.String("path", s.path),
		slog.String("latest", rec.Latest.String()),
	)
	return nil
}
