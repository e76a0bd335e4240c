// Package artifact keeps the files produced by each recorded run on disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
)

// ErrNotFound is returned when a run has no artifacts.
var ErrNotFound = errors.New("artifact not found")

// File names inside a run directory.
const (
	ScriptFile  = "script.ahk"
	OutputFile  = "output.txt"
	OutcomeFile = "outcome.json"
)

// Artifact is everything kept for one run.
type Artifact struct {
	// Script is the executed source. Empty for analyze-only runs.
	Script  string
	Outcome analysis.Outcome
}

// Store manages run artifacts under a root directory, one directory per run.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// RunDir returns the directory for a run id.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// Save writes the artifact for id. The outcome JSON is written last so its
// presence marks a complete run directory.
func (s *Store) Save(id string, a Artifact) error {
	if err := checkID(id); err != nil {
		return err
	}
	dir := s.RunDir(id)
	if a.Script != "" {
		if err := WriteAtomic(filepath.Join(dir, ScriptFile), []byte(a.Script)); err != nil {
			return err
		}
	}
	if err := WriteAtomic(filepath.Join(dir, OutputFile), []byte(a.Outcome.Output)); err != nil {
		return err
	}
	return WriteJSON(filepath.Join(dir, OutcomeFile), a.Outcome)
}

// Load reads the artifact for id. It returns ErrNotFound when the run has no
// outcome file.
func (s *Store) Load(id string) (*Artifact, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	dir := s.RunDir(id)
	var a Artifact
	if err := ReadJSON(filepath.Join(dir, OutcomeFile), &a.Outcome); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	script, err := os.ReadFile(filepath.Join(dir, ScriptFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read script: %w", err)
	}
	a.Script = string(script)
	return &a, nil
}

// Has reports whether id has a complete run directory.
func (s *Store) Has(id string) bool {
	if checkID(id) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.RunDir(id), OutcomeFile))
	return err == nil
}

// List returns the ids of all complete runs in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.baseDir, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if s.Has(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Remove deletes every artifact for id.
func (s *Store) Remove(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return os.RemoveAll(s.RunDir(id))
}

// checkID rejects ids that would escape the base directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return fmt.Errorf("invalid run id %q", id)
	}
	return nil
}
