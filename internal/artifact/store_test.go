package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	o := analysis.Analyze("Error: Missing comma\n\tLine: 3\n", analysis.Seconds(0.3))

	if err := s.Save("run-1", Artifact{Script: "x := 1", Outcome: o}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, name := range []string{ScriptFile, OutputFile, OutcomeFile} {
		if _, err := os.Stat(filepath.Join(s.RunDir("run-1"), name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(s.RunDir("run-1"), OutputFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != o.Output {
		t.Errorf("output.txt = %q, want raw output", raw)
	}

	a, err := s.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Script != "x := 1" {
		t.Errorf("Script = %q", a.Script)
	}
	if !reflect.DeepEqual(a.Outcome, o) {
		t.Errorf("Outcome mismatch:\n got %+v\nwant %+v", a.Outcome, o)
	}
}

func TestSave_NoScript(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save("run-2", Artifact{Outcome: analysis.Analyze("", nil)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.RunDir("run-2"), ScriptFile)); !os.IsNotExist(err) {
		t.Errorf("expected no script file, got err=%v", err)
	}

	a, err := s.Load("run-2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Script != "" {
		t.Errorf("Script = %q, want empty", a.Script)
	}
	if !a.Outcome.TimedOut || a.Outcome.ExecutionTime != nil {
		t.Errorf("timeout did not round trip: %+v", a.Outcome)
	}
}

func TestSave_RejectsPathIDs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", "../escape", "a/b"} {
		if err := s.Save(id, Artifact{}); err == nil {
			t.Errorf("Save(%q) should fail", id)
		}
	}
}

func TestPathIDsRejectedEverywhere(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", ".", "..", "../escape", "a/b"} {
		if _, err := s.Load(id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) = %v, want invalid id error", id, err)
		}
		if s.Has(id) {
			t.Errorf("Has(%q) should be false", id)
		}
		if err := s.Remove(id); err == nil {
			t.Errorf("Remove(%q) should fail", id)
		}
	}
}

func TestHas(t *testing.T) {
	s := newTestStore(t)
	if s.Has("run1") {
		t.Error("Has should be false before Save")
	}
	if err := s.Save("run1", Artifact{Outcome: analysis.Analyze("ok", analysis.Seconds(1))}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.Has("run1") {
		t.Error("Has should be true after Save")
	}
	if err := os.Remove(filepath.Join(s.RunDir("run1"), OutcomeFile)); err != nil {
		t.Fatal(err)
	}
	if s.Has("run1") {
		t.Error("Has should be false without an outcome file")
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndRemove(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"b", "a"} {
		if err := s.Save(id, Artifact{Outcome: analysis.Analyze("ok", analysis.Seconds(1))}); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	// Incomplete directory without outcome.json is not listed.
	if err := os.MkdirAll(s.RunDir("partial"), 0o755); err != nil {
		t.Fatal(err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("List = %v, want [a b]", ids)
	}

	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Load("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Remove, got %v", err)
	}
}

func TestList_MissingBaseDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestWriteAtomic_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "f.txt")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := WriteAtomic(path, []byte("same")); err != nil {
				t.Errorf("WriteAtomic: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, got %d entries", len(entries))
	}
}

func TestReadJSON_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteAtomic(path, []byte("{")); err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := ReadJSON(path, &v); err == nil {
		t.Error("expected unmarshal error")
	}
}
