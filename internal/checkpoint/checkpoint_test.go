package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conclave-ai/conclave/pkg/models"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), "run")

	saved := Data{
		Question:       "what now",
		CompletedStage: StageStage1,
		Stage1: []models.Stage1Result{
			{Agent: "claude", Response: "resp", Summary: "sum"},
		},
		LabelToAgent: map[string]string{"Response A": "claude"},
	}
	if err := s.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := s.Load("what now")
	if loaded == nil {
		t.Fatal("Load returned nil for a matching checkpoint")
	}
	if loaded.Version != Version {
		t.Errorf("version = %d, want %d", loaded.Version, Version)
	}
	if loaded.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
	if loaded.CompletedStage != StageStage1 {
		t.Errorf("completed stage = %s", loaded.CompletedStage)
	}
	if len(loaded.Stage1) != 1 || loaded.Stage1[0].Agent != "claude" {
		t.Errorf("stage1 = %+v", loaded.Stage1)
	}
	if loaded.LabelToAgent["Response A"] != "claude" {
		t.Errorf("labelToAgent = %v", loaded.LabelToAgent)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")
	s := NewStore(dir, "run")

	if err := s.Save(Data{Question: "q", CompletedStage: StageStage1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("checkpoint file missing: %v", err)
	}
}

func TestLoadMissingFileIsNil(t *testing.T) {
	s := NewStore(t.TempDir(), "never-saved")
	if got := s.Load("q"); got != nil {
		t.Errorf("Load = %+v, want nil", got)
	}
}

func TestLoadQuestionMismatchIsNil(t *testing.T) {
	s := NewStore(t.TempDir(), "run")
	if err := s.Save(Data{Question: "original question", CompletedStage: StageStage1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := s.Load("different question"); got != nil {
		t.Errorf("Load = %+v, want nil on question mismatch", got)
	}
}

func TestLoadUnsupportedVersionIsNil(t *testing.T) {
	s := NewStore(t.TempDir(), "run")
	raw := `{"version": 99, "question": "q", "completed_stage": "stage1"}`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load("q"); got != nil {
		t.Errorf("Load = %+v, want nil on version mismatch", got)
	}
}

func TestLoadCorruptFileIsNil(t *testing.T) {
	s := NewStore(t.TempDir(), "run")
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load("q"); got != nil {
		t.Errorf("Load = %+v, want nil on corrupt file", got)
	}
}

func TestSaveOverwritesPriorCheckpoint(t *testing.T) {
	s := NewStore(t.TempDir(), "run")

	if err := s.Save(Data{Question: "q", CompletedStage: StageStage1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Data{Question: "q", CompletedStage: StageStage2}); err != nil {
		t.Fatal(err)
	}

	loaded := s.Load("q")
	if loaded == nil || loaded.CompletedStage != StageStage2 {
		t.Fatalf("loaded = %+v, want stage2", loaded)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := NewStore(t.TempDir(), "run")

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear on absent file failed: %v", err)
	}

	if err := s.Save(Data{Question: "q", CompletedStage: StageStage1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if got := s.Load("q"); got != nil {
		t.Errorf("Load after Clear = %+v, want nil", got)
	}
}
