// Package checkpoint persists pipeline progress between stages so an
// interrupted run can resume without re-invoking completed stages. A
// checkpoint is keyed on the exact question text; any mismatch means the
// checkpoint belongs to a different run and is ignored.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Version is the only checkpoint file version this build reads or writes.
const Version = 1

// Stage markers for CompletedStage.
const (
	StageStage1   = "stage1"
	StageStage2   = "stage2"
	StageComplete = "complete"
)

// Data is the on-disk checkpoint document.
type Data struct {
	Version        int                       `json:"version"`
	Timestamp      time.Time                 `json:"timestamp"`
	Question       string                    `json:"question"`
	CompletedStage string                    `json:"completed_stage"`
	Stage1         []models.Stage1Result     `json:"stage1,omitempty"`
	Stage2         []models.Stage2Result     `json:"stage2,omitempty"`
	LabelToAgent   map[string]string         `json:"label_to_agent,omitempty"`
	Aggregate      []models.AggregateRanking `json:"aggregate,omitempty"`
}

// Store reads and writes checkpoints under one directory. No file locking
// is performed; concurrent runs sharing a directory and name can race.
type Store struct {
	dir  string
	name string
}

// NewStore creates a store for <dir>/<name>.json. The directory is created
// on first save, not here.
func NewStore(dir, name string) *Store {
	return &Store{dir: dir, name: name}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.name+".json")
}

// Save writes the checkpoint, stamping version and timestamp, overwriting
// any previous file.
func (s *Store) Save(data Data) error {
	data.Version = Version
	data.Timestamp = time.Now().UTC()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(s.Path(), raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	log.Printf("[checkpoint] saved %s (stage %s)", s.Path(), data.CompletedStage)
	return nil
}

// Load returns the stored checkpoint if it matches the current question,
// or nil when there is nothing usable to resume from. A missing file is
// silent; a corrupt, wrong-version, or wrong-question file is logged and
// ignored. Load never fails the run.
func (s *Store) Load(question string) *Data {
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[checkpoint] warning: cannot read %s: %v", s.Path(), err)
		}
		return nil
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[checkpoint] warning: %s is corrupt, ignoring: %v", s.Path(), err)
		return nil
	}
	if data.Version != Version {
		log.Printf("[checkpoint] warning: %s has unsupported version %d, ignoring", s.Path(), data.Version)
		return nil
	}
	if data.Question != question {
		log.Printf("[checkpoint] warning: %s was saved for a different question, ignoring", s.Path())
		return nil
	}

	return &data
}

// Clear removes the checkpoint file. Removing an absent file is not an
// error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
