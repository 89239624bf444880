package history

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Run represents one recorded pipeline run.
type Run struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Mode          string     `json:"mode"`
	Chairman      string     `json:"chairman"`
	FinalAgent    string     `json:"final_agent"`
	FinalResponse string     `json:"final_response"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// StageResponse is one agent's output within a recorded run.
type StageResponse struct {
	RunID    string `json:"run_id"`
	Stage    int    `json:"stage"`
	Position int    `json:"position"`
	Agent    string `json:"agent"`
	Content  string `json:"content"`
}

// CreateRun records the start of a pipeline run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, question, mode, chairman, final_agent, final_response, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Question, r.Mode, r.Chairman, r.FinalAgent, r.FinalResponse, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the run's outcome and completion time.
func (db *DB) FinishRun(id string, status RunStatus, finalAgent, finalResponse string) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, final_agent = ?, final_response = ?, completed_at = ?
		WHERE id = ?
	`, string(status), finalAgent, finalResponse, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if the run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, question, mode, chairman, final_agent, final_response, status, started_at, completed_at
		FROM runs WHERE id = ?
	`, id)

	var r Run
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&r.ID, &r.Question, &r.Mode, &r.Chairman, &r.FinalAgent, &r.FinalResponse, &r.Status, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.CompletedAt = parseNullableTime(completedAt)
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT id, question, mode, chairman, final_agent, final_response, status, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Question, &r.Mode, &r.Chairman, &r.FinalAgent, &r.FinalResponse, &r.Status, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.CompletedAt = parseNullableTime(completedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, via cascade, its stage responses.
func (db *DB) DeleteRun(id string) error {
	_, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// SaveStageResponses records a batch of stage outputs for a run.
func (db *DB) SaveStageResponses(responses []StageResponse) error {
	for _, sr := range responses {
		_, err := db.Exec(`
			INSERT OR REPLACE INTO stage_responses (run_id, stage, position, agent, content)
			VALUES (?, ?, ?, ?, ?)
		`, sr.RunID, sr.Stage, sr.Position, sr.Agent, sr.Content)
		if err != nil {
			return fmt.Errorf("save stage response: %w", err)
		}
	}
	return nil
}

// ListStageResponses returns a run's stage outputs ordered by stage and
// position.
func (db *DB) ListStageResponses(runID string) ([]StageResponse, error) {
	rows, err := db.Query(`
		SELECT run_id, stage, position, agent, content
		FROM stage_responses WHERE run_id = ?
		ORDER BY stage, position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage responses: %w", err)
	}
	defer rows.Close()

	var out []StageResponse
	for rows.Next() {
		var sr StageResponse
		if err := rows.Scan(&sr.RunID, &sr.Stage, &sr.Position, &sr.Agent, &sr.Content); err != nil {
			return nil, fmt.Errorf("scan stage response: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
