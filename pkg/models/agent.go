package models

import (
	"sync"
	"time"
)

// AgentStatus represents the current state of an agent execution.
type AgentStatus string

const (
	// AgentStatusPending indicates the agent process has not started.
	AgentStatusPending AgentStatus = "pending"
	// AgentStatusRunning indicates the agent process is executing.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusCompleted indicates the agent exited with code 0.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusError indicates the agent failed to spawn or exited nonzero.
	AgentStatusError AgentStatus = "error"
	// AgentStatusTimeout indicates the agent exceeded its time budget.
	AgentStatusTimeout AgentStatus = "timeout"
	// AgentStatusKilled indicates the agent was terminated on request.
	AgentStatusKilled AgentStatus = "killed"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusPending, AgentStatusRunning, AgentStatusCompleted,
		AgentStatusError, AgentStatusTimeout, AgentStatusKilled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state. A terminal status
// is never overwritten.
func (s AgentStatus) Terminal() bool {
	switch s {
	case AgentStatusCompleted, AgentStatusError, AgentStatusTimeout, AgentStatusKilled:
		return true
	default:
		return false
	}
}

// AgentConfig describes how to invoke one external agent process.
// It is immutable and supplied by the configuration layer.
type AgentConfig struct {
	// Name uniquely identifies the agent within a run (e.g. "claude-opus").
	Name string `json:"name"`
	// Command is the argument vector for the agent process.
	Command []string `json:"command"`
	// PromptViaStdin controls prompt delivery: when true the prompt is
	// written to stdin and the stream is closed; otherwise it is appended
	// as the final positional argument.
	PromptViaStdin bool `json:"prompt_via_stdin"`
}

// AgentState tracks one agent invocation from spawn to terminal status.
// It is created pending and mutated only by the executor that owns it,
// but may be read concurrently by the stage monitor.
type AgentState struct {
	Config AgentConfig

	mu           sync.Mutex
	status       AgentStatus
	stdout       []string
	stderr       []string
	startTime    time.Time
	endTime      time.Time
	exitCode     int
	errorMessage string
}

// NewAgentState creates a pending AgentState for the given config.
func NewAgentState(cfg AgentConfig) *AgentState {
	return &AgentState{
		Config: cfg,
		status: AgentStatusPending,
	}
}

// Status returns the current status.
func (a *AgentState) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Transition moves the state to the given status. Transitions out of a
// terminal status are refused; the first terminal transition wins any race.
// Returns true if the transition was applied.
func (a *AgentState) Transition(to AgentStatus) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = to
	switch {
	case to == AgentStatusRunning:
		a.startTime = time.Now()
	case to.Terminal():
		a.endTime = time.Now()
	}
	return true
}

// AppendStdout appends one chunk of standard output in arrival order.
func (a *AgentState) AppendStdout(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stdout = append(a.stdout, chunk)
}

// AppendStderr appends one chunk of standard error in arrival order.
func (a *AgentState) AppendStderr(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stderr = append(a.stderr, chunk)
}

// Stdout returns the collected standard output as a single string.
func (a *AgentState) Stdout() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return joinChunks(a.stdout)
}

// Stderr returns the collected standard error as a single string.
func (a *AgentState) Stderr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return joinChunks(a.stderr)
}

// StdoutBytes returns the number of stdout bytes collected so far.
func (a *AgentState) StdoutBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.stdout {
		n += len(c)
	}
	return n
}

// SetExitCode records the process exit code.
func (a *AgentState) SetExitCode(code int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exitCode = code
}

// ExitCode returns the recorded process exit code.
func (a *AgentState) ExitCode() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitCode
}

// SetErrorMessage records a failure description for error states.
func (a *AgentState) SetErrorMessage(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorMessage = msg
}

// ErrorMessage returns the recorded failure description, if any.
func (a *AgentState) ErrorMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errorMessage
}

// StartTime returns when the agent entered the running state.
func (a *AgentState) StartTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startTime
}

// EndTime returns when the agent reached a terminal state.
func (a *AgentState) EndTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.endTime
}

// Elapsed returns the running duration: end minus start once terminal,
// time since start while running, zero before start.
func (a *AgentState) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startTime.IsZero() {
		return 0
	}
	if a.endTime.IsZero() {
		return time.Since(a.startTime)
	}
	return a.endTime.Sub(a.startTime)
}

func joinChunks(chunks []string) string {
	switch len(chunks) {
	case 0:
		return ""
	case 1:
		return chunks[0]
	}
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	b := make([]byte, 0, n)
	for _, c := range chunks {
		b = append(b, c...)
	}
	return string(b)
}
