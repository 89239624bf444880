package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

func shellAgent(name, script string) models.AgentConfig {
	return models.AgentConfig{
		Name:    name,
		Command: []string{"/bin/sh", "-c", script},
	}
}

func TestExecuteCompleted(t *testing.T) {
	e := NewExecutor()
	// The prompt arrives as the final positional argument ($0 after -c script).
	cfg := models.AgentConfig{
		Name:    "echoer",
		Command: []string{"/bin/sh", "-c", `printf 'answer: %s' "$0"`},
	}

	state := e.Execute(context.Background(), cfg, "blue", 5*time.Second)

	if got := state.Status(); got != models.AgentStatusCompleted {
		t.Fatalf("status = %s, want completed (stderr: %s)", got, state.Stderr())
	}
	if got := state.Stdout(); got != "answer: blue" {
		t.Errorf("stdout = %q, want %q", got, "answer: blue")
	}
	if state.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", state.ExitCode())
	}
}

func TestExecutePromptViaStdin(t *testing.T) {
	e := NewExecutor()
	cfg := models.AgentConfig{
		Name:           "cat",
		Command:        []string{"cat"},
		PromptViaStdin: true,
	}

	state := e.Execute(context.Background(), cfg, "what is 2+2?", 5*time.Second)

	if got := state.Status(); got != models.AgentStatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	if got := state.Stdout(); got != "what is 2+2?" {
		t.Errorf("stdout = %q", got)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	e := NewExecutor()
	state := e.Execute(context.Background(), shellAgent("failer", "echo oops >&2; exit 3"), "q", 5*time.Second)

	if got := state.Status(); got != models.AgentStatusError {
		t.Fatalf("status = %s, want error", got)
	}
	if state.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", state.ExitCode())
	}
	if !strings.Contains(state.ErrorMessage(), "oops") {
		t.Errorf("error message %q should include stderr", state.ErrorMessage())
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	e := NewExecutor()
	cfg := models.AgentConfig{
		Name:    "missing",
		Command: []string{"/no/such/binary/anywhere"},
	}

	state := e.Execute(context.Background(), cfg, "q", time.Second)

	if got := state.Status(); got != models.AgentStatusError {
		t.Fatalf("status = %s, want error", got)
	}
	if state.ErrorMessage() == "" {
		t.Error("spawn failure should carry an error message")
	}
}

func TestExecuteEmptyCommand(t *testing.T) {
	e := NewExecutor()
	state := e.Execute(context.Background(), models.AgentConfig{Name: "empty"}, "q", time.Second)

	if got := state.Status(); got != models.AgentStatusError {
		t.Errorf("status = %s, want error", got)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := NewExecutor()
	start := time.Now()
	state := e.Execute(context.Background(), shellAgent("sleeper", "sleep 30"), "q", 100*time.Millisecond)

	if got := state.Status(); got != models.AgentStatusTimeout {
		t.Fatalf("status = %s, want timeout", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s, the process was not killed", elapsed)
	}
}

func TestExecuteFastExitBeatsTimer(t *testing.T) {
	e := NewExecutor()
	// Generous timeout: the natural exit must win and the timer must have
	// no retroactive effect.
	state := e.Execute(context.Background(), shellAgent("quick", "echo hi"), "q", 10*time.Second)

	if got := state.Status(); got != models.AgentStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

func TestExecuteKilledByContext(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	state := e.Execute(ctx, shellAgent("sleeper", "sleep 30"), "q", time.Minute)

	if got := state.Status(); got != models.AgentStatusKilled {
		t.Fatalf("status = %s, want killed", got)
	}
}

func TestExecutePartialOutputKeptOnTimeout(t *testing.T) {
	e := NewExecutor()
	state := e.Execute(context.Background(),
		shellAgent("partial", "printf 'partial output'; sleep 30"), "q", 300*time.Millisecond)

	if got := state.Status(); got != models.AgentStatusTimeout {
		t.Fatalf("status = %s, want timeout", got)
	}
	if got := state.Stdout(); got != "partial output" {
		t.Errorf("stdout = %q, want partial output preserved", got)
	}
}
