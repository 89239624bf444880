package models

import (
	"sync"
	"testing"
)

func TestAgentStatusTerminal(t *testing.T) {
	tests := []struct {
		status   AgentStatus
		terminal bool
	}{
		{AgentStatusPending, false},
		{AgentStatusRunning, false},
		{AgentStatusCompleted, true},
		{AgentStatusError, true},
		{AgentStatusTimeout, true},
		{AgentStatusKilled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestTransitionTerminalIsFinal(t *testing.T) {
	state := NewAgentState(AgentConfig{Name: "a"})

	if !state.Transition(AgentStatusRunning) {
		t.Fatal("pending -> running should succeed")
	}
	if !state.Transition(AgentStatusCompleted) {
		t.Fatal("running -> completed should succeed")
	}

	// Timeout and kill requests after completion are no-ops.
	if state.Transition(AgentStatusTimeout) {
		t.Error("completed -> timeout should be refused")
	}
	if state.Transition(AgentStatusKilled) {
		t.Error("completed -> killed should be refused")
	}
	if got := state.Status(); got != AgentStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

func TestTransitionRaceSingleWinner(t *testing.T) {
	state := NewAgentState(AgentConfig{Name: "a"})
	state.Transition(AgentStatusRunning)

	candidates := []AgentStatus{
		AgentStatusCompleted, AgentStatusTimeout, AgentStatusKilled, AgentStatusError,
	}

	var wg sync.WaitGroup
	wins := make([]bool, len(candidates))
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c AgentStatus) {
			defer wg.Done()
			wins[i] = state.Transition(c)
		}(i, c)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winning transition, got %d", winners)
	}
	if !state.Status().Terminal() {
		t.Errorf("status = %s, want a terminal state", state.Status())
	}
}

func TestStdoutChunksPreserveOrder(t *testing.T) {
	state := NewAgentState(AgentConfig{Name: "a"})
	state.AppendStdout("hello ")
	state.AppendStdout("world")
	state.AppendStderr("warn\n")

	if got := state.Stdout(); got != "hello world" {
		t.Errorf("Stdout() = %q, want %q", got, "hello world")
	}
	if got := state.Stderr(); got != "warn\n" {
		t.Errorf("Stderr() = %q, want %q", got, "warn\n")
	}
	if got := state.StdoutBytes(); got != len("hello world") {
		t.Errorf("StdoutBytes() = %d, want %d", got, len("hello world"))
	}
}
