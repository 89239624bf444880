// Package agent runs external agent processes and owns their status
// lifecycle. One OS process is spawned per Execute call; there is no shared
// state across calls.
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Executor runs one agent process to completion or forced termination.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// chunkWriter appends every write to the agent state in arrival order.
type chunkWriter struct {
	append func(string)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.append(string(p))
	}
	return len(p), nil
}

// Execute spawns the agent's command, delivers the prompt via stdin or a
// trailing argument, and waits for the process to finish or be terminated.
// The returned state is always terminal:
//   - completed: exit code 0
//   - error: spawn failure or nonzero exit
//   - timeout: timeout elapsed while still running
//   - killed: ctx canceled while still running
//
// The timeout timer races the natural exit; whichever commits a terminal
// transition first wins, and later transitions are no-ops.
func (e *Executor) Execute(ctx context.Context, cfg models.AgentConfig, prompt string, timeout time.Duration) *models.AgentState {
	state := models.NewAgentState(cfg)
	e.Run(ctx, state, prompt, timeout)
	return state
}

// Run executes a pending agent state in place. The stage runner uses this
// form so it can observe the state while the process is still running.
func (e *Executor) Run(ctx context.Context, state *models.AgentState, prompt string, timeout time.Duration) {
	cfg := state.Config

	if len(cfg.Command) == 0 {
		state.Transition(models.AgentStatusError)
		state.SetErrorMessage("agent command is empty")
		return
	}

	args := append([]string(nil), cfg.Command[1:]...)
	if !cfg.PromptViaStdin {
		args = append(args, prompt)
	}

	// A private context backs forced termination; canceling it kills the
	// process. WaitDelay bounds Wait when a descendant keeps the output
	// pipes open after the kill.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	cmd := exec.CommandContext(runCtx, cfg.Command[0], args...)
	cmd.WaitDelay = 5 * time.Second
	if cfg.PromptViaStdin {
		// os/exec writes the reader to the child's stdin and closes the
		// pipe when the reader is drained.
		cmd.Stdin = strings.NewReader(prompt)
	}
	cmd.Stdout = &chunkWriter{append: state.AppendStdout}
	cmd.Stderr = &chunkWriter{append: state.AppendStderr}

	if err := cmd.Start(); err != nil {
		state.Transition(models.AgentStatusError)
		state.SetErrorMessage(fmt.Sprintf("spawn %s: %v", cfg.Command[0], err))
		return
	}

	state.Transition(models.AgentStatusRunning)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		e.finish(state, waitErr)
	case <-timer.C:
		if state.Transition(models.AgentStatusTimeout) {
			state.SetErrorMessage(fmt.Sprintf("timed out after %s", timeout))
			cancelRun()
		}
		e.finish(state, <-done)
	case <-ctx.Done():
		if state.Transition(models.AgentStatusKilled) {
			state.SetErrorMessage("terminated by operator")
			cancelRun()
		}
		e.finish(state, <-done)
	}
}

// finish records the exit code and commits the natural-exit transition.
// If a timeout or kill already claimed the terminal state this only
// records the exit code.
func (e *Executor) finish(state *models.AgentState, waitErr error) {
	if waitErr == nil {
		state.SetExitCode(0)
		state.Transition(models.AgentStatusCompleted)
		return
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		state.SetExitCode(exitErr.ExitCode())
	} else {
		state.SetExitCode(-1)
	}
	if state.Transition(models.AgentStatusError) {
		msg := waitErr.Error()
		if stderr := strings.TrimSpace(state.Stderr()); stderr != "" {
			msg = fmt.Sprintf("%s; stderr: %s", msg, stderr)
		}
		state.SetErrorMessage(msg)
	}
}
