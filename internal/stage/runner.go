// Package stage fans one prompt out to many agents in parallel and joins
// on all of them reaching a terminal status. A stage is the only
// synchronization point between agents: one agent failing, timing out, or
// being killed never blocks or cancels its siblings.
package stage

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/conclave-ai/conclave/internal/agent"
	"github.com/conclave-ai/conclave/internal/tui"
	"github.com/conclave-ai/conclave/pkg/models"
)

// ErrInterrupted is returned when the operator interrupts an interactive
// stage; the pipeline must stop immediately.
var ErrInterrupted = errors.New("stage interrupted by operator")

// Options controls how a stage run behaves.
type Options struct {
	// Interactive enables the live monitor console with per-agent focus
	// and termination controls.
	Interactive bool
	// Refresh is the monitor redraw interval. Zero means 500ms.
	Refresh time.Duration
}

// Runner executes one stage across a set of agents.
type Runner struct {
	executor *agent.Executor

	// monitor is swappable for tests; defaults to the bubbletea console.
	monitor func(name string, states []*models.AgentState, kill func(int), killAll func(), refresh time.Duration, done <-chan struct{}) (bool, error)
}

// NewRunner creates a stage runner backed by the given executor.
func NewRunner(executor *agent.Executor) *Runner {
	return &Runner{
		executor: executor,
		monitor:  tui.RunStageMonitor,
	}
}

// RunStage starts every agent essentially simultaneously and waits for all
// of them to reach a terminal status. The returned slice has the same
// length and ordering as agents, regardless of completion order.
//
// Termination requests from the monitor cancel only the targeted agent's
// context; agents already terminal ignore them. An operator interrupt
// cancels every agent and returns ErrInterrupted.
func (r *Runner) RunStage(ctx context.Context, name, prompt string, agents []models.AgentConfig, timeout time.Duration, opts Options) ([]*models.AgentState, error) {
	states := make([]*models.AgentState, len(agents))
	cancels := make([]context.CancelFunc, len(agents))

	var wg sync.WaitGroup
	for i, cfg := range agents {
		states[i] = models.NewAgentState(cfg)

		agentCtx, cancel := context.WithCancel(ctx)
		cancels[i] = cancel

		wg.Add(1)
		go func(i int, agentCtx context.Context) {
			defer wg.Done()
			defer cancels[i]()
			r.executor.Run(agentCtx, states[i], prompt, timeout)
		}(i, agentCtx)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	log.Printf("[stage] %s: started %d agents (timeout %s)", name, len(agents), timeout)

	if opts.Interactive {
		return r.waitInteractive(name, states, cancels, opts, done)
	}
	return r.waitBatch(name, states, done), nil
}

// waitBatch blocks until every agent is terminal and prints one status
// line per agent.
func (r *Runner) waitBatch(name string, states []*models.AgentState, done <-chan struct{}) []*models.AgentState {
	<-done

	for _, s := range states {
		line := color.New(color.FgGreen)
		switch s.Status() {
		case models.AgentStatusError:
			line = color.New(color.FgRed)
		case models.AgentStatusTimeout, models.AgentStatusKilled:
			line = color.New(color.FgYellow)
		}
		line.Printf("  [%s] %s: %s (%s)\n", name, s.Config.Name, s.Status(), s.Elapsed().Round(time.Millisecond))
	}
	return states
}

// waitInteractive runs the monitor console over the same wait-for-all.
// The monitor only cancels agent contexts; it never touches executor
// internals.
func (r *Runner) waitInteractive(name string, states []*models.AgentState, cancels []context.CancelFunc, opts Options, done <-chan struct{}) ([]*models.AgentState, error) {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	kill := func(i int) {
		if i < 0 || i >= len(cancels) {
			return
		}
		// Canceling a terminal agent's context is a no-op: the status
		// transition guard refuses to overwrite a terminal state.
		cancels[i]()
	}
	killAll := func() {
		for _, cancel := range cancels {
			cancel()
		}
	}

	interrupted, err := r.monitor(name, states, kill, killAll, refresh, done)
	if err != nil {
		log.Printf("[stage] warning: monitor failed, falling back to batch wait: %v", err)
	}
	if interrupted {
		killAll()
		<-done
		return states, ErrInterrupted
	}

	<-done
	return states, nil
}
