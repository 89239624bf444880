// Package pipeline sequences the three deliberation stages over one
// question. Stage ordering is enforced by an explicit state machine; a
// stage never starts before the previous stage's callback has returned.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/internal/checkpoint"
	"github.com/conclave-ai/conclave/internal/history"
	"github.com/conclave-ai/conclave/internal/prompts"
	"github.com/conclave-ai/conclave/internal/ranking"
	"github.com/conclave-ai/conclave/internal/stage"
	"github.com/conclave-ai/conclave/internal/synthesis"
	"github.com/conclave-ai/conclave/pkg/models"
)

// State is one orchestrator position. Transitions only move forward;
// merge mode skips the Stage2 states entirely.
type State string

const (
	StateStage1Pending State = "stage1_pending"
	StateStage1Done    State = "stage1_done"
	StateStage2Pending State = "stage2_pending"
	StateStage2Done    State = "stage2_done"
	StateStage3Pending State = "stage3_pending"
	StateComplete      State = "complete"
)

// Callbacks observe stage completions. Each callback is invoked and
// returns before the next stage begins; nil callbacks are skipped. A
// resumed run replays the callbacks for restored stages so observers see
// the same sequence as a live run.
type Callbacks struct {
	OnStage1Complete func([]models.Stage1Result)
	OnStage2Complete func([]models.Stage2Result, []models.AggregateRanking)
	OnStage3Complete func(models.Stage3Result)
}

// Options configures one pipeline run.
type Options struct {
	Mode   models.PipelineMode
	Agents []models.AgentConfig

	Chairman models.AgentConfig
	Fallback *models.AgentConfig
	// DetailAgent overrides the tier step-down for the two-pass detail
	// pass.
	DetailAgent *models.AgentConfig
	TwoPass     bool

	UseSummaries bool
	Timeout      time.Duration

	Stage     stage.Options
	Callbacks Callbacks
}

// Orchestrator drives one question through the full pipeline. It is not
// re-entrant; create one per run.
type Orchestrator struct {
	runner      *stage.Runner
	synthesizer *synthesis.Synthesizer
	// checkpoints may be nil to disable resumption.
	checkpoints *checkpoint.Store
	// historyDB may be nil to disable run recording.
	historyDB *history.DB

	state State
}

// New creates an orchestrator. checkpoints and historyDB are optional.
func New(runner *stage.Runner, synthesizer *synthesis.Synthesizer, checkpoints *checkpoint.Store, historyDB *history.DB) *Orchestrator {
	return &Orchestrator{
		runner:      runner,
		synthesizer: synthesizer,
		checkpoints: checkpoints,
		historyDB:   historyDB,
		state:       StateStage1Pending,
	}
}

// State returns the orchestrator's current position.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the pipeline for one question. It returns (nil, nil) when
// Stage 1 produces zero completed responses, and a non-nil error only for
// operator interruption or infrastructure failures. Chairman failures are
// carried in the result's Stage3 response, sentinel-prefixed.
func (o *Orchestrator) Run(ctx context.Context, question string, opts Options) (*models.PipelineResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid pipeline mode %q", opts.Mode)
	}

	runID := uuid.New().String()
	o.recordRunStart(runID, question, opts)

	result := &models.PipelineResult{
		Question: question,
		Mode:     opts.Mode,
	}

	restored := o.loadCheckpoint(question)

	// Stage 1: individual responses.
	o.state = StateStage1Pending
	if restored != nil {
		result.Stage1 = restored.Stage1
		log.Printf("[pipeline] resuming from checkpoint (stage %s, %d responses)", restored.CompletedStage, len(result.Stage1))
	} else {
		stage1, err := o.runStage1(ctx, question, opts)
		if err != nil {
			o.recordRunEnd(runID, history.RunAborted, "", "")
			return nil, err
		}
		result.Stage1 = stage1
	}

	if len(result.Stage1) == 0 {
		log.Printf("[pipeline] warning: no completed responses in stage 1, aborting")
		o.recordRunEnd(runID, history.RunAborted, "", "")
		return nil, nil
	}

	o.invokeStage1Callback(opts, result.Stage1)
	o.state = StateStage1Done

	// Labels are positional over the Stage-1 slice, live or restored.
	result.LabelToAgent = labelMap(result.Stage1)
	if restored == nil {
		o.saveCheckpoint(question, checkpoint.StageStage1, result)
	}
	o.recordStage1(runID, result.Stage1)

	// Stage 2: peer ranking, compete mode only.
	if opts.Mode == models.ModeCompete {
		o.state = StateStage2Pending
		if restored != nil && restored.CompletedStage == checkpoint.StageStage2 {
			result.Stage2 = restored.Stage2
			result.Aggregate = restored.Aggregate
		} else {
			stage2, err := o.runStage2(ctx, question, opts, result.Stage1)
			if err != nil {
				o.recordRunEnd(runID, history.RunAborted, "", "")
				return nil, err
			}
			result.Stage2 = stage2
			result.Aggregate = ranking.Aggregate(result.Stage2, result.LabelToAgent)
		}

		o.invokeStage2Callback(opts, result.Stage2, result.Aggregate)
		o.state = StateStage2Done

		if restored == nil || restored.CompletedStage != checkpoint.StageStage2 {
			o.saveCheckpoint(question, checkpoint.StageStage2, result)
		}
		o.recordStage2(runID, result.Stage2)
	}

	// Stage 3: chairman synthesis.
	o.state = StateStage3Pending
	result.Stage3 = o.runStage3(ctx, question, opts, result)

	if opts.Callbacks.OnStage3Complete != nil {
		opts.Callbacks.OnStage3Complete(result.Stage3)
	}
	o.state = StateComplete

	chairmanFailed := synthesis.IsFailure(result.Stage3.Response)
	if o.checkpoints != nil && !chairmanFailed {
		if err := o.checkpoints.Clear(); err != nil {
			log.Printf("[pipeline] warning: %v", err)
		}
	}
	if chairmanFailed {
		o.recordRunEnd(runID, history.RunFailed, result.Stage3.Agent, result.Stage3.Response)
	} else {
		o.recordRunEnd(runID, history.RunCompleted, result.Stage3.Agent, result.Stage3.Response)
	}
	o.recordStage3(runID, result.Stage3)

	return result, nil
}

// runStage1 fans the question out to the council and keeps completed
// responses, in agent order. Timed-out, killed, and failed agents are
// excluded, partial output included.
func (o *Orchestrator) runStage1(ctx context.Context, question string, opts Options) ([]models.Stage1Result, error) {
	states, err := o.runner.RunStage(ctx, "stage1", prompts.Stage1(question), opts.Agents, opts.Timeout, opts.Stage)
	if err != nil {
		return nil, err
	}

	var results []models.Stage1Result
	for _, s := range states {
		if s.Status() != models.AgentStatusCompleted {
			log.Printf("[pipeline] warning: %s excluded from stage 1 (%s: %s)", s.Config.Name, s.Status(), s.ErrorMessage())
			continue
		}
		response := s.Stdout()
		results = append(results, models.Stage1Result{
			Agent:    s.Config.Name,
			Response: response,
			Summary:  prompts.ExtractSummary(response),
		})
	}
	return results, nil
}

// runStage2 has every agent that completed Stage 1 rank the anonymized
// response set. Evaluators that fail are dropped from the ranking pool.
func (o *Orchestrator) runStage2(ctx context.Context, question string, opts Options, stage1 []models.Stage1Result) ([]models.Stage2Result, error) {
	evaluators := evaluatorConfigs(opts.Agents, stage1)
	prompt := prompts.Stage2(question, stage1)

	states, err := o.runner.RunStage(ctx, "stage2", prompt, evaluators, opts.Timeout, opts.Stage)
	if err != nil {
		return nil, err
	}

	var results []models.Stage2Result
	for _, s := range states {
		if s.Status() != models.AgentStatusCompleted {
			log.Printf("[pipeline] warning: %s excluded from stage 2 (%s)", s.Config.Name, s.Status())
			continue
		}
		raw := s.Stdout()
		results = append(results, models.Stage2Result{
			Agent:         s.Config.Name,
			RankingRaw:    raw,
			ParsedRanking: ranking.ParseRanking(raw),
		})
	}
	return results, nil
}

func (o *Orchestrator) runStage3(ctx context.Context, question string, opts Options, result *models.PipelineResult) models.Stage3Result {
	cfg := synthesis.Config{
		Mode:         opts.Mode,
		Chairman:     opts.Chairman,
		Fallback:     opts.Fallback,
		UseSummaries: opts.UseSummaries,
		Timeout:      opts.Timeout,
	}

	if opts.TwoPass {
		return o.synthesizer.SynthesizeTwoPass(ctx, question, result.Stage1, result.Aggregate, synthesis.TwoPassConfig{
			Config:      cfg,
			DetailAgent: opts.DetailAgent,
		})
	}
	return o.synthesizer.Synthesize(ctx, question, result.Stage1, result.Aggregate, cfg)
}

func (o *Orchestrator) invokeStage1Callback(opts Options, stage1 []models.Stage1Result) {
	if opts.Callbacks.OnStage1Complete != nil {
		opts.Callbacks.OnStage1Complete(stage1)
	}
}

func (o *Orchestrator) invokeStage2Callback(opts Options, stage2 []models.Stage2Result, aggregate []models.AggregateRanking) {
	if opts.Callbacks.OnStage2Complete != nil {
		opts.Callbacks.OnStage2Complete(stage2, aggregate)
	}
}

// labelMap assigns the i-th letter to the i-th Stage-1 result.
func labelMap(stage1 []models.Stage1Result) map[string]string {
	labels := make(map[string]string, len(stage1))
	for i, res := range stage1 {
		labels[prompts.LabelForIndex(i)] = res.Agent
	}
	return labels
}

// evaluatorConfigs returns the configs of agents that completed Stage 1,
// preserving council order.
func evaluatorConfigs(agents []models.AgentConfig, stage1 []models.Stage1Result) []models.AgentConfig {
	completed := make(map[string]bool, len(stage1))
	for _, res := range stage1 {
		completed[res.Agent] = true
	}

	var out []models.AgentConfig
	for _, cfg := range agents {
		if completed[cfg.Name] {
			out = append(out, cfg)
		}
	}
	return out
}

func (o *Orchestrator) loadCheckpoint(question string) *checkpoint.Data {
	if o.checkpoints == nil {
		return nil
	}
	return o.checkpoints.Load(question)
}

func (o *Orchestrator) saveCheckpoint(question, completedStage string, result *models.PipelineResult) {
	if o.checkpoints == nil {
		return
	}
	err := o.checkpoints.Save(checkpoint.Data{
		Question:       question,
		CompletedStage: completedStage,
		Stage1:         result.Stage1,
		Stage2:         result.Stage2,
		LabelToAgent:   result.LabelToAgent,
		Aggregate:      result.Aggregate,
	})
	if err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}

func (o *Orchestrator) recordRunStart(runID, question string, opts Options) {
	if o.historyDB == nil {
		return
	}
	err := o.historyDB.CreateRun(&history.Run{
		ID:        runID,
		Question:  question,
		Mode:      string(opts.Mode),
		Chairman:  opts.Chairman.Name,
		Status:    history.RunActive,
		StartedAt: time.Now(),
	})
	if err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}

func (o *Orchestrator) recordRunEnd(runID string, status history.RunStatus, finalAgent, finalResponse string) {
	if o.historyDB == nil {
		return
	}
	if err := o.historyDB.FinishRun(runID, status, finalAgent, finalResponse); err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}

func (o *Orchestrator) recordStage1(runID string, stage1 []models.Stage1Result) {
	if o.historyDB == nil {
		return
	}
	responses := make([]history.StageResponse, 0, len(stage1))
	for i, res := range stage1 {
		responses = append(responses, history.StageResponse{
			RunID: runID, Stage: 1, Position: i, Agent: res.Agent, Content: res.Response,
		})
	}
	if err := o.historyDB.SaveStageResponses(responses); err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}

func (o *Orchestrator) recordStage2(runID string, stage2 []models.Stage2Result) {
	if o.historyDB == nil {
		return
	}
	responses := make([]history.StageResponse, 0, len(stage2))
	for i, res := range stage2 {
		responses = append(responses, history.StageResponse{
			RunID: runID, Stage: 2, Position: i, Agent: res.Agent, Content: res.RankingRaw,
		})
	}
	if err := o.historyDB.SaveStageResponses(responses); err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}

func (o *Orchestrator) recordStage3(runID string, stage3 models.Stage3Result) {
	if o.historyDB == nil {
		return
	}
	err := o.historyDB.SaveStageResponses([]history.StageResponse{
		{RunID: runID, Stage: 3, Position: 0, Agent: stage3.Agent, Content: stage3.Response},
	})
	if err != nil {
		log.Printf("[pipeline] warning: %v", err)
	}
}
