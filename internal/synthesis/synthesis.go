// Package synthesis runs the chairman stage: a single agent turns the
// council's responses into the final answer. Chairman failures are signaled
// through a sentinel response prefix rather than an error so the pipeline
// can surface them verbatim.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/internal/agent"
	"github.com/conclave-ai/conclave/internal/prompts"
	"github.com/conclave-ai/conclave/internal/sections"
	"github.com/conclave-ai/conclave/pkg/models"
)

// FailureSentinel prefixes every chairman response that represents an
// execution failure rather than real content.
const FailureSentinel = "Error from chairman"

// PlaceholderNote is appended to every placeholder section produced when
// the detail pass yields nothing usable.
const PlaceholderNote = "[Note: detail pass produced no content; this section contains the outline only.]"

// IsFailure reports whether a chairman response is the failure sentinel.
func IsFailure(response string) bool {
	return strings.HasPrefix(strings.TrimSpace(response), FailureSentinel)
}

// Config selects the chairman, its optional fallback, and prompt shaping
// for one synthesis call.
type Config struct {
	Mode     models.PipelineMode
	Chairman models.AgentConfig
	// Fallback, when set, is tried exactly once if the chairman fails.
	Fallback *models.AgentConfig
	// UseSummaries embeds Stage-1 summaries instead of full responses.
	UseSummaries bool
	Timeout      time.Duration
}

// TwoPassConfig adds the detail-pass agent. When DetailAgent is nil the
// step-down function picks it from the chairman.
type TwoPassConfig struct {
	Config
	DetailAgent *models.AgentConfig
}

// Synthesizer executes chairman passes through an agent executor.
type Synthesizer struct {
	executor *agent.Executor

	// stepDown maps a chairman to its detail-pass agent, normally one
	// capability tier lower.
	stepDown func(models.AgentConfig) models.AgentConfig

	// run is swappable for tests.
	run func(ctx context.Context, cfg models.AgentConfig, prompt string, timeout time.Duration) *models.AgentState
}

// NewSynthesizer creates a Synthesizer. stepDown may be nil, in which case
// the detail pass reuses the chairman unless overridden.
func NewSynthesizer(executor *agent.Executor, stepDown func(models.AgentConfig) models.AgentConfig) *Synthesizer {
	if stepDown == nil {
		stepDown = func(cfg models.AgentConfig) models.AgentConfig { return cfg }
	}
	return &Synthesizer{
		executor: executor,
		stepDown: stepDown,
		run:      executor.Execute,
	}
}

// invoke runs one chairman call and always yields a response string: a
// failed invocation becomes the failure sentinel with the reason attached.
func (s *Synthesizer) invoke(ctx context.Context, cfg models.AgentConfig, prompt string, timeout time.Duration) string {
	state := s.run(ctx, cfg, prompt, timeout)
	if state.Status() != models.AgentStatusCompleted {
		reason := state.ErrorMessage()
		if reason == "" {
			reason = string(state.Status())
		}
		return fmt.Sprintf("%s (%s)", FailureSentinel, reason)
	}
	return state.Stdout()
}

// Synthesize runs the single-pass chairman. If the chairman fails and a
// fallback is configured, the fallback is invoked exactly once and its
// response is final whatever it contains.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, stage1 []models.Stage1Result, aggregate []models.AggregateRanking, cfg Config) models.Stage3Result {
	var prompt string
	if cfg.Mode == models.ModeMerge {
		prompt = prompts.Merge(question, stage1, cfg.UseSummaries)
	} else {
		prompt = prompts.Chairman(question, stage1, aggregate, cfg.UseSummaries)
	}

	response := s.invoke(ctx, cfg.Chairman, prompt, cfg.Timeout)
	if IsFailure(response) && cfg.Fallback != nil {
		log.Printf("[synthesis] warning: chairman %s failed, retrying once with fallback %s", cfg.Chairman.Name, cfg.Fallback.Name)
		response = s.invoke(ctx, *cfg.Fallback, prompt, cfg.Timeout)
		return models.Stage3Result{Agent: cfg.Fallback.Name, Response: response}
	}
	return models.Stage3Result{Agent: cfg.Chairman.Name, Response: response}
}

// SynthesizeTwoPass runs the synthesis pass followed by the detail pass and
// combines their complete sections, pass 1 first. The fallback retry, when
// it fires, restarts the whole sequence with the fallback chairman.
func (s *Synthesizer) SynthesizeTwoPass(ctx context.Context, question string, stage1 []models.Stage1Result, aggregate []models.AggregateRanking, cfg TwoPassConfig) models.Stage3Result {
	result, pass1Failed := s.runTwoPass(ctx, question, stage1, aggregate, cfg, cfg.Chairman)
	if pass1Failed && cfg.Fallback != nil {
		log.Printf("[synthesis] warning: chairman %s failed pass 1, restarting two-pass with fallback %s", cfg.Chairman.Name, cfg.Fallback.Name)
		result, _ = s.runTwoPass(ctx, question, stage1, aggregate, cfg, *cfg.Fallback)
	}
	return result
}

// runTwoPass executes both passes under one chairman. pass1Failed reports
// whether the synthesis pass itself returned the failure sentinel, which is
// the condition for the whole-sequence fallback retry.
func (s *Synthesizer) runTwoPass(ctx context.Context, question string, stage1 []models.Stage1Result, aggregate []models.AggregateRanking, cfg TwoPassConfig, chairman models.AgentConfig) (models.Stage3Result, bool) {
	detail := s.detailAgent(cfg, chairman)

	if cfg.Mode == models.ModeMerge {
		return s.runMergeTwoPass(ctx, question, stage1, cfg, chairman, detail)
	}

	pass1Resp := s.invoke(ctx, chairman, prompts.TwoPassSynthesis(question, stage1, aggregate, cfg.UseSummaries), cfg.Timeout)
	if IsFailure(pass1Resp) {
		return models.Stage3Result{Agent: chairman.Name, Response: pass1Resp}, true
	}

	pass1 := sections.Parse(pass1Resp)
	outlines := ParseOutlines(outlineSection(pass1))

	var pass2 []sections.ParsedSection
	if len(outlines) > 0 {
		pass2Resp := s.invoke(ctx, detail, prompts.TwoPassDetail(question, outlines), cfg.Timeout)
		if !IsFailure(pass2Resp) {
			pass2 = sections.Parse(pass2Resp)
		}
	}

	if countComplete(pass2) == 0 && len(outlines) > 0 {
		log.Printf("[synthesis] warning: detail pass produced no complete sections, falling back to outline placeholders")
		pass2 = placeholderSections(outlines)
	}

	return models.Stage3Result{
		Agent:    chairman.Name + "+" + detail.Name,
		Response: combine(pass1, pass2),
	}, false
}

// runMergeTwoPass keeps the same pass structure but works on prose: pass 1
// produces the merged draft, pass 2 refines it against the originals.
func (s *Synthesizer) runMergeTwoPass(ctx context.Context, question string, stage1 []models.Stage1Result, cfg TwoPassConfig, chairman, detail models.AgentConfig) (models.Stage3Result, bool) {
	draft := s.invoke(ctx, chairman, prompts.Merge(question, stage1, cfg.UseSummaries), cfg.Timeout)
	if IsFailure(draft) {
		return models.Stage3Result{Agent: chairman.Name, Response: draft}, true
	}

	refined := s.invoke(ctx, detail, prompts.MergeRefine(question, draft, stage1), cfg.Timeout)
	if IsFailure(refined) {
		log.Printf("[synthesis] warning: merge refine pass failed, keeping the pass-1 draft")
		return models.Stage3Result{Agent: chairman.Name, Response: draft}, false
	}

	return models.Stage3Result{
		Agent:    chairman.Name + "+" + detail.Name,
		Response: refined,
	}, false
}

func (s *Synthesizer) detailAgent(cfg TwoPassConfig, chairman models.AgentConfig) models.AgentConfig {
	if cfg.DetailAgent != nil {
		return *cfg.DetailAgent
	}
	return s.stepDown(chairman)
}

// outlineSection returns the content of pass 1's outline section, complete
// or truncated, or "" when absent.
func outlineSection(pass1 []sections.ParsedSection) string {
	for _, sec := range pass1 {
		if sec.Name == prompts.SectionOutlines {
			return sec.Content
		}
	}
	return ""
}

// ParseOutlines extracts section-name → outline pairs from the outline
// section. It first tries a JSON object, then falls back to line-oriented
// "key: value" extraction. Keys are restricted to valid section names.
func ParseOutlines(text string) map[string]string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if m := parseOutlineJSON(text); len(m) > 0 {
		return m
	}

	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), `"'`+"`-* ")
		value = strings.TrimSpace(value)
		if validSectionName(key) && value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseOutlineJSON(text string) map[string]string {
	candidate := text
	if start := strings.Index(candidate, "{"); start >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return nil
	}
	for key := range m {
		if !validSectionName(key) {
			delete(m, key)
		}
	}
	return m
}

func validSectionName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// placeholderSections builds one complete section per outline entry, each
// carrying the outline text and the fixed placeholder note.
func placeholderSections(outlines map[string]string) []sections.ParsedSection {
	names := make([]string, 0, len(outlines))
	for name := range outlines {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]sections.ParsedSection, 0, len(names))
	for _, name := range names {
		out = append(out, sections.ParsedSection{
			Name:     name,
			Content:  outlines[name] + "\n\n" + PlaceholderNote,
			Complete: true,
		})
	}
	return out
}

func countComplete(secs []sections.ParsedSection) int {
	n := 0
	for _, sec := range secs {
		if sec.Complete {
			n++
		}
	}
	return n
}

// combine re-encodes every complete section from both passes, pass 1
// before pass 2, into one delimited document.
func combine(pass1, pass2 []sections.ParsedSection) string {
	var parts []string
	for _, pass := range [][]sections.ParsedSection{pass1, pass2} {
		if encoded := sections.EncodeAll(pass); encoded != "" {
			parts = append(parts, encoded)
		}
	}
	return strings.Join(parts, "\n\n")
}
