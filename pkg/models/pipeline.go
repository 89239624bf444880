package models

// PipelineMode selects the deliberation protocol variant.
type PipelineMode string

const (
	// ModeCompete runs peer ranking between Stage 1 and synthesis.
	ModeCompete PipelineMode = "compete"
	// ModeMerge synthesizes from all Stage 1 responses without ranking.
	ModeMerge PipelineMode = "merge"
)

// Valid returns true if the mode is a known value.
func (m PipelineMode) Valid() bool {
	return m == ModeCompete || m == ModeMerge
}

// Stage1Result holds one agent's individual answer to the question.
type Stage1Result struct {
	// Agent is the responding agent's name.
	Agent string `json:"agent"`
	// Response is the full text the agent produced.
	Response string `json:"response"`
	// Summary is a best-effort short form of the response, may be empty.
	Summary string `json:"summary,omitempty"`
}

// Stage2Result holds one evaluator's peer ranking of anonymized responses.
type Stage2Result struct {
	// Agent is the evaluating agent's name.
	Agent string `json:"agent"`
	// RankingRaw is the evaluator's full ranking text.
	RankingRaw string `json:"ranking_raw"`
	// ParsedRanking is the ordered list of anonymized labels extracted
	// from RankingRaw, best first.
	ParsedRanking []string `json:"parsed_ranking"`
}

// AggregateRanking is the derived consensus position of one agent.
type AggregateRanking struct {
	// Agent is the ranked agent's name.
	Agent string `json:"agent"`
	// AverageRank is the mean 1-indexed position across evaluators,
	// rounded to two decimal places. Lower is better.
	AverageRank float64 `json:"average_rank"`
	// RankingsCount is the number of evaluators that ranked this agent.
	RankingsCount int `json:"rankings_count"`
}

// Stage3Result holds the chairman's synthesized final answer.
type Stage3Result struct {
	// Agent is the synthesizing agent's name. For two-pass synthesis it
	// is a composite "pass1+pass2" identifier.
	Agent string `json:"agent"`
	// Response is the synthesized text.
	Response string `json:"response"`
}

// PipelineResult is the fully-populated outcome of one pipeline run.
type PipelineResult struct {
	Question  string             `json:"question"`
	Mode      PipelineMode       `json:"mode"`
	Stage1    []Stage1Result     `json:"stage1"`
	Stage2    []Stage2Result     `json:"stage2,omitempty"`
	Aggregate []AggregateRanking `json:"aggregate,omitempty"`
	// LabelToAgent maps anonymized labels to agent names, positional over
	// the Stage1 slice: the i-th result carries the i-th letter.
	LabelToAgent map[string]string `json:"label_to_agent,omitempty"`
	Stage3       Stage3Result      `json:"stage3"`
}
