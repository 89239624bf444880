// Package prompts builds the prompt text for each pipeline stage. Only the
// structural contract matters here: anonymized labels, the FINAL RANKING:
// marker, and the ===SECTION:name=== delimiters that downstream parsers
// depend on.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conclave-ai/conclave/internal/ranking"
	"github.com/conclave-ai/conclave/pkg/models"
)

// Pass-1 section names requested from the chairman during two-pass
// synthesis. SectionOutlines feeds pass 2 and its placeholder fallback.
const (
	SectionExecutiveSummary     = "executive_summary"
	SectionAmbiguities          = "ambiguities"
	SectionConsensus            = "consensus"
	SectionImplementationPhases = "implementation_phases"
	SectionOutlines             = "section_outlines"
)

// LabelForIndex returns the anonymized label for the i-th Stage-1 result.
// The mapping is positional: index 0 is "Response A", index 1 "Response B",
// and so on.
func LabelForIndex(i int) string {
	return fmt.Sprintf("Response %c", 'A'+rune(i))
}

// Stage1 returns the prompt sent to every agent in the first stage. The
// SUMMARY line is a best-effort extraction aid, not a hard requirement.
func Stage1(question string) string {
	return fmt.Sprintf(`%s

After your answer, add one final line starting with "SUMMARY: " that
restates your answer in a single sentence.`, question)
}

// ExtractSummary pulls the one-line summary out of a Stage-1 response:
// the first "SUMMARY:" line if the agent honored the prompt, otherwise the
// first non-empty line clipped to 200 runes.
func ExtractSummary(response string) string {
	var firstLine string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(trimmed, "SUMMARY:"); ok {
			return strings.TrimSpace(rest)
		}
		if firstLine == "" {
			firstLine = trimmed
		}
	}

	runes := []rune(firstLine)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return firstLine
}

// Stage2 returns the peer-ranking prompt. Stage-1 responses are embedded
// under anonymized positional labels so evaluators cannot play favorites.
func Stage2(question string, stage1 []models.Stage1Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Several anonymous assistants answered the question below. Evaluate every
response for accuracy, completeness, and clarity, then rank them from best
to worst.

Question:
%s

`, question)

	for i, res := range stage1 {
		fmt.Fprintf(&b, "%s:\n%s\n\n", LabelForIndex(i), res.Response)
	}

	fmt.Fprintf(&b, `After your evaluation, end with a line containing exactly "%s"
followed by a numbered list, for example:

%s
1. Response B
2. Response A
`, ranking.Marker, ranking.Marker)

	return b.String()
}

// Chairman returns the single-pass synthesis prompt for compete mode.
// Stage-2 aggregate rankings are included when present; useSummaries swaps
// full response text for the extracted summaries.
func Chairman(question string, stage1 []models.Stage1Result, aggregate []models.AggregateRanking, useSummaries bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are the chairman of a council of assistants. Synthesize their answers
into one final, authoritative answer.

Question:
%s

Council answers:

`, question)

	writeStage1(&b, stage1, useSummaries)

	if len(aggregate) > 0 {
		b.WriteString("Peer ranking (lower average rank is better):\n")
		for _, ar := range aggregate {
			fmt.Fprintf(&b, "- %s: average rank %.2f over %d rankings\n", ar.Agent, ar.AverageRank, ar.RankingsCount)
		}
		b.WriteString("\n")
	}

	b.WriteString("Produce the single best final answer. Resolve disagreements explicitly.\n")
	return b.String()
}

// Merge returns the single-pass prompt for merge mode: synthesize from all
// responses directly, with no ranking and no winner.
func Merge(question string, stage1 []models.Stage1Result, useSummaries bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are merging several assistants' answers to the question below into one
unified answer. Merge overlapping content, deduplicate, flag conflicts
between the answers, and call out coverage gaps none of them addressed.

Question:
%s

Answers to merge:

`, question)

	writeStage1(&b, stage1, useSummaries)
	b.WriteString("Produce the merged answer.\n")
	return b.String()
}

// TwoPassSynthesis returns the pass-1 prompt. The chairman must respond in
// the sectioned format so truncation is detectable per section.
func TwoPassSynthesis(question string, stage1 []models.Stage1Result, aggregate []models.AggregateRanking, useSummaries bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are the chairman of a council of assistants. This is pass 1 of a
two-pass synthesis for the question below.

Question:
%s

Council answers:

`, question)

	writeStage1(&b, stage1, useSummaries)

	if len(aggregate) > 0 {
		b.WriteString("Peer ranking (lower average rank is better):\n")
		for _, ar := range aggregate {
			fmt.Fprintf(&b, "- %s: average rank %.2f over %d rankings\n", ar.Agent, ar.AverageRank, ar.RankingsCount)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `Respond with exactly these sections, each wrapped in delimiters like
%s:

- %s: a concise executive summary of the synthesized answer
- %s: decisions that need a human call, with options
- %s: points where the council agrees
- %s: ordered implementation phases
- %s: a JSON object mapping section names (matching [A-Za-z0-9_]+) to a
  one-paragraph outline of what the full section should cover

Example delimiters:
%s
...
===END:%s===
`,
		"===SECTION:name=== ... ===END:name===",
		SectionExecutiveSummary,
		SectionAmbiguities,
		SectionConsensus,
		SectionImplementationPhases,
		SectionOutlines,
		"===SECTION:"+SectionExecutiveSummary+"===",
		SectionExecutiveSummary,
	)

	return b.String()
}

// TwoPassDetail returns the pass-2 prompt, expanding every outlined
// section into its full form.
func TwoPassDetail(question string, outlines map[string]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `This is pass 2 of a two-pass synthesis for the question below. Pass 1
produced section outlines; expand every outline into a complete, detailed
section.

Question:
%s

Outlined sections:

`, question)

	for _, name := range sortedKeys(outlines) {
		fmt.Fprintf(&b, "%s:\n%s\n\n", name, outlines[name])
	}

	b.WriteString(`Write each section in full, wrapped in its own delimiters:

===SECTION:<name>===
...full section content...
===END:<name>===

Use exactly the section names listed above.
`)

	return b.String()
}

// MergeRefine returns the merge-mode pass-2 prompt: refine pass 1's merged
// draft with the original responses available as reference.
func MergeRefine(question, draft string, stage1 []models.Stage1Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, `This is pass 2 of a merge synthesis. Refine the merged draft below:
resolve its flagged conflicts where possible, fill coverage gaps, and
polish the result into the final answer.

Question:
%s

Merged draft:
%s

Original answers for reference:

`, question, draft)

	for _, res := range stage1 {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", res.Agent, res.Response)
	}

	b.WriteString("Produce the refined final answer.\n")
	return b.String()
}

func writeStage1(b *strings.Builder, stage1 []models.Stage1Result, useSummaries bool) {
	for i, res := range stage1 {
		body := res.Response
		if useSummaries && res.Summary != "" {
			body = res.Summary
		}
		fmt.Fprintf(b, "%s (%s):\n%s\n\n", LabelForIndex(i), res.Agent, body)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
