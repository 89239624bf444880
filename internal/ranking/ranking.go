// Package ranking parses free-text peer rankings and computes per-agent
// average ranks. Evaluator output is untrusted model text, so parsing is
// tolerant: it degrades from the reserved marker to bare label scanning and
// never fails on malformed input.
package ranking

import (
	"math"
	"regexp"
	"sort"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Marker is the reserved line that introduces an evaluator's ranking.
const Marker = "FINAL RANKING:"

var (
	markerRe = regexp.MustCompile(`(?m)^FINAL RANKING:[ \t]*$`)
	// Numbered-list entries such as "1. Response B" or "2) **Response A**".
	numberedRe = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]*\**(Response [A-Z])\b`)
	bareRe     = regexp.MustCompile(`\b(Response [A-Z])\b`)
)

// ParseRanking extracts an ordered list of anonymized labels from an
// evaluator's ranking text, best first. Lookup order:
//  1. labels in a numbered list after the FINAL RANKING: marker line
//  2. any bare label occurrences after the marker
//  3. with no marker, any bare label occurrences anywhere
//
// Duplicate labels keep their first position. Returns an empty list when
// nothing matches; never fails.
func ParseRanking(text string) []string {
	if loc := markerRe.FindStringIndex(text); loc != nil {
		after := text[loc[1]:]
		if labels := extract(numberedRe, after); len(labels) > 0 {
			return labels
		}
		return extract(bareRe, after)
	}
	return extract(bareRe, text)
}

func extract(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		label := m[1]
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

// Aggregate computes each agent's average rank across all evaluators.
// The label at position i (1-indexed) in a parsed ranking contributes rank
// i to the agent it maps to; labels absent from labelToAgent are dropped,
// which tolerates evaluators inventing unknown labels. Agents never ranked
// are absent from the result. The result is sorted by ascending average
// rank (lower is better), with agent name as the tie-breaker.
func Aggregate(stage2 []models.Stage2Result, labelToAgent map[string]string) []models.AggregateRanking {
	ranks := make(map[string][]int)
	for _, res := range stage2 {
		for i, label := range res.ParsedRanking {
			agent, ok := labelToAgent[label]
			if !ok {
				continue
			}
			ranks[agent] = append(ranks[agent], i+1)
		}
	}

	out := make([]models.AggregateRanking, 0, len(ranks))
	for agent, rs := range ranks {
		sum := 0
		for _, r := range rs {
			sum += r
		}
		avg := float64(sum) / float64(len(rs))
		out = append(out, models.AggregateRanking{
			Agent:         agent,
			AverageRank:   math.Round(avg*100) / 100,
			RankingsCount: len(rs),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRank != out[j].AverageRank {
			return out[i].AverageRank < out[j].AverageRank
		}
		return out[i].Agent < out[j].Agent
	})
	return out
}
