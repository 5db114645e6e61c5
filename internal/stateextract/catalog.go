// Package stateextract implements the state extractor: a pure rules
// engine, `(text, catalog) → []Candidate`, with no I/O. The catalog is a
// static pattern list; fuzzy-matching candidates against existing graph
// State nodes is a separate concern handled by graphstore.Graph.UpsertState,
// which the cold-path Semantic Manager calls once per candidate.
package stateextract

import (
	"regexp"
	"strings"

	"vicw/internal/graphstore"
)

// Candidate is one extraction hit, ready to be upserted into the graph.
type Candidate struct {
	StateType   graphstore.StateType
	Status      graphstore.StateStatus
	Description string
}

// pattern pairs a regex whose last capture group is the description with
// the (type, status) it emits on a match.
type pattern struct {
	re        *regexp.Regexp
	stateType graphstore.StateType
	status    graphstore.StateStatus
}

// DefaultCatalog is the static pattern set: affirmative intent → active
// goal/task, arrival/done/merged phrasing → completed, decision verbs →
// active decision, and a declarative-assertion fallback → active fact.
var DefaultCatalog = []pattern{
	// Affirmative goal/task patterns.
	{regexp.MustCompile(`(?i)^let'?s\s+(.+?)[.!?]?$`), graphstore.StateGoal, graphstore.StatusActive},
	{regexp.MustCompile(`(?i)^we\s+need\s+to\s+(.+?)[.!?]?$`), graphstore.StateTask, graphstore.StatusActive},
	{regexp.MustCompile(`(?i)^i\s+will\s+(.+?)[.!?]?$`), graphstore.StateTask, graphstore.StatusActive},
	{regexp.MustCompile(`(?i)^we\s+should\s+(.+?)[.!?]?$`), graphstore.StateTask, graphstore.StatusActive},

	// Completion patterns.
	{regexp.MustCompile(`(?i)^we\s+arrived\s+at\s+(.+?)[.!?]?$`), graphstore.StateGoal, graphstore.StatusCompleted},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+done[.!?]?$`), graphstore.StateTask, graphstore.StatusCompleted},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+merged[.!?]?$`), graphstore.StateTask, graphstore.StatusCompleted},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+complete[.!?]?$`), graphstore.StateTask, graphstore.StatusCompleted},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+finished[.!?]?$`), graphstore.StateTask, graphstore.StatusCompleted},

	// Decisions.
	{regexp.MustCompile(`(?i)^we\s+decided\s+(?:to\s+)?(.+?)[.!?]?$`), graphstore.StateDecision, graphstore.StatusActive},
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+chosen[.!?]?$`), graphstore.StateDecision, graphstore.StatusActive},
	{regexp.MustCompile(`(?i)^we'?ll\s+go\s+with\s+(.+?)[.!?]?$`), graphstore.StateDecision, graphstore.StatusActive},

	// Facts: a declarative assertion fallback, applied last.
	{regexp.MustCompile(`(?i)^(.+?)\s+is\s+(.+?)[.!?]?$`), graphstore.StateFact, graphstore.StatusActive},
}

// Extract runs the catalog over full_text, splitting it into sentences and
// evaluating each against every pattern in order; the first pattern that
// matches a sentence wins (so goal/task/decision patterns, listed first,
// take priority over the generic fact fallback). Pure function: no I/O, no
// shared mutable state.
func Extract(fullText string, catalog []pattern) []Candidate {
	var out []Candidate
	for _, sentence := range splitSentences(fullText) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		for _, p := range catalog {
			m := p.re.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			desc := m[len(m)-1]
			if strings.TrimSpace(desc) == "" {
				continue
			}
			out = append(out, Candidate{StateType: p.stateType, Status: p.status, Description: desc})
			break
		}
	}
	return out
}

func splitSentences(text string) []string {
	replacer := strings.NewReplacer("\n", ". ")
	text = replacer.Replace(text)
	raw := regexp.MustCompile(`(?:[.!?]+|\n)`).Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
