// Package semantic implements the cold-path pipeline that turns one offload
// job into durable chunk/vector/graph records and extracted state.
package semantic

import (
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

// ExtractiveSummary takes the first leadN and last tailN sentences of text,
// joined, and truncates to maxTokens using estimate as the measuring stick.
// Deterministic and CPU-bound, so it never blocks on external services.
func ExtractiveSummary(text string, leadN, tailN, maxTokens int, estimate func(string) int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	var picked []string
	if len(sentences) <= leadN+tailN {
		picked = sentences
	} else {
		picked = append(picked, sentences[:leadN]...)
		picked = append(picked, sentences[len(sentences)-tailN:]...)
	}

	summary := strings.Join(picked, " ")
	return truncateToTokens(summary, maxTokens, estimate)
}

func splitSentences(text string) []string {
	raw := sentenceSplitter.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func truncateToTokens(s string, maxTokens int, estimate func(string) int) string {
	if maxTokens <= 0 || estimate(s) <= maxTokens {
		return s
	}
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if estimate(s[:mid]) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return s[:lo]
}
