package graphstore

import (
	"sort"
	"strings"
)

var articles = map[string]bool{"a": true, "an": true, "the": true}

// fillerWords are the verbs, pronouns, copulas, and prepositions the
// catalog's phrasing wraps around a state's actual subject. "go to the
// hydro-plant" and "we arrived at the hydro-plant" both describe the same
// goal once these are stripped away, leaving "hydro-plant" on both sides.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"i": true, "we": true, "you": true, "it": true, "they": true, "we'll": true, "we'd": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "at": true, "for": true, "with": true, "on": true, "in": true, "of": true,
	"go": true, "going": true, "went": true, "let's": true, "lets": true,
	"arrive": true, "arrived": true, "arriving": true,
	"will": true, "should": true, "need": true, "needs": true, "needed": true,
	"decide": true, "decided": true, "chosen": true, "choose": true,
	"done": true, "merged": true, "complete": true, "completed": true, "finished": true,
}

// coreTokens reduces a description to the content words that identify the
// state itself, discarding fillerWords and folding a trailing "ed" on
// words longer than four letters ("deployed" → "deploy"). Two descriptions
// whose core tokens match exactly describe the same state regardless of
// which catalog pattern phrased the sentence.
func coreTokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,!?")
		if f == "" || fillerWords[f] {
			continue
		}
		if len(f) > 4 {
			f = strings.TrimSuffix(f, "ed")
		}
		out[f] = true
	}
	return out
}

func sameTokenSet(a, b map[string]bool) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for tok := range a {
		if !b[tok] {
			return false
		}
	}
	return true
}

// Normalize lowercases, trims, and strips leading articles the way the
// state extractor's description normalization requires. It is exported so
// the state extractor and the graph store apply the exact same transform.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	fields := strings.Fields(s)
	out := fields[:0]
	for i, f := range fields {
		if i == 0 && articles[strings.Trim(f, ".,!?")] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// FuzzyEqual reports whether two normalized descriptions refer to the same
// state. It first checks whether their content tokens (stripped of filler
// verbs/prepositions) match exactly, then falls back to Levenshtein
// distance ≤2 or token-set ratio ≥0.85 — whichever is more forgiving for the
// given pair, since short descriptions make edit distance noisy and long
// ones make token overlap noisy.
func FuzzyEqual(a, b string) bool {
	if a == b {
		return true
	}
	if sameTokenSet(coreTokens(a), coreTokens(b)) {
		return true
	}
	if levenshtein(a, b) <= 2 {
		return true
	}
	return tokenSetRatio(a, b) >= 0.85
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// tokenSetRatio approximates Python's fuzzywuzzy token_set_ratio: compare the
// intersection of word sets against the union, which is robust to word
// reordering and duplicated/extra tokens.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	sort.Strings(fields)
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}
