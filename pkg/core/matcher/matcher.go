// Package matcher decides whether an extracted catalog name denotes an existing entry.
package matcher

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultThreshold is the minimum similarity ratio accepted as the same entry.
const DefaultThreshold = 0.85

// Decision is the outcome of a match: either no match, or the single best
// existing identity with the ratio that selected it.
type Decision struct {
	Matched   bool    `json:"matched"`
	Identity  string  `json:"identity,omitempty"`
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
}

func (d Decision) String() string {
	if !d.Matched {
		return "NoMatch"
	}
	return fmt.Sprintf("Match(%q, %.2f)", d.Identity, d.Score)
}

// Matcher compares raw identity strings; no normalization is applied.
type Matcher struct {
	Threshold float64
}

// New returns a matcher; a non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Match returns the best-scoring existing identity when its ratio reaches the
// threshold. Ties keep the first entry in existing order. An empty candidate
// never matches.
func (m *Matcher) Match(candidate string, existing []string) Decision {
	d := Decision{Candidate: candidate}
	if candidate == "" {
		return d
	}

	best, bestScore := -1, -1.0
	for i, id := range existing {
		score := Ratio(candidate, id)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return d
	}

	d.Score = bestScore
	if bestScore >= m.Threshold {
		d.Matched = true
		d.Identity = existing[best]
	}
	return d
}

// Ratio is the sequence similarity 2*M/T, where M is the number of runes in the
// common subsequence found by a character diff and T the total rune count.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	matched := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	return 2.0 * float64(matched) / float64(total)
}
