// Package match ranks dropdown candidates against a requested value.
//
// Candidates are compared after textnorm.Normalize using four tiers, strongest
// first: exact equality, candidate text containing the value, value containing
// the candidate text, and equality of the first PrefixLength runes. A single pass
// keeps the best tier seen so far; among candidates of the same tier the one with
// the lowest position wins.
package match

import (
	"strings"

	"tbreport/textnorm"
)

// PrefixLength is how many runes the prefix tier compares.
const PrefixLength = 30

// Kind is the strength of a match.
type Kind int

const (
	None Kind = iota
	Prefix
	ValueContainsText
	TextContainsValue
	Exact
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case TextContainsValue:
		return "text-contains-value"
	case ValueContainsText:
		return "value-contains-text"
	case Prefix:
		return "prefix"
	default:
		return "none"
	}
}

// MarshalText lets Kind appear by name in JSON results.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// OptionCandidate is one rendered option observed during a poll.
type OptionCandidate struct {
	Text    string `json:"text"`
	Index   int    `json:"index"`
	Visible bool   `json:"visible"`
}

// IsVisible reports the layout visibility computed at poll time.
func (c OptionCandidate) IsVisible() bool { return c.Visible }

// Result is the outcome of Match. Candidate is only meaningful when Kind is not None.
type Result struct {
	Kind       Kind              `json:"kind"`
	Candidate  OptionCandidate   `json:"candidate"`
	Candidates []OptionCandidate `json:"candidates,omitempty"`
}

// Found reports whether any tier matched.
func (r Result) Found() bool { return r.Kind != None }

// Match returns the strongest match for target among candidates.
// An empty target never matches. A None result carries every candidate.
func Match(candidates []OptionCandidate, target string) Result {
	want := textnorm.Normalize(target)
	if want == "" {
		return Result{Kind: None, Candidates: candidates}
	}

	best := Result{Kind: None}
	for _, c := range candidates {
		got := textnorm.Normalize(c.Text)
		if got == "" {
			continue
		}
		k := classify(got, want)
		if k > best.Kind {
			best = Result{Kind: k, Candidate: c}
			if k == Exact {
				break
			}
		}
	}
	if best.Kind == None {
		best.Candidates = candidates
	}
	return best
}

// Classify reports the tier between one candidate text and a target.
func Classify(text, target string) Kind {
	got, want := textnorm.Normalize(text), textnorm.Normalize(target)
	if got == "" || want == "" {
		return None
	}
	return classify(got, want)
}

func classify(got, want string) Kind {
	switch {
	case got == want:
		return Exact
	case strings.Contains(got, want):
		return TextContainsValue
	case strings.Contains(want, got):
		return ValueContainsText
	case textnorm.Prefix(got, PrefixLength) == textnorm.Prefix(want, PrefixLength):
		return Prefix
	default:
		return None
	}
}

// Texts lists the candidate texts in order, for diagnostics.
func Texts(candidates []OptionCandidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Text)
	}
	return out
}
