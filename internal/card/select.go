package card

import (
	"strings"

	domerrors "github.com/garyellow/cardbot/internal/errors"
	"golang.org/x/text/cases"
)

// Selection is the outcome of Select.
type Selection struct {
	Index   int
	Matched bool        // a keyword rule fired
	Rule    KeywordRule // zero unless Matched
}

// Source labels the selection for metrics: the matched pattern or "random".
func (s Selection) Source() string {
	if s.Matched {
		return s.Rule.Pattern
	}
	return "random"
}

// Select returns the first rule whose pattern occurs in text, ignoring case.
// Without a match it draws a uniform index in [0, size) from rnd; rnd is not
// consulted when a rule matches. Empty text never matches.
func Select(text string, rules []KeywordRule, size int, rnd RandomSource) (Selection, error) {
	if size <= 0 {
		return Selection{}, domerrors.NewConfigError("catalog", "must contain at least one payload")
	}

	if text != "" {
		folded := cases.Fold().String(text)
		for _, r := range rules {
			if r.Pattern == "" {
				continue
			}
			if strings.Contains(folded, cases.Fold().String(r.Pattern)) {
				return Selection{Index: r.Index, Matched: true, Rule: r}, nil
			}
		}
	}

	if rnd == nil {
		rnd = NewRandomSource()
	}
	return Selection{Index: rnd.IntN(size)}, nil
}
