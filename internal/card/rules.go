package card

import (
	"errors"
	"fmt"

	domerrors "github.com/garyellow/cardbot/internal/errors"
)

// KeywordRule routes text containing Pattern (case-insensitive substring) to
// the catalog entry at Index. Ack, when set, is sent before the card.
type KeywordRule struct {
	Pattern string
	Index   int
	Ack     string
}

// DefaultRules returns the demo routing table in priority order.
// Patterns match as raw substrings, so "form" also matches "information".
func DefaultRules() []KeywordRule {
	return []KeywordRule{
		{Pattern: "weather", Index: 2},
		{Pattern: "flight", Index: 3},
		{Pattern: "demo", Index: 4},
		{Pattern: "Form", Index: 6},
		{Pattern: "Food", Index: 5},
	}
}

// ValidateRules checks every rule against a catalog of the given size.
func ValidateRules(rules []KeywordRule, size int) error {
	if size <= 0 {
		return domerrors.NewConfigError("catalog", "must contain at least one payload")
	}

	var errs []error
	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.Pattern == "" {
			errs = append(errs, domerrors.NewConfigError(field, "pattern must not be empty"))
		}
		if r.Index < 0 || r.Index >= size {
			errs = append(errs, domerrors.NewConfigError(field,
				fmt.Sprintf("index %d outside catalog of %d", r.Index, size)))
		}
	}
	return errors.Join(errs...)
}
