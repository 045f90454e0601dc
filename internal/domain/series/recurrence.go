package series

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Expander enumerates the occurrence instants of a recurrence rule.
// Implementations must return instants in ascending order.
type Expander interface {
	Expand(rule string, anchor, from, until time.Time) ([]time.Time, error)
}

// RuleExpander expands RFC 5545 recurrence rules.
type RuleExpander struct{}

// Expand returns every occurrence of rule anchored at anchor that falls in
// [from, until], ascending. The anchor itself is an occurrence when the
// rule generates it.
func (RuleExpander) Expand(rule string, anchor, from, until time.Time) ([]time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	opt.Dtstart = anchor

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	return r.Between(from, until, true), nil
}

// ValidateRule reports whether a recurrence rule parses.
func ValidateRule(rule string) error {
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}
