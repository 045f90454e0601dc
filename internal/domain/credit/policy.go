package credit

import "math"

// PolicyKind selects how a credit type treats the monthly allocation.
type PolicyKind int

const (
	// PolicyReset discards the prior balance and replaces it with the
	// monthly amount.
	PolicyReset PolicyKind = iota

	// PolicyRollover adds the monthly amount on top of the prior balance,
	// up to CapBlocks.
	PolicyRollover
)

// Policy is the allocation behavior of one credit type, resolved once at
// configuration time rather than branched on per call.
type Policy struct {
	Kind      PolicyKind
	CapBlocks int // rollover cap in blocks; 0 means uncapped
}

// Policies maps each credit type to its policy.
type Policies map[Type]Policy

// MonthlyDelta computes the signed balance change a monthly allocation of
// `amount` blocks produces on a balance of `current` blocks, plus whether
// the rollover cap truncated the grant.
func (p Policy) MonthlyDelta(current, amount int) (delta int, capped bool) {
	switch p.Kind {
	case PolicyReset:
		return amount - current, false
	case PolicyRollover:
		if p.CapBlocks <= 0 {
			return amount, false
		}
		headroom := p.CapBlocks - current
		if headroom < 0 {
			headroom = 0
		}
		if amount > headroom {
			return headroom, true
		}
		return amount, false
	}
	return 0, false
}

// Source returns the audit source for this policy's monthly allocation.
func (p Policy) Source() Source {
	if p.Kind == PolicyReset {
		return SourceMonthlyReset
	}
	return SourceMonthlyAllocation
}

// HoursToBlocks converts fractional hours into whole blocks, rounding up so
// the grantee never receives more time than was reserved in blocks.
func HoursToBlocks(hours float64, blockMinutes int) int {
	if hours <= 0 || blockMinutes <= 0 {
		return 0
	}
	return int(math.Ceil(hours * 60 / float64(blockMinutes)))
}

// BlocksToHours converts whole blocks into fractional hours, exactly.
func BlocksToHours(blocks, blockMinutes int) float64 {
	if blocks <= 0 || blockMinutes <= 0 {
		return 0
	}
	return float64(blocks) * float64(blockMinutes) / 60
}
