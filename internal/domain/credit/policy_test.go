package credit_test

import (
	"testing"

	"github.com/bandroom/bandroom-api/internal/domain/credit"
)

func TestMonthlyDeltaReset(t *testing.T) {
	policy := credit.Policy{Kind: credit.PolicyReset}

	tests := []struct {
		name            string
		current, amount int
		wantDelta       int
	}{
		{"empty balance", 0, 4, 4},
		{"partial leftover", 2, 4, 2},
		{"full leftover", 4, 4, 0},
		{"over allowance shrinks", 6, 4, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, capped := policy.MonthlyDelta(tt.current, tt.amount)
			if delta != tt.wantDelta {
				t.Errorf("delta = %d, want %d", delta, tt.wantDelta)
			}
			if capped {
				t.Error("reset policy reported a cap")
			}
			// A reset always lands exactly on the allowance.
			if tt.current+delta != tt.amount {
				t.Errorf("balance after reset = %d, want %d", tt.current+delta, tt.amount)
			}
		})
	}
}

func TestMonthlyDeltaRollover(t *testing.T) {
	policy := credit.Policy{Kind: credit.PolicyRollover, CapBlocks: 20}

	tests := []struct {
		name            string
		current, amount int
		wantDelta       int
		wantCapped      bool
	}{
		{"plenty of headroom", 5, 5, 5, false},
		{"exactly to cap", 15, 5, 5, false},
		{"truncated by cap", 18, 5, 2, true},
		{"already at cap", 20, 5, 0, true},
		{"above cap grants nothing", 25, 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, capped := policy.MonthlyDelta(tt.current, tt.amount)
			if delta != tt.wantDelta {
				t.Errorf("delta = %d, want %d", delta, tt.wantDelta)
			}
			if capped != tt.wantCapped {
				t.Errorf("capped = %v, want %v", capped, tt.wantCapped)
			}
		})
	}
}

func TestMonthlyDeltaRolloverUncapped(t *testing.T) {
	policy := credit.Policy{Kind: credit.PolicyRollover}

	delta, capped := policy.MonthlyDelta(100, 5)
	if delta != 5 || capped {
		t.Errorf("uncapped rollover: delta = %d capped = %v, want 5 and false", delta, capped)
	}
}

func TestPolicySource(t *testing.T) {
	if got := (credit.Policy{Kind: credit.PolicyReset}).Source(); got != credit.SourceMonthlyReset {
		t.Errorf("reset source = %s", got)
	}
	if got := (credit.Policy{Kind: credit.PolicyRollover}).Source(); got != credit.SourceMonthlyAllocation {
		t.Errorf("rollover source = %s", got)
	}
}

func TestHoursToBlocks(t *testing.T) {
	tests := []struct {
		hours        float64
		blockMinutes int
		want         int
	}{
		{1, 30, 2},
		{2.5, 30, 5},
		{1.25, 30, 3}, // partial blocks round up
		{0.01, 30, 1},
		{0, 30, 0},
		{-1, 30, 0},
		{3, 60, 3},
	}

	for _, tt := range tests {
		if got := credit.HoursToBlocks(tt.hours, tt.blockMinutes); got != tt.want {
			t.Errorf("HoursToBlocks(%v, %d) = %d, want %d", tt.hours, tt.blockMinutes, got, tt.want)
		}
	}
}

func TestBlocksToHours(t *testing.T) {
	if got := credit.BlocksToHours(5, 30); got != 2.5 {
		t.Errorf("BlocksToHours(5, 30) = %v, want 2.5", got)
	}
	if got := credit.BlocksToHours(0, 30); got != 0 {
		t.Errorf("BlocksToHours(0, 30) = %v, want 0", got)
	}
}
