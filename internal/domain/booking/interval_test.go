package booking_test

import (
	"testing"
	"time"

	"github.com/bandroom/bandroom-api/internal/domain/booking"
)

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, 6, 3, hour, minute, 0, 0, time.UTC)
}

func iv(t *testing.T, startHour, startMin, endHour, endMin int) booking.Interval {
	t.Helper()
	return booking.Interval{Start: at(t, startHour, startMin), End: at(t, endHour, endMin)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b booking.Interval
		want bool
	}{
		{"disjoint", iv(t, 9, 0, 10, 0), iv(t, 11, 0, 12, 0), false},
		{"back to back", iv(t, 9, 0, 12, 0), iv(t, 12, 0, 14, 0), false},
		{"partial", iv(t, 9, 0, 11, 0), iv(t, 10, 0, 12, 0), true},
		{"contained", iv(t, 9, 0, 18, 0), iv(t, 10, 0, 11, 0), true},
		{"identical", iv(t, 9, 0, 11, 0), iv(t, 9, 0, 11, 0), true},
		{"one minute overlap", iv(t, 9, 0, 11, 1), iv(t, 11, 0, 12, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// The predicate is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreeGapsEmptyDay(t *testing.T) {
	bounds := iv(t, 9, 0, 22, 0)

	gaps := booking.FreeGaps(bounds, nil, time.Hour)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if gaps[0] != bounds {
		t.Errorf("expected full-day gap %v, got %v", bounds, gaps[0])
	}
}

func TestFreeGapsBetweenBookings(t *testing.T) {
	bounds := iv(t, 9, 0, 22, 0)
	occupied := []booking.Interval{
		iv(t, 10, 0, 12, 0),
		iv(t, 15, 0, 18, 0),
	}

	gaps := booking.FreeGaps(bounds, occupied, time.Hour)
	want := []booking.Interval{
		iv(t, 9, 0, 10, 0),
		iv(t, 12, 0, 15, 0),
		iv(t, 18, 0, 22, 0),
	}
	if len(gaps) != len(want) {
		t.Fatalf("expected %d gaps, got %d: %v", len(want), len(gaps), gaps)
	}
	for i := range want {
		if gaps[i] != want[i] {
			t.Errorf("gap %d = %v, want %v", i, gaps[i], want[i])
		}
	}
}

func TestFreeGapsMergesOverlappingOccupied(t *testing.T) {
	bounds := iv(t, 9, 0, 22, 0)
	// Unsorted and mutually overlapping on purpose.
	occupied := []booking.Interval{
		iv(t, 13, 0, 16, 0),
		iv(t, 10, 0, 14, 0),
	}

	gaps := booking.FreeGaps(bounds, occupied, time.Hour)
	want := []booking.Interval{
		iv(t, 9, 0, 10, 0),
		iv(t, 16, 0, 22, 0),
	}
	if len(gaps) != len(want) {
		t.Fatalf("expected %d gaps, got %d: %v", len(want), len(gaps), gaps)
	}
	for i := range want {
		if gaps[i] != want[i] {
			t.Errorf("gap %d = %v, want %v", i, gaps[i], want[i])
		}
	}
}

func TestFreeGapsMinDurationFilter(t *testing.T) {
	bounds := iv(t, 9, 0, 22, 0)
	occupied := []booking.Interval{
		iv(t, 9, 30, 12, 0),  // leaves a 30-minute gap at open
		iv(t, 12, 45, 22, 0), // leaves a 45-minute gap after noon
	}

	gaps := booking.FreeGaps(bounds, occupied, time.Hour)
	if len(gaps) != 0 {
		t.Errorf("expected no gaps of at least an hour, got %v", gaps)
	}

	gaps = booking.FreeGaps(bounds, occupied, 45*time.Minute)
	if len(gaps) != 1 || gaps[0] != iv(t, 12, 0, 12, 45) {
		t.Errorf("expected only the 45-minute gap, got %v", gaps)
	}
}

func TestFreeGapsClampsToBounds(t *testing.T) {
	bounds := iv(t, 9, 0, 22, 0)
	occupied := []booking.Interval{
		iv(t, 8, 0, 10, 0),  // starts before opening
		iv(t, 21, 0, 23, 0), // ends after closing
	}

	gaps := booking.FreeGaps(bounds, occupied, time.Hour)
	want := iv(t, 10, 0, 21, 0)
	if len(gaps) != 1 || gaps[0] != want {
		t.Errorf("expected single gap %v, got %v", want, gaps)
	}
}
