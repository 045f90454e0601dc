package booking_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/bandroom/bandroom-api/internal/domain/booking"
	"github.com/bandroom/bandroom-api/internal/domain/credit"
	"github.com/bandroom/bandroom-api/internal/domain/production"
)

type fakeReservations struct {
	items []booking.Reservation
}

func (f *fakeReservations) ListActiveBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]booking.Reservation, error) {
	window := booking.Interval{Start: from, End: to}
	out := make([]booking.Reservation, 0)
	for _, r := range f.items {
		if r.ID == exclude || r.IsCancelled() {
			continue
		}
		if window.Overlaps(r.Interval()) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeProductions struct {
	items []production.Production
}

func (f *fakeProductions) ListOccupyingBetween(ctx context.Context, from, to time.Time, exclude uuid.UUID) ([]production.Production, error) {
	window := booking.Interval{Start: from, End: to}
	out := make([]production.Production, 0)
	for _, p := range f.items {
		if p.ID == exclude || !p.OccupiesSpace() {
			continue
		}
		if window.Overlaps(booking.Interval{Start: p.StartsAt, End: p.EndsAt}) {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeLedger holds in-memory balances; the transactional methods are never
// reached by the validation and pricing paths under test.
type fakeLedger struct {
	balances     map[credit.Type]int
	blockMinutes int
}

func (f *fakeLedger) EnsureMonthly(ctx context.Context, ownerID uuid.UUID) error { return nil }

func (f *fakeLedger) GetBalance(ctx context.Context, ownerID uuid.UUID, creditType credit.Type) (int, error) {
	return f.balances[creditType], nil
}

func (f *fakeLedger) SpendTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source credit.Source, creditType credit.Type, sourceID *string) (*credit.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) GrantTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source credit.Source, creditType credit.Type, sourceID *string, description string) (*credit.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) HoursToBlocks(hours float64) int {
	return credit.HoursToBlocks(hours, f.blockMinutes)
}

func (f *fakeLedger) BlocksToHours(blocks int) float64 {
	return credit.BlocksToHours(blocks, f.blockMinutes)
}

func testRules() booking.Rules {
	return booking.Rules{
		OpeningHour: 9,
		ClosingHour: 22,
		MinDuration: time.Hour,
		MaxDuration: 8 * time.Hour,
		HourlyRate:  decimal.NewFromInt(15),
	}
}

func newTestService(reservations *fakeReservations, productions *fakeProductions, ledger *fakeLedger) *booking.Service {
	if reservations == nil {
		reservations = &fakeReservations{}
	}
	if productions == nil {
		productions = &fakeProductions{}
	}
	if ledger == nil {
		ledger = &fakeLedger{balances: map[credit.Type]int{}, blockMinutes: 30}
	}
	svc := booking.NewService(nil, booking.NewDetector(reservations, productions), ledger, testRules(), nil, nil)
	svc.SetClock(func() time.Time {
		return time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	})
	return svc
}

func reasonsOf(t *testing.T, err error) []string {
	t.Helper()
	ve, ok := booking.IsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	return ve.Reasons
}

func requireReason(t *testing.T, reasons []string, fragment string) {
	t.Helper()
	for _, r := range reasons {
		if strings.Contains(r, fragment) {
			return
		}
	}
	t.Errorf("no reason containing %q in %v", fragment, reasons)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	existing := booking.Reservation{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		ReservedAt:    at(t, 7, 0),
		ReservedUntil: at(t, 8, 0),
		Status:        booking.StatusConfirmed,
	}
	svc := newTestService(&fakeReservations{items: []booking.Reservation{existing}}, nil, nil)

	// In the past, too short, before opening and colliding, all at once.
	err := svc.Validate(context.Background(), iv(t, 7, 0, 7, 30), uuid.Nil)
	reasons := reasonsOf(t, err)

	requireReason(t, reasons, "future")
	requireReason(t, reasons, "at least")
	requireReason(t, reasons, "operating hours")
	requireReason(t, reasons, "conflicts with")
	if len(reasons) != 4 {
		t.Errorf("expected 4 reasons, got %d: %v", len(reasons), reasons)
	}
}

func TestValidateDegenerateInterval(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	err := svc.Validate(context.Background(), iv(t, 14, 0, 14, 0), uuid.Nil)
	reasons := reasonsOf(t, err)
	requireReason(t, reasons, "after start")
}

func TestValidateBackToBackAllowed(t *testing.T) {
	existing := booking.Reservation{
		ID:            uuid.New(),
		ReservedAt:    at(t, 10, 0),
		ReservedUntil: at(t, 12, 0),
		Status:        booking.StatusConfirmed,
	}
	svc := newTestService(&fakeReservations{items: []booking.Reservation{existing}}, nil, nil)

	if err := svc.Validate(context.Background(), iv(t, 12, 0, 14, 0), uuid.Nil); err != nil {
		t.Errorf("back-to-back booking rejected: %v", err)
	}
}

func TestValidateCancelledDoesNotConflict(t *testing.T) {
	cancelled := booking.Reservation{
		ID:            uuid.New(),
		ReservedAt:    at(t, 10, 0),
		ReservedUntil: at(t, 12, 0),
		Status:        booking.StatusCancelled,
	}
	svc := newTestService(&fakeReservations{items: []booking.Reservation{cancelled}}, nil, nil)

	if err := svc.Validate(context.Background(), iv(t, 10, 0, 12, 0), uuid.Nil); err != nil {
		t.Errorf("cancelled reservation still blocks the slot: %v", err)
	}
}

func TestValidateEndAtClosingAllowed(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	if err := svc.Validate(context.Background(), iv(t, 20, 0, 22, 0), uuid.Nil); err != nil {
		t.Errorf("booking ending exactly at closing rejected: %v", err)
	}

	err := svc.Validate(context.Background(), iv(t, 21, 0, 22, 30), uuid.Nil)
	requireReason(t, reasonsOf(t, err), "operating hours")
}

func TestValidateProductionBlocksSpace(t *testing.T) {
	show := production.Production{
		ID:       uuid.New(),
		OwnerID:  uuid.New(),
		Title:    "Dress rehearsal",
		StartsAt: at(t, 14, 0),
		EndsAt:   at(t, 18, 0),
	}
	external := production.Production{
		ID:              uuid.New(),
		Title:           "Away show",
		IsExternalVenue: true,
		StartsAt:        at(t, 10, 0),
		EndsAt:          at(t, 12, 0),
	}
	svc := newTestService(nil, &fakeProductions{items: []production.Production{show, external}}, nil)

	err := svc.Validate(context.Background(), iv(t, 15, 0, 17, 0), uuid.Nil)
	requireReason(t, reasonsOf(t, err), "production")

	// The external-venue show does not occupy the space.
	if err := svc.Validate(context.Background(), iv(t, 10, 0, 12, 0), uuid.Nil); err != nil {
		t.Errorf("external production blocks the space: %v", err)
	}
}

func TestValidateExcludesOwnReservation(t *testing.T) {
	mine := booking.Reservation{
		ID:            uuid.New(),
		ReservedAt:    at(t, 10, 0),
		ReservedUntil: at(t, 12, 0),
		Status:        booking.StatusConfirmed,
	}
	svc := newTestService(&fakeReservations{items: []booking.Reservation{mine}}, nil, nil)

	// Moving a booking an hour later still overlaps its own old slot.
	if err := svc.Validate(context.Background(), iv(t, 11, 0, 13, 0), mine.ID); err != nil {
		t.Errorf("rebooking conflicts with itself: %v", err)
	}
}

func TestQuoteSplitsFreeAndPaid(t *testing.T) {
	ledger := &fakeLedger{
		balances:     map[credit.Type]int{credit.TypeFreeHours: 4, credit.TypeBonusHours: 1},
		blockMinutes: 30,
	}
	svc := newTestService(nil, nil, ledger)

	// 3 hours = 6 blocks; 4 free + 1 bonus cover 2.5 hours.
	q, err := svc.PrepareQuote(context.Background(), uuid.New(), iv(t, 10, 0, 13, 0), true)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if q.TotalHours != 3 {
		t.Errorf("TotalHours = %v, want 3", q.TotalHours)
	}
	if q.FreeBlocks != 4 || q.BonusBlocks != 1 {
		t.Errorf("blocks = %d free, %d bonus, want 4 and 1", q.FreeBlocks, q.BonusBlocks)
	}
	if q.FreeHours != 2.5 || q.PaidHours != 0.5 {
		t.Errorf("hours = %v free, %v paid, want 2.5 and 0.5", q.FreeHours, q.PaidHours)
	}
	if !q.Cost.Equal(decimal.NewFromFloat(7.5)) {
		t.Errorf("Cost = %s, want 7.5", q.Cost)
	}
}

func TestQuoteFullyCovered(t *testing.T) {
	ledger := &fakeLedger{
		balances:     map[credit.Type]int{credit.TypeFreeHours: 10},
		blockMinutes: 30,
	}
	svc := newTestService(nil, nil, ledger)

	q, err := svc.PrepareQuote(context.Background(), uuid.New(), iv(t, 10, 0, 12, 0), true)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if q.FreeBlocks != 4 || q.BonusBlocks != 0 {
		t.Errorf("blocks = %d free, %d bonus, want 4 and 0", q.FreeBlocks, q.BonusBlocks)
	}
	if q.PaidHours != 0 || !q.Cost.IsZero() {
		t.Errorf("expected zero cost, got %v paid hours, cost %s", q.PaidHours, q.Cost)
	}
}

func TestQuoteNotEntitled(t *testing.T) {
	ledger := &fakeLedger{
		balances:     map[credit.Type]int{credit.TypeFreeHours: 10, credit.TypeBonusHours: 10},
		blockMinutes: 30,
	}
	svc := newTestService(nil, nil, ledger)

	q, err := svc.PrepareQuote(context.Background(), uuid.New(), iv(t, 10, 0, 12, 0), false)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	if q.FreeBlocks != 0 || q.BonusBlocks != 0 || q.FreeHours != 0 {
		t.Errorf("unentitled owner still drew credits: %+v", q)
	}
	if !q.Cost.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Cost = %s, want 30", q.Cost)
	}
}
