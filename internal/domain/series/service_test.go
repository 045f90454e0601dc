package series_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bandroom/bandroom-api/internal/domain/booking"
	"github.com/bandroom/bandroom-api/internal/domain/series"
)

// fakeBooker records materialization calls and turns configured dates into
// cancelled placeholders, the way the real booking service does on conflict.
type fakeBooker struct {
	conflictDates map[string]bool
	created       []time.Time
	placeholders  []time.Time
	cancelled     []uuid.UUID
}

func (f *fakeBooker) CreateForSeries(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate booking.Interval, entitled bool) (*booking.Reservation, error) {
	res := &booking.Reservation{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		ReservedAt:    candidate.Start,
		ReservedUntil: candidate.End,
		Status:        booking.StatusConfirmed,
		SeriesID:      &seriesID,
		InstanceDate:  sql.NullTime{Time: instanceDate, Valid: true},
	}
	if f.conflictDates[instanceDate.Format("2006-01-02")] {
		res.Status = booking.StatusCancelled
	}
	f.created = append(f.created, instanceDate)
	return res, nil
}

func (f *fakeBooker) CreatePlaceholder(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate booking.Interval, reason string) (*booking.Reservation, error) {
	f.placeholders = append(f.placeholders, instanceDate)
	return &booking.Reservation{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		ReservedAt:         candidate.Start,
		ReservedUntil:      candidate.End,
		Status:             booking.StatusCancelled,
		SeriesID:           &seriesID,
		InstanceDate:       sql.NullTime{Time: instanceDate, Valid: true},
		CancellationReason: sql.NullString{String: reason, Valid: true},
	}, nil
}

func (f *fakeBooker) Cancel(ctx context.Context, ownerID, id uuid.UUID, reason string) (*booking.Reservation, error) {
	f.cancelled = append(f.cancelled, id)
	return &booking.Reservation{ID: id, OwnerID: ownerID, Status: booking.StatusCancelled}, nil
}

type fakeInstances struct {
	dates  []time.Time
	byDate map[string]*booking.Reservation
	future []booking.Reservation
}

func (f *fakeInstances) ListInstanceDates(ctx context.Context, seriesID uuid.UUID) ([]time.Time, error) {
	return f.dates, nil
}

func (f *fakeInstances) GetBySeriesAndDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (*booking.Reservation, error) {
	if res, ok := f.byDate[date.Format("2006-01-02")]; ok {
		return res, nil
	}
	return nil, booking.ErrNotFound
}

func (f *fakeInstances) ListFutureBySeries(ctx context.Context, seriesID uuid.UUID, after time.Time) ([]booking.Reservation, error) {
	return f.future, nil
}

func newTestService(booker *fakeBooker, instances *fakeInstances) *series.Service {
	svc := series.NewService(nil, instances, booker, series.RuleExpander{}, series.Config{
		HorizonDays: 90,
		OpeningHour: 9,
		ClosingHour: 22,
	}, nil, nil)
	svc.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

// weeklyTuesdays is a series anchored on Tuesday 2025-06-03 at 19:00 UTC.
func weeklyTuesdays() *series.Series {
	return &series.Series{
		ID:              uuid.New(),
		OwnerID:         uuid.New(),
		RRule:           "FREQ=WEEKLY;BYDAY=TU",
		StartTime:       "19:00",
		DurationMinutes: 120,
		StartDate:       time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Status:          series.StatusActive,
		CreditEligible:  true,
	}
}

func TestMaterializeWeeklySeries(t *testing.T) {
	booker := &fakeBooker{conflictDates: map[string]bool{"2025-06-17": true}}
	svc := newTestService(booker, &fakeInstances{})

	// 13 Tuesdays fall inside the 90-day horizon; one slot is taken.
	result, err := svc.Materialize(context.Background(), weeklyTuesdays())
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if result.Created != 12 {
		t.Errorf("Created = %d, want 12", result.Created)
	}
	if result.Placeholders != 1 {
		t.Errorf("Placeholders = %d, want 1", result.Placeholders)
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", result.Skipped)
	}
	if len(result.Dates) != 13 {
		t.Fatalf("Dates has %d entries, want 13: %v", len(result.Dates), result.Dates)
	}

	// Occurrences come out in chronological order with the right shape.
	if result.Dates[0] != "2025-06-03" || result.Dates[12] != "2025-08-26" {
		t.Errorf("date range = %s .. %s", result.Dates[0], result.Dates[12])
	}
	first := booker.created[0]
	if !first.Equal(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first instance date = %v", first)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	booker := &fakeBooker{}
	instances := &fakeInstances{}
	svc := newTestService(booker, instances)
	ser := weeklyTuesdays()

	first, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Everything the first run wrote is now on record.
	instances.dates = append(instances.dates, booker.created...)
	booker.created = nil

	second, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if second.Created != 0 || second.Placeholders != 0 {
		t.Errorf("second run wrote %d+%d occurrences", second.Created, second.Placeholders)
	}
	if second.Skipped != first.Created+first.Placeholders {
		t.Errorf("Skipped = %d, want %d", second.Skipped, first.Created+first.Placeholders)
	}
	if len(booker.created) != 0 {
		t.Errorf("booker was called %d times on the second run", len(booker.created))
	}
}

func TestMaterializeIdempotentAcrossTimeZones(t *testing.T) {
	booker := &fakeBooker{}
	instances := &fakeInstances{}
	svc := newTestService(booker, instances)

	// Series anchored five hours east; the driver reports stored instance
	// dates in the session zone, not the series zone.
	ser := weeklyTuesdays()
	ser.StartDate = time.Date(2025, 6, 3, 0, 0, 0, 0, time.FixedZone("UTC+5", 5*60*60))

	first, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Created != 13 {
		t.Fatalf("Created = %d, want 13", first.Created)
	}

	for _, d := range booker.created {
		instances.dates = append(instances.dates, d.In(time.UTC))
	}
	booker.created = nil

	second, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Created != 0 || second.Placeholders != 0 {
		t.Errorf("second run re-created %d+%d occurrences", second.Created, second.Placeholders)
	}
	if second.Skipped != first.Created {
		t.Errorf("Skipped = %d, want %d", second.Skipped, first.Created)
	}
}

func TestMaterializeRespectsEndDate(t *testing.T) {
	booker := &fakeBooker{}
	svc := newTestService(booker, &fakeInstances{})

	ser := weeklyTuesdays()
	ser.EndDate = sql.NullTime{Time: time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC), Valid: true}

	result, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if result.Created != 4 {
		t.Errorf("Created = %d, want 4 (Jun 3, 10, 17, 24)", result.Created)
	}
}

func TestMaterializeSkipsInactiveSeries(t *testing.T) {
	booker := &fakeBooker{}
	svc := newTestService(booker, &fakeInstances{})

	ser := weeklyTuesdays()
	ser.Status = series.StatusCancelled

	result, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	if result.Created != 0 || len(booker.created) != 0 {
		t.Errorf("cancelled series still materialized %d occurrences", result.Created)
	}
}

func TestMaterializeSkipsPastOccurrences(t *testing.T) {
	booker := &fakeBooker{}
	svc := newTestService(booker, &fakeInstances{})

	// Anchored two weeks before the clock: those occurrences are history.
	ser := weeklyTuesdays()
	ser.StartDate = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	result, err := svc.Materialize(context.Background(), ser)
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	for _, d := range result.Dates {
		if d < "2025-06-01" {
			t.Errorf("materialized a past occurrence: %s", d)
		}
	}
	if result.Created != 13 {
		t.Errorf("Created = %d, want 13", result.Created)
	}
}

func TestValidateRule(t *testing.T) {
	if err := series.ValidateRule("FREQ=WEEKLY;BYDAY=TU"); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
	if err := series.ValidateRule("NOT A RULE"); !errors.Is(err, series.ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestExpanderAnchorsOnStartDate(t *testing.T) {
	anchor := time.Date(2025, 6, 3, 19, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	got, err := series.RuleExpander{}.Expand("FREQ=WEEKLY;BYDAY=TU", anchor, anchor, until)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}

	want := []time.Time{
		anchor,
		anchor.AddDate(0, 0, 7),
		anchor.AddDate(0, 0, 14),
		anchor.AddDate(0, 0, 21),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
}
