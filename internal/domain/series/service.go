package series

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bandroom/bandroom-api/internal/domain/booking"
	"github.com/bandroom/bandroom-api/internal/pkg/queue"
)

const dateLayout = "2006-01-02"

// Booker materializes and cancels individual occurrences. Satisfied by
// *booking.Service, which keeps credit handling in one place.
type Booker interface {
	CreateForSeries(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate booking.Interval, entitled bool) (*booking.Reservation, error)
	CreatePlaceholder(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate booking.Interval, reason string) (*booking.Reservation, error)
	Cancel(ctx context.Context, ownerID, id uuid.UUID, reason string) (*booking.Reservation, error)
}

// InstanceStore reads materialized occurrences. Satisfied by
// *booking.Repository.
type InstanceStore interface {
	ListInstanceDates(ctx context.Context, seriesID uuid.UUID) ([]time.Time, error)
	GetBySeriesAndDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (*booking.Reservation, error)
	ListFutureBySeries(ctx context.Context, seriesID uuid.UUID, after time.Time) ([]booking.Reservation, error)
}

// Notifier receives series facts for in-app notification delivery.
type Notifier interface {
	NotifySeriesMaterialized(ctx context.Context, ownerID, seriesID uuid.UUID, created, placeholders int)
}

// Config carries the materialization policy knobs.
type Config struct {
	HorizonDays int
	OpeningHour int
	ClosingHour int
}

// MaterializeResult summarizes one materialization run.
type MaterializeResult struct {
	// Created counts confirmed occurrences written by this run.
	Created int `json:"created"`
	// Placeholders counts occurrences written as cancelled because the slot
	// was already taken.
	Placeholders int `json:"placeholders"`
	// Skipped counts occurrences that already existed from earlier runs.
	Skipped int `json:"skipped"`

	Dates []string `json:"dates,omitempty"`
}

// Service manages recurring series and their materialization into
// reservations.
type Service struct {
	repo      *Repository
	instances InstanceStore
	booker    Booker
	expander  Expander
	cfg       Config
	publisher *queue.Publisher
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a new series service.
func NewService(repo *Repository, instances InstanceStore, booker Booker, expander Expander, cfg Config, publisher *queue.Publisher, notifier Notifier) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 90
	}
	return &Service{
		repo:      repo,
		instances: instances,
		booker:    booker,
		expander:  expander,
		cfg:       cfg,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetClock overrides the time source, used by deterministic tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Create validates and persists a new series, then materializes its first
// window immediately so the owner sees the occurrences right away.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, rule, startTime string, durationMinutes int, startDate time.Time, endDate *time.Time, notes string, entitled bool) (*Series, *MaterializeResult, error) {
	reasons := make([]string, 0)

	if err := ValidateRule(rule); err != nil {
		reasons = append(reasons, "recurrence rule is not a valid RRULE")
	}

	hour, minute, err := parseWallClock(startTime)
	if err != nil {
		reasons = append(reasons, "start_time must be formatted as HH:MM")
	}
	if durationMinutes <= 0 {
		reasons = append(reasons, "duration must be positive")
	} else if err == nil {
		startMin := hour*60 + minute
		if startMin < s.cfg.OpeningHour*60 || startMin+durationMinutes > s.cfg.ClosingHour*60 {
			reasons = append(reasons, fmt.Sprintf("occurrences must fall within operating hours (%02d:00-%02d:00)",
				s.cfg.OpeningHour, s.cfg.ClosingHour))
		}
	}
	if endDate != nil && endDate.Before(startDate) {
		reasons = append(reasons, "end_date must not precede start_date")
	}

	if len(reasons) > 0 {
		return nil, nil, &booking.ValidationError{Reasons: reasons}
	}

	now := s.now()
	ser := &Series{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		RRule:           rule,
		StartTime:       startTime,
		DurationMinutes: durationMinutes,
		StartDate:       startOfDay(startDate),
		Status:          StatusActive,
		CreditEligible:  entitled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if endDate != nil {
		ser.EndDate = sql.NullTime{Time: startOfDay(*endDate), Valid: true}
	}
	if notes != "" {
		ser.Notes = sql.NullString{String: notes, Valid: true}
	}

	if err := s.repo.Create(ctx, ser); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	result, err := s.Materialize(ctx, ser)
	if err != nil {
		// The series row is durable; the sweep worker fills in whatever
		// this partial run missed.
		log.Error().Err(err).Str("series_id", ser.ID.String()).Msg("Initial materialization incomplete")
	}
	return ser, result, nil
}

// Materialize writes the series' occurrences from its anchor to the rolling
// horizon as reservations, one per calendar date. Dates already materialized
// are skipped, so repeated runs converge instead of duplicating. Occurrences
// that collide with existing bookings become cancelled placeholders; any
// other failure stops the run, and the next run resumes where it left off.
func (s *Service) Materialize(ctx context.Context, ser *Series) (*MaterializeResult, error) {
	result := &MaterializeResult{Dates: []string{}}
	if !ser.IsActive() {
		return result, nil
	}

	anchor, err := ser.Anchor()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	now := s.now()
	windowEnd := now.AddDate(0, 0, s.cfg.HorizonDays)
	if ser.EndDate.Valid {
		last := endOfDay(ser.EndDate.Time)
		if last.Before(windowEnd) {
			windowEnd = last
		}
	}

	occurrences, err := s.expander.Expand(ser.RRule, anchor, anchor, windowEnd)
	if err != nil {
		return nil, err
	}

	existing, err := s.instances.ListInstanceDates(ctx, ser.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	// Stored instants come back in whatever zone the driver session uses;
	// format them through one canonical zone or the guard misses.
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d.UTC().Format(dateLayout)] = true
	}

	duration := ser.Duration()
	for _, occ := range occurrences {
		if !occ.After(now) {
			continue
		}
		key := occ.Format(dateLayout)
		if seen[key] {
			result.Skipped++
			continue
		}

		candidate := booking.Interval{Start: occ, End: occ.Add(duration)}
		res, err := s.booker.CreateForSeries(ctx, ser.OwnerID, ser.ID, dateOnlyUTC(occ), candidate, ser.CreditEligible)
		if err != nil {
			return result, fmt.Errorf("materialize %s: %w", key, err)
		}

		if res.IsCancelled() {
			result.Placeholders++
		} else {
			result.Created++
		}
		result.Dates = append(result.Dates, key)
		seen[key] = true
	}

	if result.Created+result.Placeholders > 0 {
		s.emitMaterialized(ctx, ser, result)
		if s.notifier != nil {
			s.notifier.NotifySeriesMaterialized(ctx, ser.OwnerID, ser.ID, result.Created, result.Placeholders)
		}
	}
	return result, nil
}

// Get returns one of the owner's series.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Series, error) {
	return s.getOwned(ctx, ownerID, id)
}

// List returns the owner's series, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Series, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// SkipInstance cancels a single occurrence without touching the rest of the
// series. A not-yet-materialized date gets a cancelled placeholder instead,
// which blocks the sweep from booking it later. Skipping an
// already-cancelled occurrence is a no-op.
func (s *Service) SkipInstance(ctx context.Context, ownerID, seriesID uuid.UUID, date time.Time, reason string) (*booking.Reservation, error) {
	ser, err := s.getOwned(ctx, ownerID, seriesID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "skipped by owner"
	}

	day := dateOnlyUTC(date)
	instance, err := s.instances.GetBySeriesAndDate(ctx, ser.ID, day)
	if err != nil {
		if !errors.Is(err, booking.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		hour, minute, perr := parseWallClock(ser.StartTime)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, perr)
		}
		y, m, d := date.Date()
		start := time.Date(y, m, d, hour, minute, 0, 0, ser.StartDate.Location())
		candidate := booking.Interval{Start: start, End: start.Add(ser.Duration())}
		return s.booker.CreatePlaceholder(ctx, ownerID, ser.ID, day, candidate, reason)
	}
	if instance.IsCancelled() {
		return instance, nil
	}

	return s.booker.Cancel(ctx, ownerID, instance.ID, reason)
}

// Cancel stops the series and cancels every future occurrence. Past
// occurrences stay as history. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, ownerID, seriesID uuid.UUID, reason string) (*Series, int, error) {
	ser, err := s.getOwned(ctx, ownerID, seriesID)
	if err != nil {
		return nil, 0, err
	}
	if !ser.IsActive() {
		return ser, 0, nil
	}

	if err := s.repo.UpdateStatus(ctx, ser.ID, StatusCancelled); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	ser.Status = StatusCancelled

	if reason == "" {
		reason = "series cancelled"
	}

	// Each instance goes through the regular cancellation path so refunds
	// and events stay consistent with one-off cancellations.
	future, err := s.instances.ListFutureBySeries(ctx, ser.ID, s.now())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	cancelled := 0
	for i := range future {
		if _, err := s.booker.Cancel(ctx, ownerID, future[i].ID, reason); err != nil {
			return ser, cancelled, fmt.Errorf("%w: cancel instance %s: %v", ErrInternal, future[i].ID, err)
		}
		cancelled++
	}
	return ser, cancelled, nil
}

// Extend moves the series end date (nil clears it) and materializes the
// newly reachable occurrences.
func (s *Service) Extend(ctx context.Context, ownerID, seriesID uuid.UUID, endDate *time.Time) (*Series, *MaterializeResult, error) {
	ser, err := s.getOwned(ctx, ownerID, seriesID)
	if err != nil {
		return nil, nil, err
	}
	if !ser.IsActive() {
		return nil, nil, ErrNotActive
	}

	var nt sql.NullTime
	if endDate != nil {
		day := startOfDay(*endDate)
		if day.Before(ser.StartDate) {
			return nil, nil, &booking.ValidationError{Reasons: []string{"end_date must not precede start_date"}}
		}
		nt = sql.NullTime{Time: day, Valid: true}
	}

	if err := s.repo.UpdateEndDate(ctx, ser.ID, nt); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	ser.EndDate = nt

	result, err := s.Materialize(ctx, ser)
	if err != nil {
		return ser, result, err
	}
	return ser, result, nil
}

// MaterializeAll runs one sweep over every active series. Failures are
// logged per series and never stop the sweep.
func (s *Service) MaterializeAll(ctx context.Context) error {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	for i := range active {
		if _, err := s.Materialize(ctx, &active[i]); err != nil {
			log.Error().Err(err).
				Str("series_id", active[i].ID.String()).
				Msg("Series materialization failed")
		}
	}
	return nil
}

func (s *Service) getOwned(ctx context.Context, ownerID, id uuid.UUID) (*Series, error) {
	ser, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ser.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return ser, nil
}

func (s *Service) emitMaterialized(ctx context.Context, ser *Series, result *MaterializeResult) {
	if s.publisher == nil {
		return
	}
	ev := queue.SeriesMaterializedEvent{
		SeriesID:     ser.ID.String(),
		OwnerID:      ser.OwnerID.String(),
		Created:      result.Created,
		Placeholders: result.Placeholders,
		Skipped:      result.Skipped,
		Dates:        result.Dates,
		OccurredAt:   s.now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, queue.QueueSeriesMaterialized, ev); err != nil {
		log.Warn().Err(err).Str("series_id", ser.ID.String()).Msg("Series event not published")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dateOnlyUTC pins a calendar date to midnight UTC, the canonical form for
// stored instance dates.
func dateOnlyUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Second)
}
