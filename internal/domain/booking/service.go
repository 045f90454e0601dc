package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bandroom/bandroom-api/internal/domain/credit"
	"github.com/bandroom/bandroom-api/internal/pkg/queue"
)

// Ledger is the credit operations the booking flow needs. Satisfied by
// *credit.Service.
type Ledger interface {
	EnsureMonthly(ctx context.Context, ownerID uuid.UUID) error
	GetBalance(ctx context.Context, ownerID uuid.UUID, creditType credit.Type) (int, error)
	SpendTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source credit.Source, creditType credit.Type, sourceID *string) (*credit.Transaction, error)
	GrantTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source credit.Source, creditType credit.Type, sourceID *string, description string) (*credit.Transaction, error)
	HoursToBlocks(hours float64) int
	BlocksToHours(blocks int) float64
}

// Notifier receives booking facts for in-app notification delivery.
type Notifier interface {
	NotifyReservationCreated(ctx context.Context, ownerID, reservationID uuid.UUID, start, end time.Time)
	NotifyReservationCancelled(ctx context.Context, ownerID, reservationID uuid.UUID, reason string)
}

// Rules holds the booking policy knobs, loaded from config at startup.
type Rules struct {
	OpeningHour    int
	ClosingHour    int
	MinDuration    time.Duration
	MaxDuration    time.Duration
	HourlyRate     decimal.Decimal
	RefundOnCancel bool
}

// Quote prices a candidate interval against the owner's credit balances.
// Credits are applied free hours first, then bonus hours.
type Quote struct {
	TotalHours float64         `json:"total_hours"`
	FreeHours  float64         `json:"free_hours"`
	PaidHours  float64         `json:"paid_hours"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Cost       decimal.Decimal `json:"cost"`

	FreeBlocks  int `json:"-"`
	BonusBlocks int `json:"-"`
}

// Service implements the reservation lifecycle: validation, pricing,
// creation with an atomic credit debit, rebooking and cancellation.
type Service struct {
	repo       *Repository
	detector   *Detector
	ledger     Ledger
	rules      Rules
	publisher  *queue.Publisher
	notifier   Notifier
	invalidate func(ctx context.Context, day time.Time)
	now        func() time.Time
}

// NewService creates a new booking service.
func NewService(repo *Repository, detector *Detector, ledger Ledger, rules Rules, publisher *queue.Publisher, notifier Notifier) *Service {
	return &Service{
		repo:      repo,
		detector:  detector,
		ledger:    ledger,
		rules:     rules,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetClock overrides the time source, used by deterministic tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetCacheInvalidator registers a callback invoked after any write that
// changes a day's occupancy.
func (s *Service) SetCacheInvalidator(fn func(ctx context.Context, day time.Time)) {
	s.invalidate = fn
}

// Validate checks a candidate interval against every booking rule and
// returns a ValidationError listing all violations, not just the first.
// exclude removes one reservation from conflict checking, for rebooking.
func (s *Service) Validate(ctx context.Context, candidate Interval, exclude uuid.UUID) error {
	reasons := make([]string, 0)
	now := s.now()

	if !candidate.Start.After(now) {
		reasons = append(reasons, "start time must be in the future")
	}
	if !candidate.End.After(candidate.Start) {
		// Duration and window checks are meaningless on a degenerate range.
		reasons = append(reasons, "end time must be after start time")
		return &ValidationError{Reasons: reasons}
	}

	d := candidate.Duration()
	if d < s.rules.MinDuration {
		reasons = append(reasons, fmt.Sprintf("booking must be at least %s", s.rules.MinDuration))
	}
	if d > s.rules.MaxDuration {
		reasons = append(reasons, fmt.Sprintf("booking must be at most %s", s.rules.MaxDuration))
	}

	// Operating hours on the start date. The closing boundary itself is a
	// valid end instant. This also rules out intervals spanning midnight.
	open, close := s.operatingWindow(candidate.Start)
	if candidate.Start.Before(open) || candidate.End.After(close) {
		reasons = append(reasons, fmt.Sprintf("booking must fall within operating hours (%02d:00-%02d:00)",
			s.rules.OpeningHour, s.rules.ClosingHour))
	}

	conflicts, err := s.detector.FindConflicts(ctx, candidate, exclude, uuid.Nil)
	if err != nil {
		return fmt.Errorf("%w: conflict check failed: %v", ErrInternal, err)
	}
	for _, c := range conflicts {
		reasons = append(reasons, "conflicts with "+c.String())
	}

	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// PrepareQuote prices the interval for the owner. It runs the lazy monthly
// credit allocation first so a fresh month's allowance is visible to the
// very first quote of that month.
func (s *Service) PrepareQuote(ctx context.Context, ownerID uuid.UUID, candidate Interval, entitled bool) (*Quote, error) {
	if err := s.ledger.EnsureMonthly(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("%w: monthly allocation failed: %v", ErrInternal, err)
	}

	total := candidate.Hours()
	q := &Quote{
		TotalHours: total,
		HourlyRate: s.rules.HourlyRate,
	}

	if entitled && total > 0 {
		needed := s.ledger.HoursToBlocks(total)

		freeBal, err := s.ledger.GetBalance(ctx, ownerID, credit.TypeFreeHours)
		if err != nil {
			return nil, fmt.Errorf("%w: balance lookup failed: %v", ErrInternal, err)
		}
		bonusBal, err := s.ledger.GetBalance(ctx, ownerID, credit.TypeBonusHours)
		if err != nil {
			return nil, fmt.Errorf("%w: balance lookup failed: %v", ErrInternal, err)
		}

		q.FreeBlocks = minInt(needed, freeBal)
		q.BonusBlocks = minInt(needed-q.FreeBlocks, bonusBal)
	}

	covered := s.ledger.BlocksToHours(q.FreeBlocks + q.BonusBlocks)
	if covered > total {
		covered = total
	}
	q.FreeHours = covered
	q.PaidHours = total - covered
	q.Cost = s.rules.HourlyRate.Mul(decimal.NewFromFloat(q.PaidHours)).Round(2)

	return q, nil
}

// Create validates, prices and persists a reservation. The row insert and
// the credit debit happen in one database transaction.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, candidate Interval, notes string, productionID *uuid.UUID, entitled bool) (*Reservation, error) {
	if err := s.Validate(ctx, candidate, uuid.Nil); err != nil {
		return nil, err
	}

	q, err := s.PrepareQuote(ctx, ownerID, candidate, entitled)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := &Reservation{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		ReservedAt:       candidate.Start,
		ReservedUntil:    candidate.End,
		Status:           StatusConfirmed,
		HoursUsed:        q.TotalHours,
		FreeHoursUsed:    q.FreeHours,
		Cost:             q.Cost,
		FreeBlocksSpent:  q.FreeBlocks,
		BonusBlocksSpent: q.BonusBlocks,
		ProductionID:     productionID,
		Notes:            nullString(notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.createWithDebit(ctx, res); err != nil {
		return nil, err
	}

	s.emitReservationEvent(ctx, queue.QueueReservationCreated, res, "")
	if s.notifier != nil {
		s.notifier.NotifyReservationCreated(ctx, ownerID, res.ID, res.ReservedAt, res.ReservedUntil)
	}
	s.invalidateDay(ctx, res.ReservedAt)

	return res, nil
}

// Update moves or reprices an existing reservation. The old credit debit is
// reversed and the new one applied in the same transaction as the row
// update, so the ledger never sees a half-moved booking.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, candidate Interval, notes *string, entitled bool) (*Reservation, error) {
	res, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if res.IsCancelled() {
		return nil, &ValidationError{Reasons: []string{"cancelled reservations cannot be modified"}}
	}

	if err := s.Validate(ctx, candidate, res.ID); err != nil {
		return nil, err
	}

	q, err := s.PrepareQuote(ctx, ownerID, candidate, entitled)
	if err != nil {
		return nil, err
	}

	oldDay := res.ReservedAt
	sourceID := res.ID.String()

	tx, err := s.repo.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	// Give back what the old booking spent, then debit the new price.
	if res.FreeBlocksSpent > 0 {
		if _, err := s.ledger.GrantTx(ctx, tx, ownerID, res.FreeBlocksSpent, credit.SourceReservationAdjust, credit.TypeFreeHours, &sourceID, "rebooking adjustment"); err != nil {
			return nil, fmt.Errorf("%w: adjustment refund failed: %v", ErrInternal, err)
		}
	}
	if res.BonusBlocksSpent > 0 {
		if _, err := s.ledger.GrantTx(ctx, tx, ownerID, res.BonusBlocksSpent, credit.SourceReservationAdjust, credit.TypeBonusHours, &sourceID, "rebooking adjustment"); err != nil {
			return nil, fmt.Errorf("%w: adjustment refund failed: %v", ErrInternal, err)
		}
	}
	if q.FreeBlocks > 0 {
		if _, err := s.ledger.SpendTx(ctx, tx, ownerID, q.FreeBlocks, credit.SourceReservationSpend, credit.TypeFreeHours, &sourceID); err != nil {
			return nil, err
		}
	}
	if q.BonusBlocks > 0 {
		if _, err := s.ledger.SpendTx(ctx, tx, ownerID, q.BonusBlocks, credit.SourceReservationSpend, credit.TypeBonusHours, &sourceID); err != nil {
			return nil, err
		}
	}

	res.ReservedAt = candidate.Start
	res.ReservedUntil = candidate.End
	res.HoursUsed = q.TotalHours
	res.FreeHoursUsed = q.FreeHours
	res.Cost = q.Cost
	res.FreeBlocksSpent = q.FreeBlocks
	res.BonusBlocksSpent = q.BonusBlocks
	if notes != nil {
		res.Notes = nullString(*notes)
	}
	res.UpdatedAt = s.now()

	if err := s.repo.UpdateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	s.invalidateDay(ctx, oldDay)
	s.invalidateDay(ctx, res.ReservedAt)

	return res, nil
}

// Cancel marks a reservation cancelled. Cancelling an already-cancelled
// reservation is a no-op, not an error. When refunds are enabled and the
// reservation has not started yet, the spent blocks are returned in the
// same transaction.
func (s *Service) Cancel(ctx context.Context, ownerID, id uuid.UUID, reason string) (*Reservation, error) {
	res, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if res.IsCancelled() {
		return res, nil
	}

	now := s.now()
	refund := s.rules.RefundOnCancel && res.ReservedAt.After(now) && res.BlocksSpent() > 0
	sourceID := res.ID.String()

	tx, err := s.repo.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	res.Status = StatusCancelled
	res.CancellationReason = nullString(reason)
	res.UpdatedAt = now

	if err := s.repo.UpdateTx(ctx, tx, res); err != nil {
		return nil, err
	}

	if refund {
		if res.FreeBlocksSpent > 0 {
			if _, err := s.ledger.GrantTx(ctx, tx, ownerID, res.FreeBlocksSpent, credit.SourceCancellationRefund, credit.TypeFreeHours, &sourceID, "cancellation refund"); err != nil {
				return nil, fmt.Errorf("%w: refund failed: %v", ErrInternal, err)
			}
		}
		if res.BonusBlocksSpent > 0 {
			if _, err := s.ledger.GrantTx(ctx, tx, ownerID, res.BonusBlocksSpent, credit.SourceCancellationRefund, credit.TypeBonusHours, &sourceID, "cancellation refund"); err != nil {
				return nil, fmt.Errorf("%w: refund failed: %v", ErrInternal, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}

	s.emitReservationEvent(ctx, queue.QueueReservationCancelled, res, reason)
	if s.notifier != nil {
		s.notifier.NotifyReservationCancelled(ctx, ownerID, res.ID, reason)
	}
	s.invalidateDay(ctx, res.ReservedAt)

	return res, nil
}

// CreateForSeries materializes one occurrence of a recurring series. A
// conflicting occurrence is persisted as a cancelled placeholder instead of
// failing the whole materialization run. entitled is the series' credit
// eligibility snapshot, not the owner's current one.
func (s *Service) CreateForSeries(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate Interval, entitled bool) (*Reservation, error) {
	conflicts, err := s.detector.FindConflicts(ctx, candidate, uuid.Nil, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("%w: conflict check failed: %v", ErrInternal, err)
	}

	now := s.now()
	res := &Reservation{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		ReservedAt:    candidate.Start,
		ReservedUntil: candidate.End,
		Status:        StatusConfirmed,
		HoursUsed:     candidate.Hours(),
		Cost:          decimal.Zero,
		SeriesID:      &seriesID,
		InstanceDate:  sql.NullTime{Time: instanceDate, Valid: true},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if len(conflicts) > 0 {
		return s.CreatePlaceholder(ctx, ownerID, seriesID, instanceDate, candidate, "scheduling conflict")
	}

	q, err := s.PrepareQuote(ctx, ownerID, candidate, entitled)
	if err != nil {
		return nil, err
	}
	res.FreeHoursUsed = q.FreeHours
	res.Cost = q.Cost
	res.FreeBlocksSpent = q.FreeBlocks
	res.BonusBlocksSpent = q.BonusBlocks

	if err := s.createWithDebit(ctx, res); err != nil {
		return nil, err
	}

	s.emitReservationEvent(ctx, queue.QueueReservationCreated, res, "")
	if s.notifier != nil {
		s.notifier.NotifyReservationCreated(ctx, ownerID, res.ID, res.ReservedAt, res.ReservedUntil)
	}
	s.invalidateDay(ctx, res.ReservedAt)

	return res, nil
}

// CreatePlaceholder records a series occurrence that never happened as a
// cancelled, zero-cost reservation, keeping the date visible in history and
// blocking re-materialization of that occurrence. No credit moves.
func (s *Service) CreatePlaceholder(ctx context.Context, ownerID, seriesID uuid.UUID, instanceDate time.Time, candidate Interval, reason string) (*Reservation, error) {
	now := s.now()
	res := &Reservation{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		ReservedAt:         candidate.Start,
		ReservedUntil:      candidate.End,
		Status:             StatusCancelled,
		HoursUsed:          candidate.Hours(),
		Cost:               decimal.Zero,
		SeriesID:           &seriesID,
		InstanceDate:       sql.NullTime{Time: instanceDate, Valid: true},
		CancellationReason: nullString(reason),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	tx, err := s.repo.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()
	if err := s.repo.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	return res, nil
}

// Availability lists the free slots of one calendar day that can hold at
// least minDuration; a non-positive minDuration falls back to the configured
// minimum booking length.
func (s *Service) Availability(ctx context.Context, day time.Time, minDuration time.Duration) ([]Interval, error) {
	if minDuration <= 0 {
		minDuration = s.rules.MinDuration
	}
	open, close := s.operatingWindow(day)
	gaps, err := s.detector.Gaps(ctx, open, close, minDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: gap scan failed: %v", ErrInternal, err)
	}
	return gaps, nil
}

// Get returns one of the owner's reservations.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Reservation, error) {
	return s.getOwned(ctx, ownerID, id)
}

// List returns the owner's reservations, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Reservation, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// createWithDebit inserts the reservation and debits its credit blocks in
// one transaction.
func (s *Service) createWithDebit(ctx context.Context, res *Reservation) error {
	tx, err := s.repo.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := s.repo.CreateTx(ctx, tx, res); err != nil {
		return err
	}

	sourceID := res.ID.String()
	if res.FreeBlocksSpent > 0 {
		if _, err := s.ledger.SpendTx(ctx, tx, res.OwnerID, res.FreeBlocksSpent, credit.SourceReservationSpend, credit.TypeFreeHours, &sourceID); err != nil {
			return err
		}
	}
	if res.BonusBlocksSpent > 0 {
		if _, err := s.ledger.SpendTx(ctx, tx, res.OwnerID, res.BonusBlocksSpent, credit.SourceReservationSpend, credit.TypeBonusHours, &sourceID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrInternal, err)
	}
	return nil
}

func (s *Service) getOwned(ctx context.Context, ownerID, id uuid.UUID) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return res, nil
}

// operatingWindow returns the bookable range of the date t falls on.
func (s *Service) operatingWindow(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	open := time.Date(y, m, d, s.rules.OpeningHour, 0, 0, 0, t.Location())
	close := time.Date(y, m, d, s.rules.ClosingHour, 0, 0, 0, t.Location())
	return open, close
}

func (s *Service) emitReservationEvent(ctx context.Context, queueName string, res *Reservation, reason string) {
	if s.publisher == nil {
		return
	}
	ev := queue.ReservationEvent{
		ReservationID: res.ID.String(),
		OwnerID:       res.OwnerID.String(),
		StartsAt:      res.ReservedAt,
		EndsAt:        res.ReservedUntil,
		Status:        string(res.Status),
		HoursUsed:     res.HoursUsed,
		FreeHoursUsed: res.FreeHoursUsed,
		Cost:          res.Cost.StringFixed(2),
		Reason:        reason,
	}
	if res.SeriesID != nil {
		ev.SeriesID = res.SeriesID.String()
	}
	if err := s.publisher.Publish(ctx, queueName, ev); err != nil {
		log.Warn().Err(err).Str("reservation_id", res.ID.String()).Msg("Reservation event not published")
	}
}

func (s *Service) invalidateDay(ctx context.Context, day time.Time) {
	if s.invalidate != nil {
		s.invalidate(ctx, day)
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
