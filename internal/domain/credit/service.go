package credit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bandroom/bandroom-api/internal/pkg/queue"
)

// periodLayout is the calendar-month idempotency key format.
const periodLayout = "2006-01"

// Notifier receives credit facts for in-app notification delivery.
// Implementations must be safe to call with a background context.
type Notifier interface {
	NotifyCreditGranted(ctx context.Context, ownerID uuid.UUID, creditType string, amount, balanceAfter int)
	NotifyPromoRedeemed(ctx context.Context, ownerID uuid.UUID, code string, amount int)
}

// Config carries the ledger's policy table and unit size.
type Config struct {
	Policies     Policies
	Allowances   map[Type]int // monthly allocation amount per type, in blocks
	BlockMinutes int
}

// Service implements the credit ledger: concurrency-safe balance
// bookkeeping with a full audit trail.
type Service struct {
	repo      *Repository
	cfg       Config
	publisher *queue.Publisher
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a new credit service.
func NewService(db *sqlx.DB, cfg Config, publisher *queue.Publisher, notifier Notifier) *Service {
	if cfg.BlockMinutes <= 0 {
		cfg.BlockMinutes = 30
	}
	return &Service{
		repo:      NewRepository(db),
		cfg:       cfg,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetClock overrides the time source, used by deterministic tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// GetBalance returns the current non-expired balance in blocks.
func (s *Service) GetBalance(ctx context.Context, ownerID uuid.UUID, creditType Type) (int, error) {
	if _, ok := s.cfg.Policies[creditType]; !ok {
		return 0, ErrUnknownCreditType
	}
	return s.repo.GetBalance(ctx, ownerID, creditType)
}

// Grant increases the owner's balance and records the audit entry.
func (s *Service) Grant(ctx context.Context, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string, description string, expiresAt *time.Time) (*Transaction, error) {
	policy, ok := s.cfg.Policies[creditType]
	if !ok {
		return nil, ErrUnknownCreditType
	}

	txn, err := s.repo.Grant(ctx, ownerID, amount, source, creditType, sourceID, description, expiresAt, capColumn(policy))
	if err != nil {
		return nil, err
	}

	s.emitCreditEvent(ctx, queue.QueueCreditGranted, txn)
	if s.notifier != nil && txn.Amount > 0 {
		s.notifier.NotifyCreditGranted(ctx, ownerID, string(creditType), txn.Amount, txn.BalanceAfter)
	}
	return txn, nil
}

// GrantTx increases the balance within an external transaction. No events
// are emitted: the caller owns the commit and emits afterwards.
func (s *Service) GrantTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string, description string) (*Transaction, error) {
	policy, ok := s.cfg.Policies[creditType]
	if !ok {
		return nil, ErrUnknownCreditType
	}
	return s.repo.GrantTx(ctx, tx, ownerID, amount, source, creditType, sourceID, description, nil, capColumn(policy))
}

// Spend decreases the owner's balance, failing with
// InsufficientCreditsError rather than going negative.
func (s *Service) Spend(ctx context.Context, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string) (*Transaction, error) {
	if _, ok := s.cfg.Policies[creditType]; !ok {
		return nil, ErrUnknownCreditType
	}

	txn, err := s.repo.Spend(ctx, ownerID, amount, source, creditType, sourceID)
	if err != nil {
		return nil, err
	}

	s.emitCreditEvent(ctx, queue.QueueCreditSpent, txn)
	return txn, nil
}

// SpendTx decreases the balance within an external transaction, so a
// reservation insert and its credit debit commit or roll back together.
func (s *Service) SpendTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string) (*Transaction, error) {
	if _, ok := s.cfg.Policies[creditType]; !ok {
		return nil, ErrUnknownCreditType
	}
	return s.repo.SpendTx(ctx, tx, ownerID, amount, source, creditType, sourceID)
}

// AllocateMonthly applies the configured monthly allowance for one credit
// type, at most once per calendar month per (owner, type).
func (s *Service) AllocateMonthly(ctx context.Context, ownerID uuid.UUID, creditType Type) (*Transaction, error) {
	policy, ok := s.cfg.Policies[creditType]
	if !ok {
		return nil, ErrUnknownCreditType
	}

	amount := s.cfg.Allowances[creditType]
	period := s.now().Format(periodLayout)

	txn, err := s.repo.AllocateMonthly(ctx, ownerID, amount, creditType, policy, period)
	if err != nil {
		return nil, err
	}

	if txn != nil {
		s.emitCreditEvent(ctx, queue.QueueCreditGranted, txn)
		if s.notifier != nil && txn.Amount > 0 {
			s.notifier.NotifyCreditGranted(ctx, ownerID, string(creditType), txn.Amount, txn.BalanceAfter)
		}
	}
	return txn, nil
}

// EnsureMonthly runs the monthly allocation for every configured credit
// type. Safe to call on any request path: once a period is stamped the call
// is a cheap no-op.
func (s *Service) EnsureMonthly(ctx context.Context, ownerID uuid.UUID) error {
	for creditType := range s.cfg.Policies {
		if s.cfg.Allowances[creditType] <= 0 {
			continue
		}
		if _, err := s.AllocateMonthly(ctx, ownerID, creditType); err != nil {
			return err
		}
	}
	return nil
}

// RedeemPromo redeems a promo code for the owner, granting its credit
// amount atomically with the redemption record and use counter.
func (s *Service) RedeemPromo(ctx context.Context, ownerID uuid.UUID, code string) (*Transaction, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	txn, promo, err := s.repo.RedeemPromo(ctx, ownerID, code, s.now())
	if err != nil {
		return nil, err
	}

	s.emitCreditEvent(ctx, queue.QueueCreditGranted, txn)
	if s.publisher != nil {
		s.publisher.Publish(ctx, queue.QueuePromoRedeemed, queue.PromoRedeemedEvent{
			OwnerID:    ownerID.String(),
			Code:       promo.Code,
			CreditType: string(promo.CreditType),
			Amount:     promo.CreditAmount,
		})
	}
	if s.notifier != nil {
		s.notifier.NotifyPromoRedeemed(ctx, ownerID, promo.Code, promo.CreditAmount)
	}
	return txn, nil
}

// CreatePromo registers a new promo code.
func (s *Service) CreatePromo(ctx context.Context, code string, amount int, creditType Type, maxUses *int, expiresAt *time.Time) (*PromoCode, error) {
	if _, ok := s.cfg.Policies[creditType]; !ok {
		return nil, ErrUnknownCreditType
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	promo := &PromoCode{
		ID:           uuid.New(),
		Code:         strings.TrimSpace(code),
		CreditAmount: amount,
		CreditType:   creditType,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if maxUses != nil {
		promo.MaxUses = sql.NullInt64{Int64: int64(*maxUses), Valid: true}
	}
	if expiresAt != nil {
		promo.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	if err := s.repo.CreatePromo(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// ListTransactions returns the owner's ledger history.
func (s *Service) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, ownerID, Pagination{Limit: limit, Offset: offset})
}

// ListOwnersWithBalances exposes the sweep population for the allocation
// worker.
func (s *Service) ListOwnersWithBalances(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListOwnersWithBalances(ctx)
}

// HoursToBlocks converts hours to this ledger's block unit, rounding up.
func (s *Service) HoursToBlocks(hours float64) int {
	return HoursToBlocks(hours, s.cfg.BlockMinutes)
}

// BlocksToHours converts blocks to hours.
func (s *Service) BlocksToHours(blocks int) float64 {
	return BlocksToHours(blocks, s.cfg.BlockMinutes)
}

func (s *Service) emitCreditEvent(ctx context.Context, queueName string, txn *Transaction) {
	if s.publisher == nil || txn == nil {
		return
	}
	sourceID := ""
	if txn.SourceID != nil {
		sourceID = *txn.SourceID
	}
	s.publisher.Publish(ctx, queueName, queue.CreditEvent{
		OwnerID:      txn.OwnerID.String(),
		CreditType:   string(txn.CreditType),
		Amount:       txn.Amount,
		BalanceAfter: txn.BalanceAfter,
		Source:       string(txn.Source),
		SourceID:     sourceID,
	})
}

func capColumn(policy Policy) sql.NullInt64 {
	if policy.Kind == PolicyRollover && policy.CapBlocks > 0 {
		return sql.NullInt64{Int64: int64(policy.CapBlocks), Valid: true}
	}
	return sql.NullInt64{}
}
