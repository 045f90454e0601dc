package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// Repository provides ledger and balance operations. Every mutation locks
// the (owner, credit_type) balance row for the whole
// read-modify-write-audit sequence.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetBalance returns the current non-expired balance in blocks, 0 if none.
func (r *Repository) GetBalance(ctx context.Context, ownerID uuid.UUID, creditType Type) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int
	err := r.db.GetContext(ctx2, &balance, `
		SELECT balance FROM credit_balances
		WHERE owner_id = $1 AND credit_type = $2
		  AND (expires_at IS NULL OR expires_at > now())
	`, ownerID, creditType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return balance, nil
}

// Grant increases the balance inside its own transaction.
func (r *Repository) Grant(ctx context.Context, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string, description string, expiresAt *time.Time, maxBalance sql.NullInt64) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	txn, err := r.GrantTx(ctx2, tx, ownerID, amount, source, creditType, sourceID, description, expiresAt, maxBalance)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return txn, nil
}

// GrantTx increases the balance within an external transaction using a FOR
// UPDATE row lock. The caller owns commit/rollback.
func (r *Repository) GrantTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string, description string, expiresAt *time.Time, maxBalance sql.NullInt64) (*Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	bal, err := r.lockBalance(ctx, tx, ownerID, creditType, maxBalance)
	if err != nil {
		return nil, err
	}
	if err := r.settleExpiry(ctx, tx, bal, time.Now()); err != nil {
		return nil, err
	}

	newExpiry := bal.ExpiresAt
	if expiresAt != nil {
		newExpiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	return r.applyDelta(ctx, tx, ownerID, creditType, bal.Balance+amount, amount, source, sourceID, description, newExpiry, nil)
}

// Spend decreases the balance inside its own transaction. Fails with
// InsufficientCreditsError when the balance cannot cover the amount.
func (r *Repository) Spend(ctx context.Context, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	txn, err := r.SpendTx(ctx2, tx, ownerID, amount, source, creditType, sourceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return txn, nil
}

// SpendTx decreases the balance within an external transaction using a FOR
// UPDATE row lock. Used when a spend must be atomic with another write
// (creating a reservation). The caller owns commit/rollback.
func (r *Repository) SpendTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount int, source Source, creditType Type, sourceID *string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	bal, err := r.lockBalance(ctx, tx, ownerID, creditType, sql.NullInt64{})
	if err != nil {
		return nil, err
	}
	if err := r.settleExpiry(ctx, tx, bal, time.Now()); err != nil {
		return nil, err
	}

	if bal.Balance < amount {
		return nil, &InsufficientCreditsError{Have: bal.Balance, Need: amount}
	}

	return r.applyDelta(ctx, tx, ownerID, creditType, bal.Balance-amount, -amount, source, sourceID, "", bal.ExpiresAt, nil)
}

// AllocateMonthly applies the policy's monthly allocation once per calendar
// period. Re-running within the same period is a no-op (nil transaction).
func (r *Repository) AllocateMonthly(ctx context.Context, ownerID uuid.UUID, amount int, creditType Type, policy Policy, period string) (*Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	maxBalance := sql.NullInt64{}
	if policy.Kind == PolicyRollover && policy.CapBlocks > 0 {
		maxBalance = sql.NullInt64{Int64: int64(policy.CapBlocks), Valid: true}
	}

	bal, err := r.lockBalance(ctx2, tx, ownerID, creditType, maxBalance)
	if err != nil {
		return nil, err
	}

	if bal.LastAllocatedPeriod.Valid && bal.LastAllocatedPeriod.String == period {
		// Already allocated this period.
		return nil, tx.Commit()
	}

	if err := r.settleExpiry(ctx2, tx, bal, time.Now()); err != nil {
		return nil, err
	}

	current := bal.Balance
	delta, capped := policy.MonthlyDelta(current, amount)

	var txn *Transaction
	if delta != 0 {
		description := monthlyDescription(policy, current, amount, delta, capped)
		txn, err = r.applyDelta(ctx2, tx, ownerID, creditType, current+delta, delta, policy.Source(), nil, description, sql.NullTime{}, &period)
		if err != nil {
			return nil, err
		}
	} else {
		// Nothing to grant; still stamp the period so the allocation stays
		// once-per-month.
		if err := r.stampPeriod(ctx2, tx, ownerID, creditType, period); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return txn, nil
}

// RedeemPromo atomically checks and redeems a promo for an owner. The promo
// row lock serializes concurrent redemptions so a last remaining use cannot
// be granted twice.
func (r *Repository) RedeemPromo(ctx context.Context, ownerID uuid.UUID, code string, now time.Time) (*Transaction, *PromoCode, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var promo PromoCode
	err = tx.GetContext(ctx2, &promo, `
		SELECT id, code, credit_amount, credit_type, max_uses, uses_count, is_active, expires_at, created_at
		FROM promo_codes WHERE code = $1 FOR UPDATE
	`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrPromoNotFound
		}
		return nil, nil, fmt.Errorf("%w: lock promo", ErrInternal)
	}

	if !promo.Redeemable(now) {
		return nil, nil, ErrPromoNotFound
	}

	var alreadyRedeemed bool
	err = tx.GetContext(ctx2, &alreadyRedeemed, `
		SELECT EXISTS (SELECT 1 FROM promo_redemptions WHERE promo_code_id = $1 AND owner_id = $2)
	`, promo.ID, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: check redemption", ErrInternal)
	}
	if alreadyRedeemed {
		return nil, nil, ErrPromoAlreadyRedeemed
	}

	if promo.UsesExhausted() {
		return nil, nil, ErrPromoMaxUsesReached
	}

	_, err = tx.ExecContext(ctx2, `
		INSERT INTO promo_redemptions (id, promo_code_id, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), promo.ID, ownerID, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, nil, ErrPromoAlreadyRedeemed
		}
		return nil, nil, fmt.Errorf("%w: insert redemption", ErrInternal)
	}

	_, err = tx.ExecContext(ctx2, `
		UPDATE promo_codes SET uses_count = uses_count + 1 WHERE id = $1
	`, promo.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: increment promo uses", ErrInternal)
	}

	promoID := promo.ID.String()
	txn, err := r.GrantTx(ctx2, tx, ownerID, promo.CreditAmount, SourcePromoCode, promo.CreditType, &promoID, "promo code "+promo.Code, nil, sql.NullInt64{})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	promo.UsesCount++
	return txn, &promo, nil
}

// CreatePromo inserts a new promo code.
func (r *Repository) CreatePromo(ctx context.Context, promo *PromoCode) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO promo_codes (id, code, credit_amount, credit_type, max_uses, uses_count, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
	`, promo.ID, promo.Code, promo.CreditAmount, promo.CreditType, promo.MaxUses, promo.IsActive, promo.ExpiresAt, promo.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: duplicate code", ErrInvalidAmount)
		}
		return fmt.Errorf("%w: insert promo", ErrInternal)
	}
	return nil
}

// ListTransactions returns the owner's ledger history, newest first.
func (r *Repository) ListTransactions(ctx context.Context, ownerID uuid.UUID, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, owner_id, credit_type, amount, balance_after, source, source_id, description, created_at
		FROM credit_transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}

// ListOwnersWithBalances returns every owner holding at least one balance
// row, used by the monthly allocation sweep.
func (r *Repository) ListOwnersWithBalances(ctx context.Context) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	owners := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx2, &owners, `
		SELECT DISTINCT owner_id FROM credit_balances ORDER BY owner_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list owners", ErrInternal)
	}
	return owners, nil
}

// lockBalance creates the balance row if missing, then takes a FOR UPDATE
// lock on it, serializing every grant/spend for the (owner, credit_type).
func (r *Repository) lockBalance(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, creditType Type, maxBalance sql.NullInt64) (*Balance, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_balances (owner_id, credit_type, balance, max_balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, now(), now())
		ON CONFLICT (owner_id, credit_type) DO NOTHING
	`, ownerID, creditType, maxBalance)
	if err != nil {
		return nil, fmt.Errorf("%w: ensure balance row", ErrInternal)
	}

	var bal Balance
	err = tx.GetContext(ctx, &bal, `
		SELECT owner_id, credit_type, balance, max_balance, expires_at, last_allocated_period, created_at, updated_at
		FROM credit_balances
		WHERE owner_id = $1 AND credit_type = $2
		FOR UPDATE
	`, ownerID, creditType)
	if err != nil {
		return nil, fmt.Errorf("%w: lock balance row", ErrInternal)
	}
	return &bal, nil
}

// applyDelta writes the new balance and the paired audit row. Both happen in
// the caller's transaction, so they commit or roll back together.
func (r *Repository) applyDelta(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, creditType Type, newBalance, delta int, source Source, sourceID *string, description string, expiresAt sql.NullTime, period *string) (*Transaction, error) {
	if newBalance < 0 {
		return nil, &InsufficientCreditsError{Have: newBalance - delta, Need: -delta}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET balance = $3,
		    expires_at = $4,
		    last_allocated_period = COALESCE($5, last_allocated_period),
		    updated_at = now()
		WHERE owner_id = $1 AND credit_type = $2
	`, ownerID, creditType, newBalance, expiresAt, period)
	if err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	if description == "" {
		description = "credit balance adjustment"
	}

	txn := &Transaction{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CreditType:   creditType,
		Amount:       delta,
		BalanceAfter: newBalance,
		Source:       source,
		SourceID:     sourceID,
		Description:  description,
		CreatedAt:    time.Now(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, owner_id, credit_type, amount, balance_after, source, source_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, txn.ID, txn.OwnerID, txn.CreditType, txn.Amount, txn.BalanceAfter, txn.Source, txn.SourceID, txn.Description, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	return txn, nil
}

func (r *Repository) stampPeriod(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, creditType Type, period string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET last_allocated_period = $3, updated_at = now()
		WHERE owner_id = $1 AND credit_type = $2
	`, ownerID, creditType, period)
	if err != nil {
		return fmt.Errorf("%w: stamp allocation period", ErrInternal)
	}
	return nil
}

// settleExpiry zeroes a lapsed balance under the caller's row lock, writing
// the write-off to the ledger so every balance_after stays the prefix sum of
// the history. Must run before any other delta in the same transaction.
func (r *Repository) settleExpiry(ctx context.Context, tx *sqlx.Tx, bal *Balance, now time.Time) error {
	if !bal.ExpiresAt.Valid || bal.ExpiresAt.Time.After(now) {
		return nil
	}

	if bal.Balance > 0 {
		description := fmt.Sprintf("expired %d blocks (%s)", bal.Balance, bal.ExpiresAt.Time.Format("2006-01-02"))
		if _, err := r.applyDelta(ctx, tx, bal.OwnerID, bal.CreditType, 0, -bal.Balance, SourceExpiry, nil, description, sql.NullTime{}, nil); err != nil {
			return err
		}
	}

	bal.Balance = 0
	bal.ExpiresAt = sql.NullTime{}
	return nil
}

func monthlyDescription(policy Policy, current, requested, delta int, capped bool) string {
	if policy.Kind == PolicyReset {
		return fmt.Sprintf("monthly reset to %d blocks (discarded %d)", requested, current)
	}
	if capped {
		return fmt.Sprintf("monthly allocation capped: requested %d, granted %d (cap reached)", requested, delta)
	}
	return fmt.Sprintf("monthly allocation of %d blocks", delta)
}
