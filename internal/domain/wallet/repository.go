package wallet

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ensure lazily creates a wallet on first access.
func (r *Repository) Ensure(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, bonus_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// Get returns the wallet, creating it when absent.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := r.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT user_id, balance, bonus_balance, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Entries lists ledger entries for audit views, newest first.
func (r *Repository) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*LedgerEntry, error) {
	var entries []*LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, direction, amount, kind, description, origin, destination, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}

// ApplyParams describes one balance movement.
type ApplyParams struct {
	UserID      uuid.UUID
	Direction   Direction
	Amount      int64
	Kind        Kind
	Description string
	Origin      string
	Destination string
}

// Apply appends a ledger entry and updates the denormalized balance in one
// transaction. The wallet row is locked for the duration, which serializes
// concurrent movements on the same wallet and keeps the balance non-negative.
func (r *Repository) Apply(ctx context.Context, p ApplyParams) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Kind != KindNormal && p.Kind != KindBonus {
		return ErrInvalidKind
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	balance, bonus, err := lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return err
	}

	current := balance
	if p.Kind == KindBonus {
		current = bonus
	}

	next := current + p.Amount
	if p.Direction == DirectionOut {
		next = current - p.Amount
	}
	if next < 0 {
		return ErrInsufficientFunds
	}

	if err := insertEntry(ctx, tx, p); err != nil {
		return err
	}
	if err := updateBalance(ctx, tx, p.UserID, p.Kind, next); err != nil {
		return err
	}

	return tx.Commit()
}

// CreditPurchase credits a confirmed payment: the paid amount on the normal
// balance plus an optional bonus-class credit, in a single transaction.
func (r *Repository) CreditPurchase(ctx context.Context, userID uuid.UUID, amount, bonusAmount int64, method string) error {
	if amount <= 0 || bonusAmount < 0 {
		return ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	balance, bonus, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	if err := insertEntry(ctx, tx, ApplyParams{
		UserID:      userID,
		Direction:   DirectionIn,
		Amount:      amount,
		Kind:        KindNormal,
		Description: "Purchase credit via " + method,
		Origin:      method,
		Destination: "wallet",
	}); err != nil {
		return err
	}
	if err := updateBalance(ctx, tx, userID, KindNormal, balance+amount); err != nil {
		return err
	}

	if bonusAmount > 0 {
		if err := insertEntry(ctx, tx, ApplyParams{
			UserID:      userID,
			Direction:   DirectionIn,
			Amount:      bonusAmount,
			Kind:        KindBonus,
			Description: "Purchase bonus via " + method,
			Origin:      method,
			Destination: "wallet",
		}); err != nil {
			return err
		}
		if err := updateBalance(ctx, tx, userID, KindBonus, bonus+bonusAmount); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (balance, bonus int64, err error) {
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, bonus_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, 0, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT balance, bonus_balance FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID)
	err = row.Scan(&balance, &bonus)
	return balance, bonus, err
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, p ApplyParams) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, direction, amount, kind, description, origin, destination, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), p.UserID, string(p.Direction), p.Amount, string(p.Kind), p.Description, p.Origin, p.Destination, time.Now())
	return err
}

func updateBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, kind Kind, next int64) error {
	column := "balance"
	if kind == KindBonus {
		column = "bonus_balance"
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET `+column+` = $1, updated_at = now() WHERE user_id = $2
	`, next, userID)
	return err
}
