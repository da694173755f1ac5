package wallet

import (
	"time"

	"github.com/google/uuid"
)

// Direction of a ledger entry relative to the wallet.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Kind is the balance class an entry applies to.
type Kind string

const (
	KindNormal Kind = "normal"
	KindBonus  Kind = "bonus"
)

// Wallet holds the denormalized balances for one user. Amounts are minor
// currency units. Both balances are backed by the append-only ledger and must
// equal the signed sum of their entries at all times.
type Wallet struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Balance      int64     `db:"balance" json:"balance"`
	BonusBalance int64     `db:"bonus_balance" json:"bonus_balance"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one immutable, append-only balance movement.
type LedgerEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Direction   Direction `db:"direction" json:"direction"`
	Amount      int64     `db:"amount" json:"amount"`
	Kind        Kind      `db:"kind" json:"kind"`
	Description string    `db:"description" json:"description"`
	Origin      string    `db:"origin" json:"origin"`
	Destination string    `db:"destination" json:"destination"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
