package transfer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AccountRepository resolves the game account a portal user has linked.
// One active link per user; transfers only move value through it.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// AccountFor returns the user's linked game account name, or "" when the
// user never linked one.
func (r *AccountRepository) AccountFor(ctx context.Context, userID uuid.UUID) (string, error) {
	var account string
	err := r.db.GetContext(ctx, &account, `
		SELECT account_name FROM game_accounts WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return account, nil
}
