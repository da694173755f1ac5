package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Incident is a compensation failure: the remote leg failed and the local
// reversal failed too. Automatic recovery stops here; the record carries the
// full context an operator needs to reconcile by hand.
type Incident struct {
	ID            uuid.UUID `db:"id"`
	UserID        uuid.UUID `db:"user_id"`
	Direction     string    `db:"direction"`
	Amount        int64     `db:"amount"`
	Kind          string    `db:"kind"`
	Account       string    `db:"account"`
	CharacterName string    `db:"character_name"`
	RemoteError   string    `db:"remote_error"`
	ReversalError string    `db:"reversal_error"`
	CreatedAt     time.Time `db:"created_at"`
}

type IncidentRepository struct {
	db *sqlx.DB
}

func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (r *IncidentRepository) Record(ctx context.Context, inc Incident) error {
	if inc.ID == uuid.Nil {
		inc.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO compensation_failures
			(id, user_id, direction, amount, kind, account, character_name, remote_error, reversal_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, inc.ID, inc.UserID, inc.Direction, inc.Amount, inc.Kind, inc.Account, inc.CharacterName, inc.RemoteError, inc.ReversalError)
	return err
}
