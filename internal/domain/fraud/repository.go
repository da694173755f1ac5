package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines fraud data access
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates fraud repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertAttempt(ctx context.Context, a *Attempt) error {
	query := `
		INSERT INTO fraud_attempts (id, provider, source_ip, kind, detail, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Provider, a.SourceIP, a.Kind, a.Detail, a.UserAgent)
	if err != nil {
		return fmt.Errorf("insert fraud attempt: %w", err)
	}
	return nil
}

// CountAttempts returns how many attempts the IP accumulated since the
// window start.
func (r *Repository) CountAttempts(ctx context.Context, sourceIP string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM fraud_attempts WHERE source_ip = $1 AND created_at >= $2`
	var count int
	err := r.db.GetContext(ctx, &count, query, sourceIP, since)
	return count, err
}

// AlertedSince reports whether the IP already triggered an alert after the
// given time. Used to suppress repeat alerts for a noisy source.
func (r *Repository) AlertedSince(ctx context.Context, sourceIP string, since time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM fraud_alerts WHERE source_ip = $1 AND created_at >= $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, sourceIP, since)
	return exists, err
}

func (r *Repository) InsertAlert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO fraud_alerts (id, source_ip, attempts, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query, a.ID, a.SourceIP, a.Attempts)
	if err != nil {
		return fmt.Errorf("insert fraud alert: %w", err)
	}
	return nil
}

// ListRecentAttempts returns the latest attempts for operator review.
func (r *Repository) ListRecentAttempts(ctx context.Context, limit int) ([]*Attempt, error) {
	query := `SELECT * FROM fraud_attempts ORDER BY created_at DESC LIMIT $1`
	var attempts []*Attempt
	err := r.db.SelectContext(ctx, &attempts, query, limit)
	return attempts, err
}
