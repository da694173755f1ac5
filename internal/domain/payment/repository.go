package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines payment data access
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateOrder(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO payment_orders (id, user_id, provider, amount, bonus_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	_, err := r.db.ExecContext(ctx, query, o.ID, o.UserID, o.Provider, o.Amount, o.BonusAmount, o.Status)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT * FROM payment_orders WHERE id = $1`
	var o Order
	err := r.db.GetContext(ctx, &o, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, error) {
	query := `
		SELECT * FROM payment_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var orders []*Order
	err := r.db.SelectContext(ctx, &orders, query, userID, limit, offset)
	return orders, err
}

// ListStalePending returns orders still pending or processing that were
// created before the cutoff. These are the reconciliation sweep candidates.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	query := `
		SELECT * FROM payment_orders
		WHERE status IN ('pending', 'processing') AND created_at < $1
		ORDER BY created_at
	`
	var orders []*Order
	err := r.db.SelectContext(ctx, &orders, query, cutoff)
	return orders, err
}

// ConcludeOrder moves an order to a terminal status. The guard on the
// current status makes the operation first-writer-wins: a concurrent webhook
// and reconciliation sweep race here, and exactly one of them gets
// concluded=true. The caller credits the wallet only on true.
func (r *Repository) ConcludeOrder(ctx context.Context, id uuid.UUID, status OrderStatus, confirmedBy string) (bool, error) {
	if status != OrderConfirmed && status != OrderFailed {
		return false, fmt.Errorf("conclude order: %s is not a terminal status", status)
	}
	query := `
		UPDATE payment_orders
		SET status = $2, confirmed_by = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, id, status, confirmedBy)
	if err != nil {
		return false, fmt.Errorf("conclude order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// MarkProcessing records that a provider attempt exists for the order. The
// transition is pending -> processing only; terminal orders are untouched.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE payment_orders
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpsertAttempt records the latest provider-side state of one external
// payment. Keyed by (provider, external_id) so status updates from repeated
// webhooks overwrite in place.
func (r *Repository) UpsertAttempt(ctx context.Context, a *Attempt) error {
	query := `
		INSERT INTO payment_attempts (id, order_id, provider, external_id, status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (provider, external_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query, a.ID, a.OrderID, a.Provider, a.ExternalID, a.Status, a.Amount)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

func (r *Repository) ListAttempts(ctx context.Context, orderID uuid.UUID) ([]*Attempt, error) {
	query := `SELECT * FROM payment_attempts WHERE order_id = $1 ORDER BY created_at`
	var attempts []*Attempt
	err := r.db.SelectContext(ctx, &attempts, query, orderID)
	return attempts, err
}

// InsertWebhookEvent persists one verified delivery. Returns false when the
// (provider, event_id) pair was already recorded, which is how redelivered
// webhooks are detected.
func (r *Repository) InsertWebhookEvent(ctx context.Context, e *WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (id, provider, event_id, event_type, payload, source_ip, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	res, err := r.db.ExecContext(ctx, query, e.ID, e.Provider, e.EventID, e.EventType, e.Payload, e.SourceIP)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
