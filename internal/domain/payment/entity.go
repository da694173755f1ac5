package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents order status
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderFailed     OrderStatus = "failed"
)

// AttemptStatus represents the provider-side state of one payment attempt
type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptApproved AttemptStatus = "approved"
	AttemptPaid     AttemptStatus = "paid"
	AttemptRejected AttemptStatus = "rejected"
)

// Provider represents payment provider
type Provider string

const (
	ProviderMercadoPago Provider = "mercadopago"
	ProviderStripe      Provider = "stripe"
	ProviderManual      Provider = "manual"
)

// Order is one purchase of wallet credit. Amounts are minor currency units.
// BonusAmount is the promotional extra credited alongside Amount when the
// order is confirmed.
type Order struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	UserID      uuid.UUID      `db:"user_id" json:"user_id"`
	Provider    Provider       `db:"provider" json:"provider"`
	Amount      int64          `db:"amount" json:"amount"`
	BonusAmount int64          `db:"bonus_amount" json:"bonus_amount"`
	Status      OrderStatus    `db:"status" json:"status"`
	ConfirmedBy sql.NullString `db:"confirmed_by" json:"confirmed_by,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Attempt is one provider-side payment created for an order. A single order
// can accumulate several attempts (retries, switched cards).
type Attempt struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	OrderID    uuid.UUID     `db:"order_id" json:"order_id"`
	Provider   Provider      `db:"provider" json:"provider"`
	ExternalID string        `db:"external_id" json:"external_id"`
	Status     AttemptStatus `db:"status" json:"status"`
	Amount     int64         `db:"amount" json:"amount"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// WebhookEvent is one verified provider delivery. The (provider, event_id)
// pair is unique, which is what makes redelivery harmless.
type WebhookEvent struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Provider   Provider  `db:"provider" json:"provider"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Payload    []byte    `db:"payload" json:"-"`
	SourceIP   string    `db:"source_ip" json:"source_ip"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}
