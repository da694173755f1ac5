package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/pkg/mercadopago"
	"github.com/gameportal/portal-api/internal/pkg/metrics"
	"github.com/gameportal/portal-api/internal/pkg/stripehook"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*Order, error)
	ConcludeOrder(ctx context.Context, id uuid.UUID, status OrderStatus, confirmedBy string) (bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpsertAttempt(ctx context.Context, a *Attempt) error
	InsertWebhookEvent(ctx context.Context, e *WebhookEvent) (bool, error)
}

// WalletCrediter applies the confirmed order's value to the buyer's wallet.
type WalletCrediter interface {
	CreditPurchase(ctx context.Context, userID uuid.UUID, amount, bonusAmount int64, method string) error
}

// FraudRecorder is notified about deliveries that failed verification.
type FraudRecorder interface {
	Record(ctx context.Context, provider, sourceIP, kind, detail, userAgent string) error
}

// PaymentsAPI is the provider query surface used to resolve webhook
// notifications and to reconcile stale orders.
type PaymentsAPI interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	SearchByReference(ctx context.Context, reference string) ([]mercadopago.Payment, error)
}

// Config carries pipeline settings.
type Config struct {
	BonusPercent int64 // promotional bonus credited on top of the paid amount
}

// Service runs the webhook pipeline: verify the delivery, record it exactly
// once, and conclude the order with a first-writer-wins update so repeated
// deliveries and the reconciliation sweep can never double-credit a wallet.
type Service struct {
	cfg      Config
	store    Store
	wallet   WalletCrediter
	fraud    FraudRecorder
	mpSig    *mercadopago.Verifier
	stripe   *stripehook.Verifier
	payments PaymentsAPI
}

func NewService(cfg Config, store Store, wallet WalletCrediter, fraud FraudRecorder, mpSig *mercadopago.Verifier, stripe *stripehook.Verifier, payments PaymentsAPI) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		wallet:   wallet,
		fraud:    fraud,
		mpSig:    mpSig,
		stripe:   stripe,
		payments: payments,
	}
}

// CreateOrder opens a new pending purchase for the user.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, provider Provider, amount int64) (*Order, error) {
	o := &Order{
		UserID:      userID,
		Provider:    provider,
		Amount:      amount,
		BonusAmount: amount * s.cfg.BonusPercent / 100,
		Status:      OrderPending,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	log.Info().
		Str("order_id", o.ID.String()).
		Str("user_id", userID.String()).
		Str("provider", string(provider)).
		Int64("amount", amount).
		Int64("bonus", o.BonusAmount).
		Msg("payment order created")
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListOrdersByUser(ctx, userID, limit, offset)
}

// MercadoPagoDelivery is one inbound notification plus its authentication
// material.
type MercadoPagoDelivery struct {
	SignatureHeader string
	RequestID       string
	DataID          string // "data.id" query parameter
	Body            []byte
	SourceIP        string
	UserAgent       string
}

type mpNotification struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleMercadoPago processes one delivery. A verification failure is
// recorded as a fraud attempt and surfaces as ErrVerification; the transport
// layer maps that to a client error.
func (s *Service) HandleMercadoPago(ctx context.Context, d MercadoPagoDelivery) error {
	if err := s.mpSig.Verify(d.SignatureHeader, d.DataID, d.RequestID); err != nil {
		s.recordFraud(ctx, ProviderMercadoPago, d.SourceIP, verificationKind(err), err.Error(), d.UserAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderMercadoPago), "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrVerification, err)
	}

	var note mpNotification
	if err := json.Unmarshal(d.Body, &note); err != nil {
		s.recordFraud(ctx, ProviderMercadoPago, d.SourceIP, "malformed_body", "webhook body is not valid JSON", d.UserAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderMercadoPago), "rejected").Inc()
		return fmt.Errorf("%w: invalid body", ErrVerification)
	}
	if note.Type != "payment" {
		// Other topics are acknowledged without side effects.
		return nil
	}

	paymentID := note.Data.ID
	if paymentID == "" {
		paymentID = d.DataID
	}

	eventID := strconv.FormatInt(note.ID, 10)
	if note.ID == 0 {
		eventID = note.Action + ":" + paymentID
	}
	inserted, err := s.store.InsertWebhookEvent(ctx, &WebhookEvent{
		Provider:  ProviderMercadoPago,
		EventID:   eventID,
		EventType: note.Action,
		Payload:   d.Body,
		SourceIP:  d.SourceIP,
	})
	if err != nil {
		return err
	}
	if !inserted {
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderMercadoPago), "duplicate").Inc()
		log.Debug().Str("event_id", eventID).Msg("mercadopago webhook redelivered")
		return nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(ProviderMercadoPago), "accepted").Inc()

	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("resolve payment %s: %w", paymentID, err)
	}
	_, err = s.applyPayment(ctx, p, "webhook", d.SourceIP, d.UserAgent)
	return err
}

// applyPayment records the attempt state and concludes the order when the
// payment reached approval. Shared by the webhook path and the sweep.
// Returns true when this call actually concluded the order.
func (s *Service) applyPayment(ctx context.Context, p *mercadopago.Payment, source, sourceIP, userAgent string) (bool, error) {
	orderID, err := uuid.Parse(p.ExternalReference)
	if err != nil {
		log.Warn().Str("external_reference", p.ExternalReference).Msg("payment references no known order")
		return false, nil
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		log.Warn().Str("order_id", orderID.String()).Msg("payment references missing order")
		return false, nil
	}

	paid := int64(p.TransactionAmount * 100)
	if p.Approved() && paid != order.Amount {
		// The provider confirms a different amount than the order declares.
		// Whatever was paid, it does not settle this order.
		s.recordFraud(ctx, ProviderMercadoPago, sourceIP, "tampered_amount",
			fmt.Sprintf("order %s expects %d, provider reports %d", order.ID, order.Amount, paid), userAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderMercadoPago), "rejected").Inc()
		if err := s.store.UpsertAttempt(ctx, &Attempt{
			OrderID:    order.ID,
			Provider:   ProviderMercadoPago,
			ExternalID: strconv.FormatInt(p.ID, 10),
			Status:     AttemptRejected,
			Amount:     paid,
		}); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: paid amount does not match order", ErrVerification)
	}

	if err := s.store.UpsertAttempt(ctx, &Attempt{
		OrderID:    order.ID,
		Provider:   ProviderMercadoPago,
		ExternalID: strconv.FormatInt(p.ID, 10),
		Status:     attemptStatus(p.Status),
		Amount:     paid,
	}); err != nil {
		return false, err
	}

	if !p.Approved() {
		if err := s.store.MarkProcessing(ctx, order.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	return s.conclude(ctx, order, source)
}

// conclude confirms the order and credits the wallet. The guarded update is
// the single point that decides which caller wins; only the winner credits.
func (s *Service) conclude(ctx context.Context, order *Order, confirmedBy string) (bool, error) {
	won, err := s.store.ConcludeOrder(ctx, order.ID, OrderConfirmed, confirmedBy)
	if err != nil {
		return false, err
	}
	if !won {
		log.Debug().Str("order_id", order.ID.String()).Msg("order already concluded")
		return false, nil
	}

	if err := s.wallet.CreditPurchase(ctx, order.UserID, order.Amount, order.BonusAmount, string(order.Provider)); err != nil {
		// The order is confirmed but the wallet was not credited. This must
		// surface loudly for manual follow-up.
		log.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("user_id", order.UserID.String()).
			Int64("amount", order.Amount).
			Msg("order confirmed but wallet credit failed")
		return true, err
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID.String()).
		Int64("amount", order.Amount).
		Int64("bonus", order.BonusAmount).
		Str("confirmed_by", confirmedBy).
		Msg("order confirmed")
	return true, nil
}

// StripeDelivery is one inbound Stripe event plus its signature header.
type StripeDelivery struct {
	SignatureHeader string
	Body            []byte
	SourceIP        string
	UserAgent       string
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Metadata struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
			AmountTotal   int64  `json:"amount_total"`
			PaymentStatus string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

// HandleStripe processes one event delivery.
func (s *Service) HandleStripe(ctx context.Context, d StripeDelivery) error {
	if err := s.stripe.Verify(d.SignatureHeader, d.Body); err != nil {
		s.recordFraud(ctx, ProviderStripe, d.SourceIP, verificationKind(err), err.Error(), d.UserAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderStripe), "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrVerification, err)
	}

	var event stripeEvent
	if err := json.Unmarshal(d.Body, &event); err != nil || event.ID == "" {
		s.recordFraud(ctx, ProviderStripe, d.SourceIP, "malformed_body", "event body is not a valid event", d.UserAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderStripe), "rejected").Inc()
		return fmt.Errorf("%w: invalid body", ErrVerification)
	}

	inserted, err := s.store.InsertWebhookEvent(ctx, &WebhookEvent{
		Provider:  ProviderStripe,
		EventID:   event.ID,
		EventType: event.Type,
		Payload:   d.Body,
		SourceIP:  d.SourceIP,
	})
	if err != nil {
		return err
	}
	if !inserted {
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderStripe), "duplicate").Inc()
		return nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(ProviderStripe), "accepted").Inc()

	if event.Type != "checkout.session.completed" {
		return nil
	}

	orderID, err := uuid.Parse(event.Data.Object.Metadata.OrderID)
	if err != nil {
		log.Warn().Str("order_id", event.Data.Object.Metadata.OrderID).Msg("stripe event references no known order")
		return nil
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		log.Warn().Str("order_id", orderID.String()).Msg("stripe event references missing order")
		return nil
	}

	// A session completes even when an async payment method has not settled
	// yet; only payment_status "paid" means money arrived.
	if event.Data.Object.PaymentStatus != "paid" {
		if err := s.store.UpsertAttempt(ctx, &Attempt{
			OrderID:    order.ID,
			Provider:   ProviderStripe,
			ExternalID: event.Data.Object.ID,
			Status:     AttemptPending,
			Amount:     event.Data.Object.AmountTotal,
		}); err != nil {
			return err
		}
		return s.store.MarkProcessing(ctx, order.ID)
	}

	if event.Data.Object.AmountTotal != order.Amount {
		s.recordFraud(ctx, ProviderStripe, d.SourceIP, "tampered_amount",
			fmt.Sprintf("order %s expects %d, session paid %d", order.ID, order.Amount, event.Data.Object.AmountTotal), d.UserAgent)
		metrics.WebhookEventsTotal.WithLabelValues(string(ProviderStripe), "rejected").Inc()
		if err := s.store.UpsertAttempt(ctx, &Attempt{
			OrderID:    order.ID,
			Provider:   ProviderStripe,
			ExternalID: event.Data.Object.ID,
			Status:     AttemptRejected,
			Amount:     event.Data.Object.AmountTotal,
		}); err != nil {
			return err
		}
		return fmt.Errorf("%w: paid amount does not match order", ErrVerification)
	}

	if err := s.store.UpsertAttempt(ctx, &Attempt{
		OrderID:    order.ID,
		Provider:   ProviderStripe,
		ExternalID: event.Data.Object.ID,
		Status:     AttemptPaid,
		Amount:     event.Data.Object.AmountTotal,
	}); err != nil {
		return err
	}

	_, err = s.conclude(ctx, order, "webhook")
	return err
}

// ConfirmManually concludes an order on operator authority, outside any
// provider flow. The same guarded update applies, so a racing webhook still
// produces a single credit.
func (s *Service) ConfirmManually(ctx context.Context, orderID uuid.UUID, operator string) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	won, err := s.conclude(ctx, order, "manual:"+operator)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyConcluded
	}
	return nil
}

func (s *Service) recordFraud(ctx context.Context, provider Provider, sourceIP, kind, detail, userAgent string) {
	if s.fraud == nil {
		return
	}
	if err := s.fraud.Record(ctx, string(provider), sourceIP, kind, detail, userAgent); err != nil {
		log.Error().Err(err).Msg("fraud attempt record failed")
	}
}

// verificationKind classifies a verifier error for the fraud log. Both
// provider packages share the same sentinel set.
func verificationKind(err error) string {
	switch {
	case errors.Is(err, mercadopago.ErrMissingSignature), errors.Is(err, stripehook.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, mercadopago.ErrMalformedHeader), errors.Is(err, stripehook.ErrMalformedHeader):
		return "malformed_signature"
	case errors.Is(err, mercadopago.ErrStaleTimestamp), errors.Is(err, stripehook.ErrStaleTimestamp):
		return "replay"
	default:
		return "invalid_signature"
	}
}

func attemptStatus(providerStatus string) AttemptStatus {
	switch providerStatus {
	case "approved":
		return AttemptApproved
	case "rejected", "cancelled":
		return AttemptRejected
	default:
		return AttemptPending
	}
}
