package fraud

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/pkg/metrics"
)

// Store is the persistence surface the monitor needs.
type Store interface {
	InsertAttempt(ctx context.Context, a *Attempt) error
	CountAttempts(ctx context.Context, sourceIP string, since time.Time) (int, error)
	AlertedSince(ctx context.Context, sourceIP string, since time.Time) (bool, error)
	InsertAlert(ctx context.Context, a *Alert) error
}

// Notifier delivers fraud alerts to operators.
type Notifier interface {
	NotifyFraudAlert(ctx context.Context, alert Alert) error
}

// Config carries detection settings.
type Config struct {
	Threshold     int           // attempts per IP that trigger an alert
	Window        time.Duration // detection window
	AlertCooldown time.Duration // minimum gap between alerts for one IP
}

// Service records failed webhook verifications and raises an alert when one
// source IP crosses the threshold inside the window. Alerts for the same IP
// are suppressed for the cooldown so a sustained probe produces one page,
// not hundreds.
type Service struct {
	cfg      Config
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewService(cfg Config, store Store, notifier Notifier) *Service {
	return &Service{cfg: cfg, store: store, notifier: notifier, now: time.Now}
}

// Record persists one failed verification and evaluates the alert rule.
// Recording never fails the webhook response path: evaluation errors are
// logged and swallowed.
func (s *Service) Record(ctx context.Context, provider, sourceIP, kind, detail, userAgent string) error {
	if err := s.store.InsertAttempt(ctx, &Attempt{
		Provider:  provider,
		SourceIP:  sourceIP,
		Kind:      kind,
		Detail:    detail,
		UserAgent: userAgent,
	}); err != nil {
		return err
	}
	metrics.FraudAttemptsTotal.WithLabelValues(provider, kind).Inc()

	log.Warn().
		Str("provider", provider).
		Str("source_ip", sourceIP).
		Str("kind", kind).
		Msg("webhook verification failed")

	if err := s.evaluate(ctx, sourceIP); err != nil {
		log.Error().Err(err).Str("source_ip", sourceIP).Msg("fraud alert evaluation failed")
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, sourceIP string) error {
	count, err := s.store.CountAttempts(ctx, sourceIP, s.now().Add(-s.cfg.Window))
	if err != nil {
		return err
	}
	if count < s.cfg.Threshold {
		return nil
	}

	alerted, err := s.store.AlertedSince(ctx, sourceIP, s.now().Add(-s.cfg.AlertCooldown))
	if err != nil {
		return err
	}
	if alerted {
		return nil
	}

	alert := Alert{SourceIP: sourceIP, Attempts: count}
	if err := s.store.InsertAlert(ctx, &alert); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyFraudAlert(ctx, alert); err != nil {
			log.Error().Err(err).Str("source_ip", sourceIP).Msg("fraud alert notification failed")
		}
	}
	return nil
}

// LogNotifier surfaces alerts as critical log events, the channel operators
// actually watch.
type LogNotifier struct{}

func (LogNotifier) NotifyFraudAlert(_ context.Context, alert Alert) error {
	log.Error().
		Str("incident", "fraud_alert").
		Str("source_ip", alert.SourceIP).
		Int("attempts", alert.Attempts).
		Msg("repeated webhook forgery attempts from one source")
	return nil
}
