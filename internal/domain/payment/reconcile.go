package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/pkg/metrics"
)

// ReconcilePending sweeps orders that never received a terminal webhook and
// settles them from the provider's records. Orders younger than cutoff are
// left alone so the sweep does not race a webhook that is simply in flight.
// Returns the number of orders concluded.
func (s *Service) ReconcilePending(ctx context.Context, cutoff time.Duration) (int, error) {
	before := time.Now().Add(-cutoff)
	orders, err := s.store.ListStalePending(ctx, before)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, order := range orders {
		if order.Provider != ProviderMercadoPago {
			continue
		}

		payments, err := s.payments.SearchByReference(ctx, order.ID.String())
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("reconcile: provider lookup failed")
			continue
		}

		for i := range payments {
			p := &payments[i]
			if !p.Approved() {
				continue
			}
			concluded, err := s.applyPayment(ctx, p, "reconcile", "", "")
			if err != nil {
				log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("reconcile: apply failed")
				continue
			}
			if concluded {
				reconciled++
				metrics.ReconciledOrdersTotal.Inc()
			}
			break
		}
	}

	if reconciled > 0 || len(orders) > 0 {
		log.Info().
			Int("candidates", len(orders)).
			Int("reconciled", reconciled).
			Dur("cutoff", cutoff).
			Msg("reconciliation sweep finished")
	}
	return reconciled, nil
}
