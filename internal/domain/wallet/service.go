package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Entries(ctx, userID, limit, offset)
}

// CreditPurchase is the webhook pipeline's entry point for crediting a
// confirmed payment.
func (s *Service) CreditPurchase(ctx context.Context, userID uuid.UUID, amount, bonus int64, method string) error {
	if err := s.repo.CreditPurchase(ctx, userID, amount, bonus, method); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("bonus", bonus).
		Str("method", method).
		Msg("wallet purchase credited")
	return nil
}
