package transfer

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/domain/wallet"
	"github.com/gameportal/portal-api/internal/pkg/gamedb"
	"github.com/gameportal/portal-api/internal/pkg/idempotency"
	"github.com/gameportal/portal-api/internal/pkg/metrics"
)

// Direction of a transfer as seen from the wallet.
type Direction string

const (
	DirectionToCharacter   Direction = "wallet_to_char"
	DirectionFromCharacter Direction = "char_to_wallet"
)

// Request is one logical transfer between a wallet and a game character.
type Request struct {
	UserID    uuid.UUID
	Account   string
	Character string
	Amount    int64 // minor currency units
	Kind      wallet.Kind
}

// Result reports a successfully applied transfer.
type Result struct {
	Amount int64 `json:"amount"`
	Coins  int64 `json:"coins"`
}

// LedgerStore is the local leg.
type LedgerStore interface {
	Apply(ctx context.Context, p wallet.ApplyParams) error
}

// GameStore is the remote leg.
type GameStore interface {
	Available(ctx context.Context) bool
	RequiresOffline() bool
	FindCharacter(ctx context.Context, account, name string) (*gamedb.Character, error)
	CreditCoin(ctx context.Context, charID int64, itemID int, amount int64) error
	DebitCoin(ctx context.Context, charID int64, itemID int, amount int64) error
}

// AccountResolver maps a portal user to the game account they linked.
type AccountResolver interface {
	AccountFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// Deduper guards each dedupe key with an in-progress lock and a completion marker.
type Deduper interface {
	AcquireLock(ctx context.Context, key string) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	MarkCompleted(ctx context.Context, key string) error
	IsCompleted(ctx context.Context, key string) (bool, error)
}

// IncidentStore records compensation failures for manual reconciliation.
type IncidentStore interface {
	Record(ctx context.Context, inc Incident) error
}

// Config carries transfer bounds and the coin conversion.
type Config struct {
	MinAmount      int64
	MaxAmount      int64
	CoinID         int
	CoinMultiplier int64 // game coins per major currency unit
	BonusEnabled   bool
}

// Service coordinates value movement between the local ledger and the game
// store. It guarantees at most one net wallet effect per dedupe key and
// compensates the local leg synchronously when the remote leg fails.
type Service struct {
	cfg       Config
	ledger    LedgerStore
	game      GameStore
	accounts  AccountResolver
	dedupe    Deduper
	incidents IncidentStore
}

func NewService(cfg Config, ledger LedgerStore, game GameStore, accounts AccountResolver, dedupe Deduper, incidents IncidentStore) *Service {
	return &Service{cfg: cfg, ledger: ledger, game: game, accounts: accounts, dedupe: dedupe, incidents: incidents}
}

// ToCharacter moves wallet balance onto a game character as coins.
func (s *Service) ToCharacter(ctx context.Context, req Request) (*Result, error) {
	res, err := s.run(ctx, DirectionToCharacter, req)
	s.count(DirectionToCharacter, err)
	return res, err
}

// FromCharacter moves coins off a game character back into the wallet.
func (s *Service) FromCharacter(ctx context.Context, req Request) (*Result, error) {
	res, err := s.run(ctx, DirectionFromCharacter, req)
	s.count(DirectionFromCharacter, err)
	return res, err
}

func (s *Service) run(ctx context.Context, dir Direction, req Request) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// The caller only ever moves value through their own linked account; a
	// request naming someone else's account is rejected before any leg runs.
	linked, err := s.accounts.AccountFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if linked == "" || !strings.EqualFold(linked, req.Account) {
		return nil, ErrCharacterNotOwned
	}

	if !s.game.Available(ctx) {
		return nil, ErrGameUnavailable
	}

	char, err := s.game.FindCharacter(ctx, req.Account, req.Character)
	if err != nil {
		return nil, ErrGameUnavailable
	}
	if char == nil {
		return nil, ErrCharacterNotFound
	}
	if s.game.RequiresOffline() && char.Online {
		return nil, ErrCharacterOnline
	}

	key := dedupeKey(dir, req)

	acquired, err := s.dedupe.AcquireLock(ctx, key)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrInProgress
	}
	defer func() {
		if relErr := s.dedupe.ReleaseLock(ctx, key); relErr != nil {
			log.Warn().Err(relErr).Str("key", key).Msg("transfer lock release failed")
		}
	}()

	done, err := s.dedupe.IsCompleted(ctx, key)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrDuplicate
	}

	coins := req.Amount * s.cfg.CoinMultiplier / 100

	// Local leg first: once this commits the sequence must run to a terminal
	// state, success or compensated, before returning.
	if err := s.ledger.Apply(ctx, s.localLeg(dir, req, char)); err != nil {
		return nil, err
	}

	if err := s.remoteLeg(ctx, dir, char, coins); err != nil {
		if compErr := s.compensate(ctx, dir, req, char, err); compErr != nil {
			return nil, compErr
		}
		if err == gamedb.ErrInsufficientItems {
			return nil, err
		}
		return nil, ErrRemoteFailed
	}

	if err := s.dedupe.MarkCompleted(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("transfer completion marker write failed")
	}

	log.Info().
		Str("user_id", req.UserID.String()).
		Str("direction", string(dir)).
		Str("character", char.Name).
		Int64("amount", req.Amount).
		Int64("coins", coins).
		Str("kind", string(req.Kind)).
		Msg("transfer applied")

	return &Result{Amount: req.Amount, Coins: coins}, nil
}

// dedupeKey identifies one logical transfer. Two requests with the same user,
// character, amount, kind and direction are the same transfer.
func dedupeKey(dir Direction, req Request) string {
	return idempotency.Key(
		string(dir),
		req.UserID.String(),
		req.Character,
		strconv.FormatInt(req.Amount, 10),
		string(req.Kind),
	)
}

func (s *Service) validate(req Request) error {
	if req.Amount < s.cfg.MinAmount || req.Amount > s.cfg.MaxAmount {
		return ErrAmountOutOfRange
	}
	switch req.Kind {
	case wallet.KindNormal:
	case wallet.KindBonus:
		if !s.cfg.BonusEnabled {
			return ErrBonusDisabled
		}
	default:
		return wallet.ErrInvalidKind
	}
	return nil
}

func (s *Service) localLeg(dir Direction, req Request, char *gamedb.Character) wallet.ApplyParams {
	p := wallet.ApplyParams{
		UserID: req.UserID,
		Amount: req.Amount,
		Kind:   req.Kind,
	}
	if dir == DirectionToCharacter {
		p.Direction = wallet.DirectionOut
		p.Description = "Transfer to game server"
		p.Origin = req.Account
		p.Destination = char.Name
	} else {
		p.Direction = wallet.DirectionIn
		p.Description = "Transfer from game server"
		p.Origin = char.Name
		p.Destination = req.Account
	}
	if req.Kind == wallet.KindBonus {
		p.Description += " (bonus)"
	}
	return p
}

func (s *Service) remoteLeg(ctx context.Context, dir Direction, char *gamedb.Character, coins int64) error {
	if dir == DirectionToCharacter {
		return s.game.CreditCoin(ctx, char.ID, s.cfg.CoinID, coins)
	}
	return s.game.DebitCoin(ctx, char.ID, s.cfg.CoinID, coins)
}

// compensate reverses the committed local leg after a remote failure. Its own
// failure is the one case the design cannot self-heal: the incident is
// durably recorded with full context and surfaced as a critical event.
func (s *Service) compensate(ctx context.Context, dir Direction, req Request, char *gamedb.Character, remoteErr error) error {
	p := wallet.ApplyParams{
		UserID: req.UserID,
		Amount: req.Amount,
		Kind:   req.Kind,
	}
	if dir == DirectionToCharacter {
		p.Direction = wallet.DirectionIn
		p.Description = "Reversal: game server credit failed"
		p.Origin = char.Name
		p.Destination = req.Account
	} else {
		p.Direction = wallet.DirectionOut
		p.Description = "Reversal: game server debit failed"
		p.Origin = req.Account
		p.Destination = char.Name
	}
	if req.Kind == wallet.KindBonus {
		p.Description += " (bonus)"
	}

	if err := s.ledger.Apply(ctx, p); err != nil {
		metrics.CompensationsTotal.WithLabelValues("failed").Inc()

		inc := Incident{
			UserID:        req.UserID,
			Direction:     string(dir),
			Amount:        req.Amount,
			Kind:          string(req.Kind),
			Account:       req.Account,
			CharacterName: char.Name,
			RemoteError:   remoteErr.Error(),
			ReversalError: err.Error(),
		}
		if recErr := s.incidents.Record(ctx, inc); recErr != nil {
			log.Error().Err(recErr).Msg("compensation incident record failed")
		}

		log.Error().
			Str("incident", "compensation_failure").
			Str("user_id", req.UserID.String()).
			Str("direction", string(dir)).
			Int64("amount", req.Amount).
			Str("kind", string(req.Kind)).
			Str("character", char.Name).
			AnErr("remote_error", remoteErr).
			AnErr("reversal_error", err).
			Msg("compensating reversal failed, manual reconciliation required")
		return ErrCompensationFailed
	}

	metrics.CompensationsTotal.WithLabelValues("applied").Inc()
	log.Warn().
		Str("user_id", req.UserID.String()).
		Str("direction", string(dir)).
		Int64("amount", req.Amount).
		AnErr("remote_error", remoteErr).
		Msg("transfer reverted after remote failure")
	return nil
}

func (s *Service) count(dir Direction, err error) {
	outcome := "applied"
	switch {
	case err == nil:
	case err == ErrDuplicate, err == ErrInProgress:
		outcome = "deduplicated"
	case err == ErrCompensationFailed:
		outcome = "compensation_failed"
	case err == ErrRemoteFailed:
		outcome = "compensated"
	default:
		outcome = "rejected"
	}
	metrics.TransfersTotal.WithLabelValues(string(dir), outcome).Inc()
}
