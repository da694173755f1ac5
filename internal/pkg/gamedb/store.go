package gamedb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrInsufficientItems means a debit asked for more coins than the character holds.
var ErrInsufficientItems = errors.New("character does not hold enough items")

// Character is the external game entity referenced by transfers. It is owned
// by the game server and read-only from the portal's perspective.
type Character struct {
	ID      int64
	Name    string
	Account string
	Online  bool
}

// CharacterStore executes the catalog's logical operations against the gateway.
type CharacterStore struct {
	gw  *Gateway
	cat *Catalog
}

func NewCharacterStore(gw *Gateway, cat *Catalog) *CharacterStore {
	return &CharacterStore{gw: gw, cat: cat}
}

// Available reports whether the game database is enabled and reachable.
func (s *CharacterStore) Available(ctx context.Context) bool {
	return s.gw.Enabled() && s.gw.IsConnected(ctx)
}

// RequiresOffline mirrors the catalog's delivery constraint.
func (s *CharacterStore) RequiresOffline() bool {
	return s.cat.RequiresOffline()
}

// FindCharacter resolves a character owned by the given account. Returns nil
// when no such character exists on that account.
func (s *CharacterStore) FindCharacter(ctx context.Context, account, name string) (*Character, error) {
	rows, err := s.gw.Select(ctx, s.cat.FindCharacter(), map[string]any{
		"account":   account,
		"char_name": name,
	}, false)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &Character{
		ID:      asInt64(row["char_id"]),
		Name:    asString(row["char_name"]),
		Account: asString(row["account_name"]),
		Online:  asInt64(row["online"]) != 0,
	}, nil
}

// CreditCoin delivers coins to a character.
func (s *CharacterStore) CreditCoin(ctx context.Context, charID int64, itemID int, amount int64) error {
	params := map[string]any{
		"owner_id": charID,
		"item_id":  itemID,
		"amount":   amount,
	}

	if s.cat.Variant() == VariantDirect {
		n, err := s.gw.Update(ctx, s.cat.CreditCoinExisting(), params)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		// No stack to add to yet; create one.
	}

	if _, err := s.gw.Insert(ctx, s.cat.CreditCoin(), params); err != nil {
		return err
	}
	return nil
}

// DebitCoin removes coins from a character's inventory.
func (s *CharacterStore) DebitCoin(ctx context.Context, charID int64, itemID int, amount int64) error {
	n, err := s.gw.Update(ctx, s.cat.DebitCoin(), map[string]any{
		"owner_id": charID,
		"item_id":  itemID,
		"amount":   amount,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientItems
	}
	return nil
}

// CoinCount returns how many coins the character holds. Served through the
// read cache since it backs display surfaces, not transfer decisions.
func (s *CharacterStore) CoinCount(ctx context.Context, charID int64, itemID int) (int64, error) {
	rows, err := s.gw.Select(ctx, s.cat.CoinCount(), map[string]any{
		"owner_id": charID,
		"item_id":  itemID,
	}, true)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asInt64(rows[0]["total"]), nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(t), 10, 64)
		return n
	default:
		return 0
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
