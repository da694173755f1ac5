package gamedb

import (
	"fmt"
	"strings"
)

// Variant selects how coin delivery works on a given game server build.
// Servers with a delayed-item table hand items to characters on next login;
// others require direct inventory writes while the character is offline.
type Variant string

const (
	VariantDelayed Variant = "delayed"
	VariantDirect  Variant = "direct"
)

// CatalogConfig is the schema descriptor resolved at startup. Each deployment
// points at a slightly different game server schema, so the logical operations
// are mapped to statements from configuration instead of hardcoding one build.
type CatalogConfig struct {
	Variant      string
	CharIDColumn string // primary key column of the characters table, e.g. obj_Id
}

// Catalog maps logical game-store operations to parameterized statements.
type Catalog struct {
	variant Variant
	charID  string
}

func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	variant := Variant(strings.ToLower(strings.TrimSpace(cfg.Variant)))
	switch variant {
	case VariantDelayed, VariantDirect:
	default:
		return nil, fmt.Errorf("unknown schema variant: %q", cfg.Variant)
	}

	charID := cfg.CharIDColumn
	if charID == "" {
		charID = "obj_Id"
	}
	return &Catalog{variant: variant, charID: charID}, nil
}

func (c *Catalog) Variant() Variant {
	return c.variant
}

// RequiresOffline reports whether coin delivery needs the character offline.
// Delayed delivery is applied by the game server on login, so online
// characters are fine there.
func (c *Catalog) RequiresOffline() bool {
	return c.variant == VariantDirect
}

// FindCharacter resolves a character by account and name, with its online flag.
func (c *Catalog) FindCharacter() string {
	return fmt.Sprintf(`
		SELECT %s AS char_id, char_name, account_name, online
		FROM characters
		WHERE account_name = :account AND char_name = :char_name
		LIMIT 1
	`, c.charID)
}

// CreditCoin inserts coins for a character. For the delayed variant the row
// lands in items_delayed and the game server applies it; for the direct
// variant the caller first tries CreditCoinExisting and falls back to this
// insert when no stackable row exists yet.
func (c *Catalog) CreditCoin() string {
	if c.variant == VariantDelayed {
		return `
			INSERT INTO items_delayed (payment_id, owner_id, item_id, count, description)
			SELECT COALESCE(MAX(payment_id), 0) + 1, :owner_id, :item_id, :amount, 'DONATE WEB'
			FROM items_delayed
		`
	}
	return `
		INSERT INTO items (owner_id, item_id, count, loc)
		VALUES (:owner_id, :item_id, :amount, 'INVENTORY')
	`
}

// CreditCoinExisting adds to an existing inventory stack (direct variant only).
func (c *Catalog) CreditCoinExisting() string {
	return `
		UPDATE items
		SET count = count + :amount
		WHERE owner_id = :owner_id AND item_id = :item_id AND loc = 'INVENTORY'
	`
}

// DebitCoin removes coins from a character's inventory. The count guard in the
// WHERE clause makes the debit atomic: zero affected rows means the character
// does not hold enough coins.
func (c *Catalog) DebitCoin() string {
	return `
		UPDATE items
		SET count = count - :amount
		WHERE owner_id = :owner_id AND item_id = :item_id AND loc = 'INVENTORY' AND count >= :amount
	`
}

// CoinCount sums the coins a character holds in inventory.
func (c *Catalog) CoinCount() string {
	return `
		SELECT COALESCE(SUM(count), 0) AS total
		FROM items
		WHERE owner_id = :owner_id AND item_id = :item_id AND loc = 'INVENTORY'
	`
}
