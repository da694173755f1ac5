package gamedb

import (
	"strings"
	"testing"
)

func TestNewCatalogRejectsUnknownVariant(t *testing.T) {
	if _, err := NewCatalog(CatalogConfig{Variant: "mystery"}); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestCatalogDelayed(t *testing.T) {
	cat, err := NewCatalog(CatalogConfig{Variant: "delayed", CharIDColumn: "charId"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if cat.RequiresOffline() {
		t.Fatal("delayed delivery must not require an offline character")
	}
	if !strings.Contains(cat.CreditCoin(), "items_delayed") {
		t.Fatalf("delayed credit must target items_delayed: %s", cat.CreditCoin())
	}
	if !strings.Contains(cat.FindCharacter(), "charId AS char_id") {
		t.Fatalf("char id column override not applied: %s", cat.FindCharacter())
	}
}

func TestCatalogDirect(t *testing.T) {
	cat, err := NewCatalog(CatalogConfig{Variant: "direct"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if !cat.RequiresOffline() {
		t.Fatal("direct inventory writes require an offline character")
	}
	if strings.Contains(cat.CreditCoin(), "items_delayed") {
		t.Fatalf("direct credit must not target items_delayed: %s", cat.CreditCoin())
	}
	if !strings.Contains(cat.DebitCoin(), "count >= :amount") {
		t.Fatalf("debit must carry the atomic count guard: %s", cat.DebitCoin())
	}
}
