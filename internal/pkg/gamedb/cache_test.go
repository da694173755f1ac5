package gamedb

import (
	"testing"
	"time"
)

func TestCacheKeySortsParams(t *testing.T) {
	a := cacheKey("SELECT 1", map[string]any{"x": 1, "y": "b"})
	b := cacheKey("SELECT 1", map[string]any{"y": "b", "x": 1})
	if a != b {
		t.Fatalf("param order changed the key: %q vs %q", a, b)
	}
	c := cacheKey("SELECT 1", map[string]any{"x": 2, "y": "b"})
	if a == c {
		t.Fatal("different param values produced the same key")
	}
}

func TestCacheTTL(t *testing.T) {
	now := time.Now()
	c := newQueryCache(60 * time.Second)
	c.now = func() time.Time { return now }

	c.set("k", []Row{{"v": int64(1)}})

	if _, ok := c.get("k"); !ok {
		t.Fatal("fresh entry missing")
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.get("k"); !ok {
		t.Fatal("entry expired before TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.get("k"); ok {
		t.Fatal("entry served past TTL")
	}
}

func TestCacheClear(t *testing.T) {
	c := newQueryCache(time.Minute)
	c.set("k", nil)
	c.clear()
	if _, ok := c.get("k"); ok {
		t.Fatal("entry survived clear")
	}
}

func TestExpandSliceParams(t *testing.T) {
	q, args, err := expand(
		"SELECT * FROM items WHERE owner_id = :owner AND item_id IN (:ids)",
		map[string]any{"owner": int64(7), "ids": []int{1, 2, 3}},
	)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 bind args, got %d: %v", len(args), args)
	}
	want := "SELECT * FROM items WHERE owner_id = ? AND item_id IN (?, ?, ?)"
	if q != want {
		t.Fatalf("unexpected expansion:\n got %q\nwant %q", q, want)
	}
}
