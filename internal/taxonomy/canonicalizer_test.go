package taxonomy

import (
	"context"
	"testing"

	"github.com/oemforge/oemforge/internal/model"
)

type fakeItemStore struct {
	created []struct {
		name     string
		category string
	}
	nextID int64
}

func (f *fakeItemStore) CreateMaintenanceItem(ctx context.Context, name, category string) (int64, error) {
	f.nextID++
	f.created = append(f.created, struct {
		name     string
		category string
	}{name, category})
	return f.nextID, nil
}

func TestCanonicalize_ExactName(t *testing.T) {
	c := New([]model.MaintenanceItem{{ID: 1, Name: "Engine Oil"}}, 0)
	store := &fakeItemStore{}

	id, created, err := c.Canonicalize(context.Background(), store, "engine oil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 || created {
		t.Fatalf("expected exact match to id 1 with created=false, got id=%d created=%v", id, created)
	}
	if len(store.created) != 0 {
		t.Fatalf("exact match should not touch the store")
	}
}

func TestCanonicalize_Alias(t *testing.T) {
	c := New([]model.MaintenanceItem{{ID: 5, Name: "Engine Oil Filter", Aliases: []string{"Oil Filter"}}}, 0)
	store := &fakeItemStore{}

	id, created, err := c.Canonicalize(context.Background(), store, "Oil Filter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 5 || created {
		t.Fatalf("expected alias match to id 5, got id=%d created=%v", id, created)
	}
}

func TestCanonicalize_FuzzyBoundary_AtThresholdAccepted(t *testing.T) {
	// "abcdefghij" vs "abcdefghkl" scores exactly 0.80: the longest block
	// "abcdefgh" matches 8 chars, so 2*8 over 20 total chars.
	c := New([]model.MaintenanceItem{{ID: 9, Name: "abcdefghij"}}, 0.80)
	store := &fakeItemStore{}

	id, created, err := c.Canonicalize(context.Background(), store, "abcdefghkl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("a ratio of exactly the threshold must be accepted as a match, not create a new row")
	}
	if id != 9 {
		t.Fatalf("expected fuzzy match to id 9, got %d", id)
	}
}

func TestCanonicalize_FuzzyBoundary_BelowThresholdCreatesNew(t *testing.T) {
	// "abcdefghij" vs "abcdefgxkl" scores 0.70 (2*7 matched chars over 20).
	c := New([]model.MaintenanceItem{{ID: 9, Name: "abcdefghij"}}, 0.80)
	store := &fakeItemStore{}

	id, created, err := c.Canonicalize(context.Background(), store, "abcdefgxkl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("a ratio below threshold must not be treated as a match")
	}
	if id == 9 {
		t.Fatalf("expected a newly created id distinct from the near-miss candidate")
	}
}

func TestCanonicalize_UnknownItem_CategorizedByKeyword(t *testing.T) {
	c := New(nil, 0)
	store := &fakeItemStore{}

	id, created, err := c.Canonicalize(context.Background(), store, "Serpentine Belt Tensioner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected a brand-new catalog row for an unknown item")
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly one store.CreateMaintenanceItem call, got %d", len(store.created))
	}
	if store.created[0].category != "engine" {
		t.Fatalf("expected category 'engine' via the 'belt' keyword, got %q", store.created[0].category)
	}
	if id != 1 {
		t.Fatalf("expected the first created id to be 1, got %d", id)
	}
}

func TestCanonicalize_SeatBeltNotShadowedByGenericBeltKeyword(t *testing.T) {
	c := New(nil, 0)
	store := &fakeItemStore{}

	_, _, err := c.Canonicalize(context.Background(), store, "Seat Belt Pretensioner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.created[0].category != "safety" {
		t.Fatalf("expected 'seat belt' to match the safety keyword before the generic 'belt' one, got %q", store.created[0].category)
	}
}

func TestCanonicalize_SecondOccurrenceInRunReusesCreatedID(t *testing.T) {
	c := New(nil, 0)
	store := &fakeItemStore{}

	first, created1, err := c.Canonicalize(context.Background(), store, "Drive Belt Tensioner Pulley")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, created2, err := c.Canonicalize(context.Background(), store, "Drive Belt Tensioner Pulley")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created1 || created2 {
		t.Fatalf("expected first occurrence to create and second to hit the in-memory cache")
	}
	if first != second {
		t.Fatalf("expected the same id on repeat lookups within a run, got %d then %d", first, second)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected the store to be hit exactly once across both calls, got %d", len(store.created))
	}
}

func TestCanonicalize_SecondOccurrenceOfFuzzyMatchSkipsRecompute(t *testing.T) {
	c := New([]model.MaintenanceItem{{ID: 9, Name: "abcdefghij"}}, 0.80)
	store := &fakeItemStore{}

	first, created1, err := c.Canonicalize(context.Background(), store, "abcdefghkl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created1 || first != 9 {
		t.Fatalf("expected the first call to fuzzy-match id 9, got id=%d created=%v", first, created1)
	}
	if _, ok := c.byName["abcdefghkl"]; !ok {
		t.Fatalf("expected the fuzzy-accept branch to memoize the raw name into byName")
	}

	second, created2, err := c.Canonicalize(context.Background(), store, "abcdefghkl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created2 || second != 9 {
		t.Fatalf("expected the second occurrence to resolve to the same id via the memoized cache, got id=%d created=%v", second, created2)
	}
	if len(store.created) != 0 {
		t.Fatalf("a fuzzy match, memoized or not, must never touch the store")
	}
}
