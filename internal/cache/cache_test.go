package cache

import (
	"testing"
	"time"

	"github.com/getstacklabs/stackhub/internal/ranker"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// fakeClock is an adjustable time source for TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func someResults(ids ...string) []ranker.RankedResult {
	results := make([]ranker.RankedResult, len(ids))
	for i, id := range ids {
		results[i] = ranker.RankedResult{
			Candidate:  vectorstore.Candidate{TemplateID: id},
			FinalScore: 1.0 - float64(i)*0.1,
			Rank:       i + 1,
		}
	}
	return results
}

func TestNewKey_NormalizesQueryText(t *testing.T) {
	a := NewKey("React  TypeScript   Starter", vectorstore.Filters{}, 5)
	b := NewKey("react typescript starter", vectorstore.Filters{}, 5)
	if a != b {
		t.Error("expected keys to match after case and whitespace normalization")
	}

	c := NewKey("react starter", vectorstore.Filters{}, 5)
	if a == c {
		t.Error("expected different queries to produce different keys")
	}
}

func TestNewKey_FilterSetOrderIndependent(t *testing.T) {
	a := NewKey("q", vectorstore.Filters{Tags: []string{"react", "vite"}}, 5)
	b := NewKey("q", vectorstore.Filters{Tags: []string{"vite", "react"}}, 5)
	if a != b {
		t.Error("expected tag order not to affect the key")
	}

	c := NewKey("q", vectorstore.Filters{Tags: []string{"react"}}, 5)
	if a == c {
		t.Error("expected different tag sets to produce different keys")
	}

	d := NewKey("q", vectorstore.Filters{Language: "go"}, 5)
	e := NewKey("q", vectorstore.Filters{Category: "go"}, 5)
	if d == e {
		t.Error("expected language and category filters to key differently")
	}
}

func TestNewKey_IncludesK(t *testing.T) {
	a := NewKey("q", vectorstore.Filters{}, 3)
	b := NewKey("q", vectorstore.Filters{}, 10)
	if a == b {
		t.Error("expected different k to produce different keys")
	}
}

func TestCache_GetMiss(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	if _, ok := c.Get(NewKey("q", vectorstore.Filters{}, 5)); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	clock := newFakeClock()
	c, err := New(10, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := NewKey("q", vectorstore.Filters{}, 2)
	c.Put(key, someResults("T1", "T2"), time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0].TemplateID != "T1" || got[1].TemplateID != "T2" {
		t.Errorf("unexpected cached results: %+v", got)
	}
}

func TestCache_EntryExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c, err := New(10, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := NewKey("q", vectorstore.Filters{}, 2)
	c.Put(key, someResults("T1"), time.Minute)

	clock.Advance(59 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Error("expected hit just before expiry")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("expected miss after expiry")
	}

	// Expired entry is evicted lazily on read
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be evicted, cache has %d entries", c.Len())
	}
}

func TestCache_WriteReplacesWholesale(t *testing.T) {
	clock := newFakeClock()
	c, err := New(10, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := NewKey("q", vectorstore.Filters{}, 2)
	c.Put(key, someResults("T1", "T2"), time.Minute)
	c.Put(key, someResults("T3"), time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 1 || got[0].TemplateID != "T3" {
		t.Errorf("expected replacement entry, got %+v", got)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	c, err := New(2, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	keyA := NewKey("a", vectorstore.Filters{}, 1)
	keyB := NewKey("b", vectorstore.Filters{}, 1)
	keyC := NewKey("c", vectorstore.Filters{}, 1)

	c.Put(keyA, someResults("A"), time.Minute)
	c.Put(keyB, someResults("B"), time.Minute)

	// Touch A so B becomes the least recently used
	if _, ok := c.Get(keyA); !ok {
		t.Fatal("expected hit for A")
	}

	c.Put(keyC, someResults("C"), time.Minute)

	if _, ok := c.Get(keyB); ok {
		t.Error("expected B to be evicted")
	}
	if _, ok := c.Get(keyA); !ok {
		t.Error("expected A to survive eviction")
	}
	if _, ok := c.Get(keyC); !ok {
		t.Error("expected C to be present")
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	clock := newFakeClock()
	c, err := New(10, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := NewKey("q", vectorstore.Filters{}, 2)
	c.Put(key, someResults("T1", "T2"), time.Minute)

	first, _ := c.Get(key)
	first[0], first[1] = first[1], first[0] // caller reorders its copy

	second, _ := c.Get(key)
	if second[0].TemplateID != "T1" {
		t.Error("cached entry was mutated through a returned slice")
	}
}

func TestCache_TagsNotSharedWithCaller(t *testing.T) {
	clock := newFakeClock()
	c, err := New(10, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	stored := someResults("T1")
	stored[0].Tags = []string{"react", "vite"}

	key := NewKey("q", vectorstore.Filters{}, 1)
	c.Put(key, stored, time.Minute)

	// Mutating the caller's slice after Put must not reach the cache
	stored[0].Tags[0] = "angular"

	first, _ := c.Get(key)
	if first[0].Tags[0] != "react" {
		t.Errorf("cached tags mutated through Put argument: %v", first[0].Tags)
	}

	// Mutating a returned result's tags must not reach the cache either
	first[0].Tags[1] = "svelte"

	second, _ := c.Get(key)
	if second[0].Tags[1] != "vite" {
		t.Errorf("cached tags mutated through Get result: %v", second[0].Tags)
	}
}

func TestCache_ZeroTTLNotStored(t *testing.T) {
	c, err := New(10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := NewKey("q", vectorstore.Filters{}, 1)
	c.Put(key, someResults("T1"), 0)

	if _, ok := c.Get(key); ok {
		t.Error("expected zero-TTL put to be a no-op")
	}
}
