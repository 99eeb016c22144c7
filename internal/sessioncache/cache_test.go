package sessioncache

import (
	"testing"

	"tableread/internal/casting"
)

func snapshot(id string, version int64) *casting.Session {
	return &casting.Session{
		ID:      id,
		Title:   "Play",
		Version: version,
		Assignments: map[string]casting.Assignment{
			"MARA": {Provider: "openai", VoiceID: "stern_narrator"},
		},
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	cache := New(nil)
	cache.Put(snapshot("s1", 1))

	first, ok := cache.Get("s1")
	if !ok {
		t.Fatal("expected cached snapshot")
	}
	first.Assignments["MARA"] = casting.Assignment{Provider: "tampered"}
	first.Version = 99

	second, ok := cache.Get("s1")
	if !ok {
		t.Fatal("expected cached snapshot")
	}
	if second.Version != 1 {
		t.Fatalf("cached snapshot mutated: version %d", second.Version)
	}
	if second.Assignments["MARA"].Provider != "openai" {
		t.Fatalf("cached snapshot mutated: %+v", second.Assignments["MARA"])
	}
}

func TestPutCanonicalEnforcesVersionFloor(t *testing.T) {
	cache := New(nil)

	if !cache.PutCanonical(snapshot("s1", 3)) {
		t.Fatal("first canonical publish rejected")
	}
	// A refetch that raced a newer commit must be discarded.
	if cache.PutCanonical(snapshot("s1", 2)) {
		t.Fatal("stale canonical snapshot accepted")
	}
	got, _ := cache.Get("s1")
	if got.Version != 3 {
		t.Fatalf("expected version 3 retained, got %d", got.Version)
	}
	// Equal version is a refresh, not a regression.
	if !cache.PutCanonical(snapshot("s1", 3)) {
		t.Fatal("same-version canonical publish rejected")
	}
	if !cache.PutCanonical(snapshot("s1", 4)) {
		t.Fatal("newer canonical publish rejected")
	}
	if floor, _ := cache.Floor("s1"); floor != 4 {
		t.Fatalf("floor not advanced: %d", floor)
	}
}

func TestFloorSurvivesInvalidate(t *testing.T) {
	cache := New(nil)
	cache.PutCanonical(snapshot("s1", 5))
	cache.Invalidate("s1")

	if _, ok := cache.Get("s1"); ok {
		t.Fatal("snapshot not dropped")
	}
	// Refilling with an older canonical snapshot must still be rejected.
	if cache.PutCanonical(snapshot("s1", 4)) {
		t.Fatal("stale refill accepted after invalidate")
	}
	if !cache.PutCanonical(snapshot("s1", 5)) {
		t.Fatal("current refill rejected after invalidate")
	}
}

func TestPutBypassesFloorForRollback(t *testing.T) {
	cache := New(nil)
	cache.PutCanonical(snapshot("s1", 5))

	// Speculative snapshots and rollback restores publish unconditionally.
	cache.Put(snapshot("s1", 2))
	got, _ := cache.Get("s1")
	if got.Version != 2 {
		t.Fatalf("unconditional put ignored: version %d", got.Version)
	}
	// The floor still guards canonical refills.
	if cache.PutCanonical(snapshot("s1", 3)) {
		t.Fatal("floor lost after unconditional put")
	}
}

func TestForgetDropsFloor(t *testing.T) {
	cache := New(nil)
	cache.PutCanonical(snapshot("s1", 8))
	cache.Forget("s1")

	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", cache.Len())
	}
	// A recreated session may restart at version 1.
	if !cache.PutCanonical(snapshot("s1", 1)) {
		t.Fatal("fresh canonical publish rejected after forget")
	}
}
