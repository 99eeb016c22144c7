package main

import (
	"reflect"
	"testing"
)

func TestParseConfigPairs(t *testing.T) {
	got, err := parseConfigPairs([]string{"voice=onyx", "speed=1.5", "stream=true", "retries=3"})
	if err != nil {
		t.Fatalf("parseConfigPairs: %v", err)
	}
	want := map[string]any{
		"voice":   "onyx",
		"speed":   1.5,
		"stream":  true,
		"retries": int64(3),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseConfigPairs = %#v, want %#v", got, want)
	}
}

func TestParseConfigPairsRejectsMalformedEntries(t *testing.T) {
	for _, pair := range []string{"novalue", "=orphan", " =x"} {
		if _, err := parseConfigPairs([]string{pair}); err == nil {
			t.Errorf("expected error for %q", pair)
		}
	}
}

func TestParseConfigPairsEmptyIsNil(t *testing.T) {
	got, err := parseConfigPairs(nil)
	if err != nil {
		t.Fatalf("parseConfigPairs(nil): %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil map, got %#v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 24); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefgh", 5); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestDashIfEmpty(t *testing.T) {
	if got := dashIfEmpty("  "); got != "-" {
		t.Fatalf("dashIfEmpty(blank) = %q", got)
	}
	if got := dashIfEmpty("openai"); got != "openai" {
		t.Fatalf("dashIfEmpty(openai) = %q", got)
	}
}
