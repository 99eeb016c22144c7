package voicelib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const narratorCatalog = `voices:
  stern_narrator:
    display_name: Stern Narrator
    description: Deep, deliberate delivery for scene direction.
    tags: [narration, deep]
    config:
      voice: onyx
      model: tts-1-hd
      speed: 0.95
  warm_narrator:
    display_name: Warm Narrator
    config:
      voice: alloy
`

const characterCatalog = `voices:
  nervous_clerk:
    display_name: Nervous Clerk
    tags: [character]
    config:
      voice_id: vc-210
      stability: 0.3
`

func writeLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	providerDir := filepath.Join(root, "openai")
	if err := os.MkdirAll(providerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(providerDir, "narrators.yaml"), []byte(narratorCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if err := os.WriteFile(filepath.Join(providerDir, "characters.yaml"), []byte(characterCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if err := os.WriteFile(filepath.Join(providerDir, "provider_schema.yaml"), []byte("voices:\n  schema_only:\n    config: {voice: nope}\n"), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return root
}

func TestVoicesMergesCatalogFilesAndSkipsSchema(t *testing.T) {
	lib := New(writeLibrary(t), nil)

	voices, err := lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("expected 3 voices, got %d", len(voices))
	}
	// Sorted by id; schema file entries must not appear.
	ids := []string{voices[0].ID, voices[1].ID, voices[2].ID}
	want := []string{"nervous_clerk", "stern_narrator", "warm_narrator"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("voice order mismatch: got %v want %v", ids, want)
		}
	}
	if voices[1].Provider != "openai" || voices[1].DisplayName != "Stern Narrator" {
		t.Fatalf("unexpected entry: %+v", voices[1])
	}
}

func TestVoicesReturnsIndependentCopies(t *testing.T) {
	lib := New(writeLibrary(t), nil)

	first, err := lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	for i := range first {
		if first[i].ID == "stern_narrator" {
			first[i].Config["voice"] = "tampered"
		}
	}

	second, err := lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	for _, voice := range second {
		if voice.ID == "stern_narrator" && voice.Config["voice"] != "onyx" {
			t.Fatalf("cached catalog mutated through returned copy: %v", voice.Config)
		}
	}
}

func TestExpandConfigAddsProvider(t *testing.T) {
	lib := New(writeLibrary(t), nil)

	config, err := lib.ExpandConfig("openai", "stern_narrator")
	if err != nil {
		t.Fatalf("ExpandConfig: %v", err)
	}
	if config["provider"] != "openai" {
		t.Fatalf("expected provider field, got %v", config["provider"])
	}
	if config["voice"] != "onyx" || config["model"] != "tts-1-hd" {
		t.Fatalf("unexpected config: %v", config)
	}
}

func TestVoiceLookupErrors(t *testing.T) {
	lib := New(writeLibrary(t), nil)

	if _, err := lib.Voice("openai", "missing"); !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	if _, err := lib.Voices("elevenlabs"); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	ok, err := lib.HasVoice("openai", "warm_narrator")
	if err != nil || !ok {
		t.Fatalf("HasVoice(warm_narrator) = %v, %v", ok, err)
	}
	ok, err = lib.HasVoice("openai", "missing")
	if err != nil || ok {
		t.Fatalf("HasVoice(missing) = %v, %v", ok, err)
	}
}

func TestInvalidateReloadsFromDisk(t *testing.T) {
	root := writeLibrary(t)
	lib := New(root, nil)

	if _, err := lib.Voices("openai"); err != nil {
		t.Fatalf("Voices: %v", err)
	}

	extra := "voices:\n  late_addition:\n    config: {voice: echo}\n"
	if err := os.WriteFile(filepath.Join(root, "openai", "extras.yaml"), []byte(extra), 0o644); err != nil {
		t.Fatalf("write extra catalog: %v", err)
	}

	// Cached catalog does not see the new file yet.
	voices, err := lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("expected cached catalog of 3, got %d", len(voices))
	}

	lib.Invalidate("openai")
	voices, err = lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices after invalidate: %v", err)
	}
	if len(voices) != 4 {
		t.Fatalf("expected reloaded catalog of 4, got %d", len(voices))
	}
}

func TestBrokenCatalogFileIsSkipped(t *testing.T) {
	root := writeLibrary(t)
	if err := os.WriteFile(filepath.Join(root, "openai", "broken.yaml"), []byte("voices: [not a mapping"), 0o644); err != nil {
		t.Fatalf("write broken catalog: %v", err)
	}
	lib := New(root, nil)

	voices, err := lib.Voices("openai")
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("expected broken file to be skipped, got %d voices", len(voices))
	}
}

func TestProvidersListsDirectories(t *testing.T) {
	root := writeLibrary(t)
	if err := os.MkdirAll(filepath.Join(root, "elevenlabs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lib := New(root, nil)

	providers, err := lib.Providers()
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if len(providers) != 2 || providers[0] != "elevenlabs" || providers[1] != "openai" {
		t.Fatalf("unexpected providers: %v", providers)
	}
}
