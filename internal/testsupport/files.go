package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"tableread/internal/screenplay"
)

// SampleChunks is a small screenplay exercising the common shapes: named
// dialogue, narration, and speakerless dialogue that falls to the default
// speaker.
func SampleChunks() []screenplay.Chunk {
	return []screenplay.Chunk{
		{Type: "title", Text: "Echoes of the Harbor"},
		{Type: "scene_heading", Text: "INT. LIGHTHOUSE - NIGHT"},
		{Type: "dialogue", Speaker: "MARA", Text: "The light has to stay on. No matter what we hear out there."},
		{Type: "dialogue", Speaker: "JONAS", Text: "You say that every night."},
		{Type: "action", Text: "The lamp gutters. Somewhere below, a door slams."},
		{Type: "dialogue", Speaker: "MARA", Text: "Every night it has been true."},
		{Type: "dialogue", Text: "And the sea kept its own counsel."},
	}
}

// WriteScreenplay marshals chunks to a screenplay JSON file and returns its
// path. A nil chunk list writes the sample screenplay.
func WriteScreenplay(t testing.TB, dir, name string, chunks []screenplay.Chunk) string {
	t.Helper()

	if chunks == nil {
		chunks = SampleChunks()
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		t.Fatalf("marshal screenplay: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write screenplay %s: %v", path, err)
	}
	return path
}

// WriteVoiceCatalog writes one provider catalog file under the library root
// and returns the provider directory.
func WriteVoiceCatalog(t testing.TB, root, provider, filename, body string) string {
	t.Helper()

	dir := filepath.Join(root, provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir provider dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return dir
}

// SeedVoiceLibrary populates a library root with a small openai catalog and
// returns the root.
func SeedVoiceLibrary(t testing.TB, root string) string {
	t.Helper()

	const catalog = `voices:
  stern_narrator:
    display_name: Stern Narrator
    tags: [narration]
    config:
      voice: onyx
      model: tts-1-hd
  bright_lead:
    display_name: Bright Lead
    config:
      voice: nova
`
	WriteVoiceCatalog(t, root, "openai", "catalog.yaml", catalog)
	return root
}
