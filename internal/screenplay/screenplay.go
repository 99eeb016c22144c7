// Package screenplay reads parsed screenplay JSON and derives the character
// list a casting session starts from.
//
// A screenplay file is a flat array of chunks. Dialogue chunks with a speaker
// belong to that speaker; every other chunk, including dialogue with no
// speaker, is narration and belongs to the reserved default speaker.
package screenplay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tableread/internal/casting"
)

// Chunk is one screenplay element: dialogue, scene heading, action, title.
type Chunk struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// Load reads a screenplay JSON file.
func Load(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenplay %s: %w", path, err)
	}
	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse screenplay %s: %w", path, err)
	}
	return chunks, nil
}

// ExtractCharacters computes per-speaker statistics across all chunks. The
// default speaker is always present, even with zero attributed chunks, and
// the result is sorted default-first, then by line count descending, then by
// name. Character counts are rune counts, not bytes.
func ExtractCharacters(chunks []Chunk) []casting.CharacterInfo {
	stats := map[string]*casting.CharacterInfo{
		casting.DefaultSpeaker: {Name: casting.DefaultSpeaker},
	}

	for _, chunk := range chunks {
		speaker := casting.DefaultSpeaker
		if chunk.Type == "dialogue" && strings.TrimSpace(chunk.Speaker) != "" {
			speaker = chunk.Speaker
		}
		character, ok := stats[speaker]
		if !ok {
			character = &casting.CharacterInfo{Name: speaker}
			stats[speaker] = character
		}
		length := utf8.RuneCountInString(chunk.Text)
		character.LineCount++
		character.TotalCharacters += length
		if length > character.LongestDialogue {
			character.LongestDialogue = length
		}
	}

	characters := make([]casting.CharacterInfo, 0, len(stats))
	for _, character := range stats {
		characters = append(characters, *character)
	}
	casting.SortCharacters(characters)
	return characters
}

// ExtractFromFile loads a screenplay and extracts its characters in one step.
func ExtractFromFile(path string) ([]casting.CharacterInfo, error) {
	chunks, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ExtractCharacters(chunks), nil
}

// FormatText renders chunks back into readable screenplay text. Attributed
// dialogue carries its speaker as an uppercase cue line; everything else
// renders verbatim, one blank line between chunks.
func FormatText(chunks []Chunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if chunk.Type == "dialogue" && strings.TrimSpace(chunk.Speaker) != "" {
			b.WriteString(strings.ToUpper(chunk.Speaker))
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(chunk.Text))
	}
	return b.String()
}

// TitleFromPath derives a human-friendly session title from a screenplay
// filename.
func TitleFromPath(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Session"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Session"
	}
	return cases.Title(language.Und).String(title)
}
