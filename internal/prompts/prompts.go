// Package prompts assembles LLM prompt text for casting assistance: one
// prompt asks for casting notes on every speaker, the other picks voices
// from provider catalogs. Both embed the current casting document so the
// model's answer can be pasted straight back in.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tableread/internal/casting"
)

//go:embed templates/character_notes.txt
var defaultNotesTemplate string

//go:embed templates/voice_library.txt
var defaultVoicesTemplate string

const (
	sectionProviderConfig = "--- TTS PROVIDER CONFIG ---"
	sectionScreenplay     = "--- SCREENPLAY TEXT ---"
	sectionVoiceConfig    = "--- VOICE CONFIGURATION ---"
	sectionLibraryData    = "--- VOICE LIBRARY DATA (%s) ---"
)

// NotesInput carries the pieces of a character-notes prompt.
type NotesInput struct {
	// DocumentText is the current casting document.
	DocumentText string
	// ScreenplayText is the full screenplay the notes should draw on.
	ScreenplayText string
	// TemplatePath overrides the embedded preamble when non-empty.
	TemplatePath string
}

// CharacterNotes builds a prompt asking an LLM to annotate every speaker in
// the casting document with casting notes and a role description.
func CharacterNotes(in NotesInput) (string, error) {
	if strings.TrimSpace(in.DocumentText) == "" {
		return "", errors.New("casting document is empty")
	}
	if strings.TrimSpace(in.ScreenplayText) == "" {
		return "", errors.New("screenplay text is empty")
	}
	preamble, err := loadTemplate(in.TemplatePath, defaultNotesTemplate)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n" + sectionProviderConfig + "\n\n")
	b.WriteString(in.DocumentText)
	b.WriteString("\n\n" + sectionScreenplay + "\n\n")
	b.WriteString(normalizeScreenplay(in.ScreenplayText))
	return b.String(), nil
}

// VoicesInput carries the pieces of a voice-selection prompt.
type VoicesInput struct {
	// DocumentText is the current casting document, ideally already carrying
	// casting notes.
	DocumentText string
	// Providers lists the catalogs to include, in output order.
	Providers []string
	// Catalogs holds the library listing for each provider in Providers.
	Catalogs map[string][]casting.LibraryVoice
	// TemplatePath overrides the embedded preamble when non-empty.
	TemplatePath string
}

// VoiceLibrary builds a prompt asking an LLM to pick a library voice for each
// uncast speaker, matching casting notes against the provider catalogs.
func VoiceLibrary(in VoicesInput) (string, error) {
	if strings.TrimSpace(in.DocumentText) == "" {
		return "", errors.New("casting document is empty")
	}
	if len(in.Providers) == 0 {
		return "", errors.New("no providers listed")
	}
	preamble, err := loadTemplate(in.TemplatePath, defaultVoicesTemplate)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n" + sectionVoiceConfig + "\n\n")
	b.WriteString(in.DocumentText)
	for _, provider := range in.Providers {
		dump, err := catalogDump(in.Catalogs[provider])
		if err != nil {
			return "", fmt.Errorf("render %s catalog: %w", provider, err)
		}
		fmt.Fprintf(&b, "\n\n"+sectionLibraryData+"\n\n", strings.ToUpper(provider))
		b.WriteString(dump)
	}
	return b.String(), nil
}

// NotesPrivacyNotice describes what the character-notes prompt exposes.
// sourceName is the screenplay the prompt embeds.
func NotesPrivacyNotice(sourceName string) string {
	return strings.Join([]string{
		"PRIVACY NOTICE:",
		fmt.Sprintf("This prompt includes the complete text of %q.", sourceName),
		"Before uploading it to any LLM service:",
		"  - Review the service's privacy policy and data usage practices.",
		"  - Ensure you are comfortable sharing your screenplay content.",
		"  - Consider whether the service uses your content for model training.",
		"  - For sensitive material, prefer a locally hosted model.",
	}, "\n")
}

// VoicesPrivacyNotice describes what the voice-selection prompt exposes.
func VoicesPrivacyNotice(providers []string) string {
	return strings.Join([]string{
		"PRIVACY NOTICE:",
		fmt.Sprintf("This prompt includes character names, casting notes, and voice library data for: %s.",
			strings.Join(providers, ", ")),
		"Before uploading it to any LLM service:",
		"  - Review the service's privacy policy and data usage practices.",
		"  - Ensure you are comfortable sharing your casting configuration.",
		"  - Consider whether the service uses your content for model training.",
		"  - For sensitive material, prefer a locally hosted model.",
	}, "\n")
}

// loadTemplate reads the override file, or falls back to the embedded
// preamble. Trailing newlines are dropped so section spacing stays uniform.
func loadTemplate(path, fallback string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return strings.TrimRight(fallback, "\n"), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// normalizeScreenplay trims every line; extracted screenplay text carries
// layout indentation that only wastes prompt space.
func normalizeScreenplay(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// catalogDump renders a provider catalog in the library's on-disk shape:
// a voices mapping of id to display name, description, tags, and config.
func catalogDump(voices []casting.LibraryVoice) (string, error) {
	entries := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, voice := range voices {
		value := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		appendField := func(key string, node *yaml.Node) {
			value.Content = append(value.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, node)
		}
		if voice.DisplayName != "" {
			appendField("display_name", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: voice.DisplayName})
		}
		if voice.Description != "" {
			appendField("description", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: voice.Description})
		}
		if len(voice.Tags) > 0 {
			tags := &yaml.Node{}
			if err := tags.Encode(voice.Tags); err != nil {
				return "", err
			}
			appendField("tags", tags)
		}
		if len(voice.Config) > 0 {
			config := &yaml.Node{}
			if err := config.Encode(voice.Config); err != nil {
				return "", err
			}
			appendField("config", config)
		}
		if len(value.Content) == 0 {
			value.Style = yaml.FlowStyle
		}
		entries.Content = append(entries.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: voice.ID}, value)
	}
	if len(entries.Content) == 0 {
		entries.Style = yaml.FlowStyle
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "voices"}, entries,
	}}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
