package document

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tableread/internal/casting"
)

// Generate renders a casting document covering every character and every
// assigned speaker. Entries are ordered default-first, then by line count
// descending, then by name; speakers without casting data render as empty
// mappings so the document always lists the full cast.
func Generate(characters []casting.CharacterInfo, assignments map[string]casting.Assignment) (string, error) {
	stats := make(map[string]casting.CharacterInfo, len(characters))
	for _, character := range characters {
		stats[character.Name] = character
	}

	names := make([]string, 0, len(characters)+len(assignments))
	seen := make(map[string]struct{}, len(characters)+len(assignments))
	for _, character := range characters {
		if _, ok := seen[character.Name]; !ok {
			seen[character.Name] = struct{}{}
			names = append(names, character.Name)
		}
	}
	for speaker := range assignments {
		if _, ok := seen[speaker]; !ok {
			seen[speaker] = struct{}{}
			names = append(names, speaker)
		}
	}

	enriched := make(map[string]casting.Assignment, len(names))
	for _, name := range names {
		enriched[name] = withCharacterStats(assignments[name], stats[name])
	}

	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		aDefault := a == casting.DefaultSpeaker
		bDefault := b == casting.DefaultSpeaker
		if aDefault != bDefault {
			return aDefault
		}
		if enriched[a].LineCount != enriched[b].LineCount {
			return enriched[a].LineCount > enriched[b].LineCount
		}
		return a < b
	})

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range names {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		key.HeadComment = headComment(name, enriched[name])
		value, err := assignmentValueNode(enriched[name])
		if err != nil {
			return "", fmt.Errorf("encode %s settings: %w", name, err)
		}
		mapping.Content = append(mapping.Content, key, value)
	}

	return marshalMapping(mapping)
}

// ApplyAssignment rewrites a single speaker's entry in place, creating it
// when absent. Everything else in the document survives untouched apart from
// formatting normalization; the text must parse as a speaker mapping.
func ApplyAssignment(text, speaker string, assignment casting.Assignment) (string, error) {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return "", errors.New("speaker name is empty")
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if strings.TrimSpace(text) != "" {
		var root yaml.Node
		if err := yaml.Unmarshal([]byte(text), &root); err != nil {
			return "", fmt.Errorf("parse document: %w", err)
		}
		existing, problem := documentMapping(&root)
		switch {
		case existing != nil:
			mapping = existing
			mapping.Style = 0
		case problem != "document has no content":
			return "", errors.New(problem)
		}
	}

	value, err := assignmentValueNode(assignment)
	if err != nil {
		return "", fmt.Errorf("encode %s settings: %w", speaker, err)
	}

	updated := false
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if strings.TrimSpace(mapping.Content[i].Value) != speaker {
			continue
		}
		mapping.Content[i].HeadComment = headComment(speaker, assignment)
		mapping.Content[i+1] = value
		updated = true
		break
	}
	if !updated {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: speaker}
		key.HeadComment = headComment(speaker, assignment)
		mapping.Content = append(mapping.Content, key, value)
	}

	return marshalMapping(mapping)
}

// withCharacterStats fills zero statistics from the extracted character so
// generated comments stay accurate when the assignment predates extraction.
func withCharacterStats(assignment casting.Assignment, character casting.CharacterInfo) casting.Assignment {
	if assignment.LineCount == 0 {
		assignment.LineCount = character.LineCount
	}
	if assignment.TotalCharacters == 0 {
		assignment.TotalCharacters = character.TotalCharacters
	}
	if assignment.LongestDialogue == 0 {
		assignment.LongestDialogue = character.LongestDialogue
	}
	return assignment
}

// headComment builds the comment block for one speaker. Lines carry no hash
// prefix; the encoder adds it.
func headComment(speaker string, assignment casting.Assignment) string {
	var lines []string
	if assignment.LineCount > 0 {
		lines = append(lines,
			fmt.Sprintf("%s: %d lines", speaker, assignment.LineCount),
			fmt.Sprintf("Total characters: %d, Longest dialogue: %d characters",
				assignment.TotalCharacters, assignment.LongestDialogue))
	}
	if assignment.CastingNotes != "" {
		lines = append(lines, "Casting notes: "+assignment.CastingNotes)
	}
	if assignment.Role != "" {
		lines = append(lines, "Role: "+assignment.Role)
	}
	for _, note := range assignment.AdditionalNotes {
		if cleaned := strings.TrimSpace(strings.TrimLeft(note, "#")); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n")
}

// assignmentValueNode renders the entry body: provider first, voice second,
// then remaining config keys in sorted order. Empty assignments flow to {}.
func assignmentValueNode(assignment casting.Assignment) (*yaml.Node, error) {
	value := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	appendField := func(key string, node *yaml.Node) {
		value.Content = append(value.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, node)
	}

	if assignment.Provider != "" {
		appendField("provider", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: assignment.Provider})
	}
	if assignment.VoiceID != "" {
		appendField("voice", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: assignment.VoiceID})
	}

	keys := make([]string, 0, len(assignment.Config))
	for key := range assignment.Config {
		if key == "provider" || isVoiceAliasKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		node := &yaml.Node{}
		if err := node.Encode(assignment.Config[key]); err != nil {
			return nil, err
		}
		appendField(key, node)
	}

	if len(value.Content) == 0 {
		value.Style = yaml.FlowStyle
	}
	return value, nil
}

func marshalMapping(mapping *yaml.Node) (string, error) {
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return spaceCommentBlocks(buf.String()), nil
}

// spaceCommentBlocks opens a blank line ahead of each comment block so
// speaker entries read as paragraphs.
func spaceCommentBlocks(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+8)
	for i, line := range lines {
		if i > 0 && strings.HasPrefix(line, "#") {
			previous := lines[i-1]
			if previous != "" && !strings.HasPrefix(previous, "#") {
				out = append(out, "")
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
