package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tableread/internal/casting"
)

// Comment patterns recognized ahead of each speaker entry. Anything a pattern
// does not claim survives as an additional note and round-trips verbatim.
var (
	lineCountPattern    = regexp.MustCompile(`(?i)^#\s*(\w+):\s*(\d+)\s*lines?`)
	charStatsPattern    = regexp.MustCompile(`(?i)^#\s*total characters:\s*(\d+),\s*longest dialogue:\s*(\d+)\s*characters`)
	castingNotesPattern = regexp.MustCompile(`(?i)^#\s*casting\s*notes?\s*[:=-]?\s*(.+)`)
	rolePattern         = regexp.MustCompile(`(?i)^#\s*role\s*[:=-]?\s*(.+)`)
)

// voiceAliasKeys are accepted spellings of the voice field, checked in order.
// "voice" is canonical; the others keep older documents importable.
var voiceAliasKeys = []string{"voice", "voice_id", "sts_id"}

// Projection is the best-effort assignment view of a document. Problems
// records whatever kept parts of the text out of the projection; the
// projection itself is always safe to use.
type Projection struct {
	Assignments map[string]casting.Assignment
	Duplicates  []string
	Problems    []string
}

// HasProblems reports whether any part of the document failed to project.
func (p Projection) HasProblems() bool {
	return len(p.Problems) > 0 || len(p.Duplicates) > 0
}

// Parse extracts voice assignments from document text. It never fails
// outright: structural damage degrades to Problems entries and the healthy
// speakers are still returned. Duplicate speakers keep their first entry.
func Parse(text string) Projection {
	proj := Projection{Assignments: make(map[string]casting.Assignment)}
	if strings.TrimSpace(text) == "" {
		proj.Problems = append(proj.Problems, "document is empty")
		return proj
	}

	comments := extractComments(text)

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		proj.Problems = append(proj.Problems, fmt.Sprintf("parse document: %v", err))
		return proj
	}
	mapping, problem := documentMapping(&root)
	if problem != "" {
		proj.Problems = append(proj.Problems, problem)
		return proj
	}
	if len(mapping.Content) == 0 {
		proj.Problems = append(proj.Problems, "document has no speaker entries")
		return proj
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valueNode := mapping.Content[i], mapping.Content[i+1]
		speaker := strings.TrimSpace(keyNode.Value)
		if speaker == "" {
			proj.Problems = append(proj.Problems, "document contains an empty speaker name")
			continue
		}
		if _, exists := proj.Assignments[speaker]; exists {
			proj.Duplicates = append(proj.Duplicates, speaker)
			continue
		}
		assignment, problems := assignmentFromNode(speaker, valueNode)
		proj.Problems = append(proj.Problems, problems...)
		if assignment == nil {
			continue
		}
		applyCommentInfo(assignment, comments[speaker])
		proj.Assignments[speaker] = *assignment
	}
	return proj
}

// assignmentFromNode converts one speaker's value node. A nil assignment
// means the entry is unusable; problems may accompany a usable one.
func assignmentFromNode(speaker string, node *yaml.Node) (*casting.Assignment, []string) {
	if node == nil || node.Tag == "!!null" {
		return &casting.Assignment{}, nil
	}

	var fields map[string]any
	if err := node.Decode(&fields); err != nil {
		return nil, []string{fmt.Sprintf("%s: voice settings must be a mapping", speaker)}
	}

	assignment := &casting.Assignment{}
	var problems []string

	if raw, ok := fields["provider"]; ok {
		if provider, ok := raw.(string); ok {
			assignment.Provider = strings.TrimSpace(provider)
		} else {
			problems = append(problems, fmt.Sprintf("%s: provider must be a string", speaker))
		}
	}
	for _, key := range voiceAliasKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if voice, ok := raw.(string); ok && strings.TrimSpace(voice) != "" {
			assignment.VoiceID = strings.TrimSpace(voice)
			break
		}
	}

	config := make(map[string]any)
	for key, value := range fields {
		if key == "provider" || isVoiceAliasKey(key) {
			continue
		}
		config[key] = value
	}
	if len(config) > 0 {
		assignment.Config = config
	}

	if len(fields) > 0 && assignment.Provider == "" {
		problems = append(problems, fmt.Sprintf("%s: missing provider", speaker))
	}
	return assignment, problems
}

func isVoiceAliasKey(key string) bool {
	for _, alias := range voiceAliasKeys {
		if key == alias {
			return true
		}
	}
	return false
}

// documentMapping unwraps the document node down to the top-level mapping.
func documentMapping(root *yaml.Node) (*yaml.Node, string) {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, "document has no content"
	}
	node := root.Content[0]
	if node.Tag == "!!null" {
		return nil, "document has no content"
	}
	if node.Kind != yaml.MappingNode {
		return nil, "document must be a mapping of speakers to voice settings"
	}
	return node, ""
}

// commentInfo is the metadata carried by the comment block above one entry.
type commentInfo struct {
	castingNotes    string
	role            string
	additionalNotes []string
	lineCount       int
	totalCharacters int
	longestDialogue int
	present         bool
}

func applyCommentInfo(assignment *casting.Assignment, info commentInfo) {
	if !info.present {
		return
	}
	assignment.CastingNotes = info.castingNotes
	assignment.Role = info.role
	assignment.AdditionalNotes = info.additionalNotes
	assignment.LineCount = info.lineCount
	assignment.TotalCharacters = info.totalCharacters
	assignment.LongestDialogue = info.longestDialogue
}

// extractComments scans the raw text line by line, attaching each comment run
// to the next unindented speaker key. The scan is independent of the YAML
// parser so note metadata survives even when the data side is broken.
func extractComments(text string) map[string]commentInfo {
	infos := make(map[string]commentInfo)
	var buffer []string

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")

		if stripped != "" && !strings.HasPrefix(stripped, "#") && strings.HasSuffix(stripped, ":") && !indented {
			name := trimQuotes(strings.TrimSpace(strings.TrimSuffix(stripped, ":")))
			if name != "" && len(buffer) > 0 {
				if info, ok := buildCommentInfo(buffer); ok {
					infos[name] = info
				}
			}
			buffer = buffer[:0]
			continue
		}
		if strings.HasPrefix(stripped, "#") {
			buffer = append(buffer, stripped)
		}
	}
	return infos
}

func buildCommentInfo(lines []string) (commentInfo, bool) {
	var info commentInfo
	var notes, roles []string

	for _, line := range lines {
		if match := lineCountPattern.FindStringSubmatch(line); match != nil {
			info.lineCount, _ = strconv.Atoi(match[2])
			continue
		}
		if match := charStatsPattern.FindStringSubmatch(line); match != nil {
			info.totalCharacters, _ = strconv.Atoi(match[1])
			info.longestDialogue, _ = strconv.Atoi(match[2])
			continue
		}
		if match := castingNotesPattern.FindStringSubmatch(line); match != nil {
			notes = append(notes, strings.TrimSpace(match[1]))
			continue
		}
		if match := rolePattern.FindStringSubmatch(line); match != nil {
			roles = append(roles, strings.TrimSpace(match[1]))
			continue
		}
		if cleaned := strings.TrimSpace(strings.TrimLeft(line, "#")); cleaned != "" {
			info.additionalNotes = append(info.additionalNotes, cleaned)
		}
	}

	info.castingNotes = strings.Join(notes, " ")
	info.role = strings.Join(roles, " ")
	info.present = info.castingNotes != "" || info.role != "" ||
		len(info.additionalNotes) > 0 || info.lineCount > 0 || info.totalCharacters > 0
	return info, info.present
}

func trimQuotes(name string) string {
	if len(name) >= 2 {
		first, last := name[0], name[len(name)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return name[1 : len(name)-1]
		}
	}
	return name
}
