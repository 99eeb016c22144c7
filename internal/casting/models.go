package casting

import (
	"sort"
	"strings"
	"time"
)

// DefaultSpeaker is the reserved speaker for narration and stage directions.
// It sorts ahead of every named character.
const DefaultSpeaker = "default"

// voiceConfigKeys are the provider-config fields accepted as a voice identity
// when VoiceID itself is empty.
var voiceConfigKeys = []string{"voice", "voice_id"}

// CharacterInfo describes one speaker extracted from a screenplay.
type CharacterInfo struct {
	Name            string
	LineCount       int
	TotalCharacters int
	LongestDialogue int
}

// Assignment captures the casting decision and notes for a single speaker.
// Line statistics are carried alongside so a parsed document round-trips
// without consulting the screenplay again.
type Assignment struct {
	Provider        string
	VoiceID         string
	Config          map[string]any
	CastingNotes    string
	Role            string
	AdditionalNotes []string
	LineCount       int
	TotalCharacters int
	LongestDialogue int
}

// VoiceIdentity returns the voice identifier for the assignment: VoiceID when
// set, otherwise a recognized voice key from the provider config. Empty when
// the assignment names no concrete voice.
func (a Assignment) VoiceIdentity() string {
	if id := strings.TrimSpace(a.VoiceID); id != "" {
		return id
	}
	for _, key := range voiceConfigKeys {
		if raw, ok := a.Config[key]; ok {
			if id, ok := raw.(string); ok && strings.TrimSpace(id) != "" {
				return strings.TrimSpace(id)
			}
		}
	}
	return ""
}

// Cast reports whether the assignment names both a provider and a voice.
// Provider-only entries are staged work, not cast speakers.
func (a Assignment) Cast() bool {
	return strings.TrimSpace(a.Provider) != "" && a.VoiceIdentity() != ""
}

// Empty reports whether the assignment carries no casting data. Line
// statistics are ignored; they describe the screenplay, not a decision.
func (a Assignment) Empty() bool {
	return strings.TrimSpace(a.Provider) == "" &&
		strings.TrimSpace(a.VoiceID) == "" &&
		len(a.Config) == 0 &&
		strings.TrimSpace(a.CastingNotes) == "" &&
		strings.TrimSpace(a.Role) == "" &&
		len(a.AdditionalNotes) == 0
}

// Clone returns a deep copy of the assignment.
func (a Assignment) Clone() Assignment {
	cp := a
	cp.Config = cloneConfigMap(a.Config)
	if a.AdditionalNotes != nil {
		cp.AdditionalNotes = append([]string(nil), a.AdditionalNotes...)
	}
	return cp
}

// AssignmentPatch describes a partial update to one speaker's assignment.
// Nil fields leave the current value untouched; Config and AdditionalNotes
// replace wholesale when non-nil.
type AssignmentPatch struct {
	Provider        *string
	VoiceID         *string
	Config          map[string]any
	CastingNotes    *string
	Role            *string
	AdditionalNotes []string
}

// Empty reports whether the patch changes nothing.
func (p AssignmentPatch) Empty() bool {
	return p.Provider == nil && p.VoiceID == nil && p.Config == nil &&
		p.CastingNotes == nil && p.Role == nil && p.AdditionalNotes == nil
}

// Apply returns a new assignment with the patch folded into base.
func (p AssignmentPatch) Apply(base Assignment) Assignment {
	next := base.Clone()
	if p.Provider != nil {
		next.Provider = strings.TrimSpace(*p.Provider)
	}
	if p.VoiceID != nil {
		next.VoiceID = strings.TrimSpace(*p.VoiceID)
	}
	if p.Config != nil {
		next.Config = cloneConfigMap(p.Config)
	}
	if p.CastingNotes != nil {
		next.CastingNotes = strings.TrimSpace(*p.CastingNotes)
	}
	if p.Role != nil {
		next.Role = strings.TrimSpace(*p.Role)
	}
	if p.AdditionalNotes != nil {
		next.AdditionalNotes = append([]string(nil), p.AdditionalNotes...)
	}
	return next
}

// ClearVoice returns a copy of the assignment with the voice selection
// removed. Casting notes, role, additional notes, and line statistics
// survive; they describe the character, not the voice.
func (a Assignment) ClearVoice() Assignment {
	next := a.Clone()
	next.Provider = ""
	next.VoiceID = ""
	next.Config = nil
	return next
}

// Session is one versioned casting session. Version increases by exactly one
// for every accepted commit; it is assigned by the store, never by callers.
type Session struct {
	ID           string
	Title        string
	SourcePath   string
	DocumentText string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Characters   []CharacterInfo
	Assignments  map[string]Assignment
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Characters != nil {
		cp.Characters = append([]CharacterInfo(nil), s.Characters...)
	}
	if s.Assignments != nil {
		cp.Assignments = make(map[string]Assignment, len(s.Assignments))
		for speaker, assignment := range s.Assignments {
			cp.Assignments[speaker] = assignment.Clone()
		}
	}
	return &cp
}

// Assignment returns the assignment for speaker, or a zero assignment when
// the document has no entry for it.
func (s *Session) Assignment(speaker string) (Assignment, bool) {
	if s == nil || s.Assignments == nil {
		return Assignment{}, false
	}
	assignment, ok := s.Assignments[speaker]
	return assignment, ok
}

// Progress computes casting completion for the session snapshot.
func (s *Session) Progress() Progress {
	if s == nil {
		return Progress{}
	}
	return ProgressFor(s.Assignments, s.Characters)
}

// SessionSummary is the listing projection of a session.
type SessionSummary struct {
	ID         string
	Title      string
	SourcePath string
	Version    int64
	UpdatedAt  time.Time
	Progress   Progress
}

// LibraryVoice is one entry from a provider's voice catalog.
type LibraryVoice struct {
	Provider    string
	ID          string
	DisplayName string
	Description string
	Tags        []string
	Config      map[string]any
}

// Clone returns a deep copy of the voice entry.
func (v LibraryVoice) Clone() LibraryVoice {
	cp := v
	if v.Tags != nil {
		cp.Tags = append([]string(nil), v.Tags...)
	}
	cp.Config = cloneConfigMap(v.Config)
	return cp
}

// SortCharacters orders characters for display and document generation:
// the default speaker first, then by line count descending, then by name.
func SortCharacters(characters []CharacterInfo) {
	sort.SliceStable(characters, func(i, j int) bool {
		a, b := characters[i], characters[j]
		aDefault := a.Name == DefaultSpeaker
		bDefault := b.Name == DefaultSpeaker
		if aDefault != bDefault {
			return aDefault
		}
		if a.LineCount != b.LineCount {
			return a.LineCount > b.LineCount
		}
		return a.Name < b.Name
	})
}

func cloneConfigMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneConfigValue(value)
	}
	return dst
}

func cloneConfigValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneConfigMap(typed)
	case []any:
		cp := make([]any, len(typed))
		for i, element := range typed {
			cp[i] = cloneConfigValue(element)
		}
		return cp
	default:
		return value
	}
}
