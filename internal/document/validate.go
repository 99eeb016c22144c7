package document

import (
	"fmt"
	"sort"

	"tableread/internal/casting"
)

// Report is the result of checking a document against a session's cast.
type Report struct {
	Valid             bool
	Problems          []string
	MissingSpeakers   []string
	ExtraSpeakers     []string
	DuplicateSpeakers []string
	UnknownVoices     []string
	Summary           string
}

// Validate checks document structure: parse problems, duplicate speakers,
// and the difference between document entries and extracted characters.
// Voice existence is the store's concern; callers with a voice catalog
// append to UnknownVoices and call Finalize again.
func Validate(text string, characters []casting.CharacterInfo) *Report {
	projection := Parse(text)

	report := &Report{
		Problems:          projection.Problems,
		DuplicateSpeakers: append([]string(nil), projection.Duplicates...),
	}
	sort.Strings(report.DuplicateSpeakers)

	known := make(map[string]struct{}, len(characters))
	for _, character := range characters {
		if _, ok := known[character.Name]; ok {
			continue
		}
		known[character.Name] = struct{}{}
		if _, present := projection.Assignments[character.Name]; !present {
			report.MissingSpeakers = append(report.MissingSpeakers, character.Name)
		}
	}
	for speaker := range projection.Assignments {
		if _, ok := known[speaker]; !ok {
			report.ExtraSpeakers = append(report.ExtraSpeakers, speaker)
		}
	}
	sort.Strings(report.MissingSpeakers)
	sort.Strings(report.ExtraSpeakers)

	report.Finalize()
	return report
}

// Finalize recomputes Valid and Summary. Call it again after appending
// findings from outside this package.
func (r *Report) Finalize() {
	issues := len(r.Problems) + len(r.MissingSpeakers) + len(r.ExtraSpeakers) +
		len(r.DuplicateSpeakers) + len(r.UnknownVoices)
	r.Valid = issues == 0
	if r.Valid {
		r.Summary = "document is valid"
	} else {
		r.Summary = fmt.Sprintf("found %d validation issues", issues)
	}
}

// Issues flattens every finding into one list for wire payloads and logs.
func (r *Report) Issues() []string {
	issues := append([]string(nil), r.Problems...)
	for _, speaker := range r.DuplicateSpeakers {
		issues = append(issues, "duplicate speaker: "+speaker)
	}
	for _, speaker := range r.MissingSpeakers {
		issues = append(issues, "missing speaker: "+speaker)
	}
	for _, speaker := range r.ExtraSpeakers {
		issues = append(issues, "unknown speaker: "+speaker)
	}
	for _, voice := range r.UnknownVoices {
		issues = append(issues, "unknown voice: "+voice)
	}
	return issues
}
