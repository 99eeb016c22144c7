package casting

import "math"

// Progress summarizes casting completion for one session. Percent is the
// rounded share of characters with a committed voice; it is always derived,
// never stored.
type Progress struct {
	Assigned int
	Total    int
	Percent  int
}

// Complete reports whether every character has a cast voice.
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Assigned == p.Total
}

// ProgressFor computes casting progress from an assignment projection and the
// extracted character list. The character list is the denominator: speakers
// present only in the document do not change the total, and a character
// counts as assigned only when its entry names both a provider and a voice.
func ProgressFor(assignments map[string]Assignment, characters []CharacterInfo) Progress {
	progress := Progress{Total: len(characters)}
	for _, character := range characters {
		assignment, ok := assignments[character.Name]
		if !ok {
			continue
		}
		if assignment.Cast() {
			progress.Assigned++
		}
	}
	if progress.Total > 0 {
		progress.Percent = int(math.Round(100 * float64(progress.Assigned) / float64(progress.Total)))
	}
	return progress
}
