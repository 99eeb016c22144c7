package document

import (
	"strings"
	"testing"

	"tableread/internal/casting"
)

func TestValidateCleanDocument(t *testing.T) {
	report := Validate(sampleDocument, testCharacters())
	if !report.Valid {
		t.Fatalf("expected valid document, got %+v", report)
	}
	if report.Summary != "document is valid" {
		t.Fatalf("unexpected summary %q", report.Summary)
	}
	if len(report.Issues()) != 0 {
		t.Fatalf("expected no issues, got %v", report.Issues())
	}
}

func TestValidateFindsMissingAndExtraSpeakers(t *testing.T) {
	characters := []casting.CharacterInfo{
		{Name: "MACBETH", LineCount: 146},
		{Name: "LADY MACBETH", LineCount: 120},
	}
	text := "MACBETH:\n  provider: openai\n  voice: onyx\nWITCH:\n  provider: openai\n  voice: nova\n"

	report := Validate(text, characters)
	if report.Valid {
		t.Fatal("expected invalid document")
	}
	if len(report.MissingSpeakers) != 1 || report.MissingSpeakers[0] != "LADY MACBETH" {
		t.Fatalf("missing speakers wrong: %v", report.MissingSpeakers)
	}
	if len(report.ExtraSpeakers) != 1 || report.ExtraSpeakers[0] != "WITCH" {
		t.Fatalf("extra speakers wrong: %v", report.ExtraSpeakers)
	}
}

func TestValidateReportsDuplicates(t *testing.T) {
	text := "ALICE:\n  provider: openai\n  voice: alloy\nALICE:\n  provider: polly\n  voice: joanna\n"
	report := Validate(text, []casting.CharacterInfo{{Name: "ALICE"}})
	if report.Valid {
		t.Fatal("expected duplicate speaker to invalidate document")
	}
	if len(report.DuplicateSpeakers) != 1 || report.DuplicateSpeakers[0] != "ALICE" {
		t.Fatalf("duplicates wrong: %v", report.DuplicateSpeakers)
	}
}

func TestFinalizeAfterAppendingUnknownVoices(t *testing.T) {
	report := Validate(sampleDocument, testCharacters())
	if !report.Valid {
		t.Fatalf("precondition failed: %+v", report)
	}

	report.UnknownVoices = append(report.UnknownVoices, "elevenlabs/adam")
	report.Finalize()

	if report.Valid {
		t.Fatal("unknown voice must invalidate the report")
	}
	if !strings.Contains(report.Summary, "1") {
		t.Fatalf("summary should count issues: %q", report.Summary)
	}
	issues := report.Issues()
	if len(issues) != 1 || issues[0] != "unknown voice: elevenlabs/adam" {
		t.Fatalf("issues wrong: %v", issues)
	}
}
