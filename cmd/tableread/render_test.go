package main

import (
	"strings"
	"testing"

	"tableread/internal/casting"
)

func TestRenderProgressLine(t *testing.T) {
	line := renderProgressLine(casting.Progress{Assigned: 1, Total: 2, Percent: 50}, false)
	if !strings.Contains(line, "50%") || !strings.Contains(line, "(1/2 cast)") {
		t.Fatalf("unexpected progress line: %q", line)
	}
	if strings.Contains(line, ansiGreen) || strings.Contains(line, ansiYellow) {
		t.Fatalf("expected no color codes: %q", line)
	}

	empty := renderProgressLine(casting.Progress{}, false)
	if !strings.Contains(empty, "0%") || !strings.Contains(empty, "(0/0 cast)") {
		t.Fatalf("unexpected empty progress line: %q", empty)
	}
	if strings.Contains(empty, "#") {
		t.Fatalf("empty progress should have no fill: %q", empty)
	}

	complete := renderProgressLine(casting.Progress{Assigned: 3, Total: 3, Percent: 100}, true)
	if !strings.HasPrefix(complete, ansiGreen) {
		t.Fatalf("complete progress should render green: %q", complete)
	}
}

func TestRenderTableAlignsAndPadsRows(t *testing.T) {
	out := renderTable(
		[]string{"Character", "Lines"},
		[][]string{
			{"MARA", "10"},
			{"JONAS"},
		},
		1,
	)
	if !strings.Contains(out, "MARA") || !strings.Contains(out, "JONAS") {
		t.Fatalf("table missing rows: %q", out)
	}
	if !strings.Contains(out, "Character") {
		t.Fatalf("table missing header: %q", out)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	plain := renderSectionHeader("Casting: Harbor", false)
	if plain != "== Casting: Harbor ==" {
		t.Fatalf("unexpected header: %q", plain)
	}
	colored := renderSectionHeader("Casting: Harbor", true)
	if !strings.HasPrefix(colored, ansiBlue) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored header: %q", colored)
	}
}
