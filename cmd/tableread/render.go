package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"tableread/internal/casting"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"

	progressBarWidth = 24
)

// renderProgressLine renders a fixed-width bar with the assigned/total
// summary, e.g. `[############------------]  50%  (1/2 cast)`.
func renderProgressLine(p casting.Progress, colorize bool) string {
	filled := 0
	if p.Total > 0 {
		filled = p.Percent * progressBarWidth / 100
	}
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
	line := fmt.Sprintf("[%s] %3d%%  (%d/%d cast)", bar, p.Percent, p.Assigned, p.Total)
	if colorize {
		color := ansiYellow
		if p.Complete() {
			color = ansiGreen
		}
		return color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
