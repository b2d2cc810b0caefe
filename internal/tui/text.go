package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func padRight(s string, w int) string {
	sw := lipgloss.Width(s)
	if sw >= w {
		return s
	}
	return s + strings.Repeat(" ", w-sw)
}

// fillLine pads s to width and paints the background.
func fillLine(s string, width int, bg lipgloss.TerminalColor) string {
	return lipgloss.NewStyle().Background(bg).Render(padRight(s, width))
}

// ansiTruncate cuts s to maxVisible visible characters, keeping escape
// sequences intact and resetting styles at the end.
func ansiTruncate(s string, maxVisible int) string {
	var out strings.Builder
	visible := 0
	i := 0
	for i < len(s) && visible < maxVisible {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && !((s[j] >= 'A' && s[j] <= 'Z') || (s[j] >= 'a' && s[j] <= 'z')) {
				j++
			}
			if j < len(s) {
				j++
			}
			out.WriteString(s[i:j])
			i = j
			continue
		}
		// Copy a whole UTF-8 sequence as one visible character.
		size := 1
		for i+size < len(s) && s[i+size]&0xC0 == 0x80 {
			size++
		}
		out.WriteString(s[i : i+size])
		visible++
		i += size
	}
	out.WriteString("\x1b[0m")
	return out.String()
}

// sanitizeLine makes one received line safe to draw on a single row.
func sanitizeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "    ")
	return strings.ReplaceAll(s, "\n", " ⏎ ")
}

// overlay centers box on the lines of base.
func overlay(base, box string, width int) string {
	lines := strings.Split(base, "\n")
	boxLines := strings.Split(box, "\n")

	startRow := (len(lines) - len(boxLines)) / 2
	if startRow < 1 {
		startRow = 1
	}
	for i, bl := range boxLines {
		row := startRow + i
		if row >= 0 && row < len(lines) {
			pad := (width - lipgloss.Width(bl)) / 2
			if pad < 0 {
				pad = 0
			}
			lines[row] = strings.Repeat(" ", pad) + bl
		}
	}
	return strings.Join(lines, "\n")
}
