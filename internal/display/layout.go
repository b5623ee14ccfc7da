package display

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

const (
	minBoxWidth = 40
	maxBoxWidth = 72
)

func boxWidth(width int) int {
	switch {
	case width < minBoxWidth:
		return minBoxWidth
	case width > maxBoxWidth:
		return maxBoxWidth
	default:
		return width
	}
}

// box draws a double-line frame with a centered title. Lines are padded or
// truncated by display width, so wide runes keep the right border aligned.
func box(title string, width int, lines ...string) []string {
	inner := width - 2
	t := " " + title + " "
	if runewidth.StringWidth(t) > inner {
		t = runewidth.Truncate(t, inner, "…")
	}
	left := (inner - runewidth.StringWidth(t)) / 2
	right := inner - runewidth.StringWidth(t) - left

	out := make([]string, 0, len(lines)+2)
	out = append(out, "╔"+strings.Repeat("═", left)+t+strings.Repeat("═", right)+"╗")
	for _, l := range lines {
		l = runewidth.Truncate(l, inner-2, "…")
		out = append(out, "║ "+runewidth.FillRight(l, inner-2)+" ║")
	}
	out = append(out, "╚"+strings.Repeat("═", inner)+"╝")
	return out
}

func rule(n int) string {
	return strings.Repeat("─", n)
}

// wrap breaks s at word boundaries to fit width columns and indents the
// continuation lines.
func wrap(s string, width int, indent string) []string {
	if width <= len(indent)+1 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}
	lines := strings.Split(wordwrap.String(s, width), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + lines[i]
	}
	return lines
}

// preview shortens s to n columns, marking the cut with "...".
func preview(s string, n int) string {
	if runewidth.StringWidth(s) <= n {
		return s
	}
	return runewidth.Truncate(s, n, "") + "..."
}

// padRight pads s with spaces to n display columns.
func padRight(s string, n int) string {
	return runewidth.FillRight(s, n)
}
