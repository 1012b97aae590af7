package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wide and full-width glyphs count as two cells; East Asian ambiguous glyphs
// (⇒, ±) count as one, matching common monospace chat fonts.
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// DisplayWidth returns the number of monospace cells s occupies.
func DisplayWidth(s string) int { return widthCond.StringWidth(s) }

// PadRight right-pads s with spaces to the given display width.
func PadRight(s string, width int) string {
	n := width - DisplayWidth(s)
	if n <= 0 {
		return s
	}
	return s + strings.Repeat(" ", n)
}
