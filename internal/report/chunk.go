package report

import (
	"strings"
	"unicode/utf8"
)

// SplitLines splits text into chunks of at most limit runes, cutting only at
// line boundaries. A single line longer than limit becomes its own chunk.
func SplitLines(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		out   []string
		cur   strings.Builder
		size  int
		lines int
	)
	flush := func() {
		if lines > 0 {
			out = append(out, cur.String())
			cur.Reset()
			size, lines = 0, 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if lines > 0 && size+1+n > limit {
			flush()
		}
		if lines > 0 {
			cur.WriteByte('\n')
			size++
		}
		cur.WriteString(line)
		size += n
		lines++
	}
	flush()
	return out
}
