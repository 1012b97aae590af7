package report

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "", limit: 10, want: nil},
		{name: "fits", text: "a\nb", limit: 10, want: []string{"a\nb"}},
		{name: "split at line", text: "aaaa\nbbbb\ncccc", limit: 9, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "long line alone", text: "a\nbbbbbbbbbbbb\nc", limit: 5, want: []string{"a", "bbbbbbbbbbbb", "c"}},
		{name: "keeps blank lines", text: "\nab\n\ncd", limit: 4, want: []string{"\nab\n", "cd"}},
		{name: "runes not bytes", text: "한글한글\n한글한글", limit: 9, want: []string{"한글한글\n한글한글"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitLines(tt.text, tt.limit)
			if strings.Join(got, "\x00") != strings.Join(tt.want, "\x00") || len(got) != len(tt.want) {
				t.Fatalf("SplitLines=%q want %q", got, tt.want)
			}
		})
	}
}

func TestSplitLines_RejoinsToInput(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("| Alpha | PIII 72LP | DII⇒DI, +56 LP | 4 games, 3 won (75%) |\n")
	}
	text := strings.TrimSuffix(b.String(), "\n")
	chunks := SplitLines(text, 4000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 4000 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatalf("chunks do not rejoin to input")
	}
}
