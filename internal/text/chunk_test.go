package text

import (
	"strings"
	"testing"
)

func TestSplitDocument(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		maxChars int
		want     []string
	}{
		{
			name:     "single sentence",
			doc:      "Hello world.",
			maxChars: 100,
			want:     []string{"Hello world."},
		},
		{
			name:     "two sentences within limit",
			doc:      "Hello. World.",
			maxChars: 100,
			want:     []string{"Hello. World."},
		},
		{
			name:     "two sentences exceeding limit",
			doc:      "Hello. World.",
			maxChars: 8,
			want:     []string{"Hello.", "World."},
		},
		{
			name:     "mixed terminators",
			doc:      "First. Second! Third?",
			maxChars: 10,
			want:     []string{"First.", "Second!", "Third?"},
		},
		{
			name:     "cjk terminators",
			doc:      "東京です。大阪です。",
			maxChars: 5,
			want:     []string{"東京です。", "大阪です。"},
		},
		{
			name:     "limit counts runes not bytes",
			doc:      "éé. éé.",
			maxChars: 7,
			want:     []string{"éé. éé."},
		},
		{
			name:     "long sentence kept intact",
			doc:      "This sentence is longer than the limit.",
			maxChars: 5,
			want:     []string{"This sentence is longer than the limit."},
		},
		{
			name:     "trailing text without terminator",
			doc:      "Done. And then",
			maxChars: 6,
			want:     []string{"Done.", "And then"},
		},
		{
			name:     "paragraphs never merge",
			doc:      "One.\n\nTwo.",
			maxChars: 100,
			want:     []string{"One.", "Two."},
		},
		{
			name:     "lines of a paragraph are joined",
			doc:      "one\r\ntwo\n\n\nthree",
			maxChars: 0,
			want:     []string{"one two", "three"},
		},
		{
			name:     "blank document",
			doc:      " \n\n \t",
			maxChars: 10,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitDocument(tt.doc, tt.maxChars)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitDocument(%q, %d) = %q, want %q", tt.doc, tt.maxChars, got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("  A.  B!C?  ")

	want := []string{"A.", "B!", "C?"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("splitSentences = %q, want %q", got, want)
	}
}
