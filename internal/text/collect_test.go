package text

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	return fs
}

func TestCollect(t *testing.T) {
	fs := memFS(t, map[string]string{
		"corpus.txt":  "first line\r\n\n  second line  \n",
		"docs.json":   `{"title": "A title", "body": ["one", "two"], "views": 12, "draft": null}`,
		"rows.jsonl":  "{\"text\": \"row one\"}\n\n\"row two\"\n",
		"notes.TXT":   "café",
		"hello world": "file named like text",
	})

	tests := []struct {
		name   string
		inputs []any
		want   []string
	}{
		{"raw string", []any{"  hello \r\n world "}, []string{"hello \n world"}},
		{"blank string dropped", []any{"   ", ""}, nil},
		{"text file lines", []any{"corpus.txt"}, []string{"first line", "second line"}},
		{"explicit path", []any{Path("notes.TXT")}, []string{"café"}},
		{"json leaves in key order", []any{Path("docs.json")}, []string{"one", "two", "A title"}},
		{"jsonl", []any{Path("rows.jsonl")}, []string{"row one", "row two"}},
		{"existing file wins over text", []any{"hello world"}, []string{"file named like text"}},
		{
			"record",
			[]any{map[string]any{"b": "second", "a": "first", "c": []string{"x", " "}}},
			[]string{"first", "second", "x"},
		},
		{
			"mixed collection",
			[]any{[]any{"alpha", Path("corpus.txt"), []string{"beta"}, map[string]any{"k": "gamma"}}},
			[]string{"alpha", "first line", "second line", "beta", "gamma"},
		},
		{"path slice", []any{[]Path{"notes.TXT"}}, []string{"café"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCollector(fs).Collect(tt.inputs...)
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}

			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Collect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollect_Malformed(t *testing.T) {
	fs := memFS(t, map[string]string{
		"bad.json":  "{not json",
		"bad.jsonl": "\"ok\"\n{",
	})

	tests := []struct {
		name  string
		input any
	}{
		{"int", 42},
		{"nested unsupported", []any{"ok", 3.5}},
		{"record number", map[string]any{"n": 1.0}},
		{"record with struct", map[string]any{"s": struct{}{}}},
		{"invalid json file", Path("bad.json")},
		{"invalid jsonl line", Path("bad.jsonl")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollector(fs).Collect(tt.input)
			if !errors.Is(err, tokenizer.ErrMalformedInput) {
				t.Fatalf("err = %v, want ErrMalformedInput", err)
			}
		})
	}
}

func TestCollect_MissingPath(t *testing.T) {
	_, err := NewCollector(afero.NewMemMapFs()).Collect(Path("missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCollect_MaxSegmentChars(t *testing.T) {
	fs := memFS(t, map[string]string{
		"book.txt": "First sentence. Second one.\nStill second paragraph? No.\n\nNew paragraph.",
	})

	c := NewCollector(fs)
	c.MaxSegmentChars = 20

	got, err := c.Collect(Path("book.txt"))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"First sentence.", "Second one.", "Still second paragraph?", "No.", "New paragraph."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Collect = %q, want %q", got, want)
	}
}
