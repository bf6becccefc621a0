// Package testutil provides shared fixtures for tests that need a trained
// tokenizer or an in-memory filesystem.
//
// Typical usage:
//
//	func TestMyHandler(t *testing.T) {
//	    tok := testutil.TrainedModel(t, tokenizer.MethodBPE)
//	    ...
//	}
package testutil

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

// Corpus is a small English corpus covering every lowercase letter.
var Corpus = []string{
	"the quick brown fox jumps over the lazy dog",
	"the lazy dog sleeps all day",
	"a quick brown dog jumps high",
	"foxes and dogs are quick friends",
}

// Config returns the defaults for method sized for Corpus: a vocabulary
// of 80 and a minimum frequency of 1.
func Config(method tokenizer.Method) tokenizer.Config {
	cfg := tokenizer.DefaultConfig(method)
	cfg.VocabSize = 80
	cfg.MinFrequency = 1

	return cfg
}

// TrainedModel returns a tokenizer for method fitted on Corpus.
func TrainedModel(tb testing.TB, method tokenizer.Method) *tokenizer.Tokenizer {
	tb.Helper()

	tok, err := tokenizer.New(Config(method))
	if err != nil {
		tb.Fatalf("tokenizer.New(%s): %v", method, err)
	}

	if err := tok.Fit(context.Background(), Corpus); err != nil {
		tb.Fatalf("Fit(%s): %v", method, err)
	}

	return tok
}

// MemFS returns an in-memory filesystem seeded with files.
func MemFS(tb testing.TB, files map[string]string) afero.Fs {
	tb.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}

	return fs
}

// SavedModel trains a model for method and saves it at path on a fresh
// in-memory filesystem.
func SavedModel(tb testing.TB, method tokenizer.Method, path string) afero.Fs {
	tb.Helper()

	fs := afero.NewMemMapFs()
	if err := TrainedModel(tb, method).SaveFile(fs, path); err != nil {
		tb.Fatalf("SaveFile(%s): %v", path, err)
	}

	return fs
}
