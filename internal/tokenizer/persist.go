package tokenizer

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// FormatVersion is the version written by Save and required by Load.
const FormatVersion = 1

// modelSnapshot is the persisted form of a trained tokenizer.
type modelSnapshot struct {
	FormatVersion int           `json:"format_version"`
	Config        Config        `json:"config"`
	Vocab         vocabSnapshot `json:"vocab"`
	Merges        []MergeRule   `json:"merges,omitempty"`
	Origins       []Route       `json:"origins,omitempty"`
}

// Save writes the trained state as an indented JSON document.
func (t *Tokenizer) Save(w io.Writer) error {
	snap, err := t.strategy.snapshot()
	if err != nil {
		return err
	}
	snap.FormatVersion = FormatVersion

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Load reads a document written by Save. The format version is checked
// before anything else.
func Load(r io.Reader, opts ...Option) (*Tokenizer, error) {
	var snap modelSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode model: %v", ErrMalformedInput, err)
	}
	if snap.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFormatVersion, snap.FormatVersion, FormatVersion)
	}

	t, err := New(snap.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}

	want := len(t.cfg.reserved()) + len(markersFor(t.Method(), t.cfg))
	if snap.Vocab.Reserved != want {
		return nil, fmt.Errorf("%w: %d reserved tokens, config implies %d", ErrMalformedInput, snap.Vocab.Reserved, want)
	}
	if err := t.strategy.restore(&snap); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveFile writes the model to path on fs, creating parent directories.
func (t *Tokenizer) SaveFile(fs afero.Fs, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := t.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	return nil
}

// LoadFile reads a model saved by SaveFile.
func LoadFile(fs afero.Fs, path string, opts ...Option) (*Tokenizer, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %q: %w", path, err)
	}
	defer f.Close()

	t, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", path, err)
	}
	return t, nil
}
