package text

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

// Path marks a string input as a file path. Plain strings are treated as
// paths only when a file of that name exists.
type Path string

// Collector flattens heterogeneous inputs into normalized text segments.
type Collector struct {
	FS afero.Fs
	// MaxSegmentChars, when positive, splits documents into sentence
	// groups of at most this many runes. Otherwise each line of a text
	// file is one segment.
	MaxSegmentChars int
}

// NewCollector returns a Collector reading files from fs.
func NewCollector(fs afero.Fs) *Collector {
	return &Collector{FS: fs}
}

// Collect accepts strings, Path values, map[string]any records and nested
// []any / []string / []Path collections. Records contribute their string
// values in key order. Files ending in .json are parsed and their string
// leaves collected; .jsonl files hold one JSON value per line; any other
// file contributes its lines. Empty segments are dropped. Unsupported
// input types fail with tokenizer.ErrMalformedInput.
func (c *Collector) Collect(inputs ...any) ([]string, error) {
	var out []string

	for i, in := range inputs {
		segs, err := c.collect(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		out = append(out, segs...)
	}

	return out, nil
}

func (c *Collector) collect(in any) ([]string, error) {
	switch v := in.(type) {
	case Path:
		return c.collectFile(string(v))
	case string:
		if c.FS != nil {
			if ok, _ := afero.Exists(c.FS, v); ok {
				return c.collectFile(v)
			}
		}

		return c.document(v), nil
	case []string:
		return collectSlice(c, v)
	case []Path:
		return collectSlice(c, v)
	case []any:
		return collectSlice(c, v)
	case map[string]any:
		return c.collectRecord(v, true)
	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", tokenizer.ErrMalformedInput, in)
	}
}

func collectSlice[T any](c *Collector, items []T) ([]string, error) {
	var out []string

	for i, item := range items {
		segs, err := c.collect(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}

		out = append(out, segs...)
	}

	return out, nil
}

// collectRecord walks a record in key order. Parsed JSON may hold numbers,
// booleans and nulls, which are skipped; strict rejects them instead.
func (c *Collector) collectRecord(rec map[string]any, strict bool) ([]string, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var out []string

	for _, k := range keys {
		segs, err := c.collectValue(rec[k], strict)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}

		out = append(out, segs...)
	}

	return out, nil
}

func (c *Collector) collectValue(v any, strict bool) ([]string, error) {
	switch v := v.(type) {
	case string:
		return c.document(v), nil
	case map[string]any:
		return c.collectRecord(v, strict)
	case []any:
		var out []string

		for i, item := range v {
			segs, err := c.collectValue(item, strict)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}

			out = append(out, segs...)
		}

		return out, nil
	case []string:
		var out []string
		for _, s := range v {
			out = append(out, c.document(s)...)
		}

		return out, nil
	case nil, bool, float64, json.Number:
		if strict {
			return nil, fmt.Errorf("%w: unsupported value type %T", tokenizer.ErrMalformedInput, v)
		}

		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", tokenizer.ErrMalformedInput, v)
	}
}

func (c *Collector) collectFile(path string) ([]string, error) {
	if c.FS == nil {
		return nil, errors.New("no filesystem configured")
	}

	data, err := afero.ReadFile(c.FS, path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse %q: %v", tokenizer.ErrMalformedInput, path, err)
		}

		return c.collectValue(doc, false)
	case ".jsonl":
		var out []string

		for n, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}

			var doc any
			if err := json.Unmarshal([]byte(line), &doc); err != nil {
				return nil, fmt.Errorf("%w: parse %q line %d: %v", tokenizer.ErrMalformedInput, path, n+1, err)
			}

			segs, err := c.collectValue(doc, false)
			if err != nil {
				return nil, err
			}

			out = append(out, segs...)
		}

		return out, nil
	default:
		if c.MaxSegmentChars > 0 {
			return c.document(string(data)), nil
		}

		var out []string
		for _, line := range strings.Split(string(data), "\n") {
			out = appendNormalized(out, line)
		}

		return out, nil
	}
}

// document normalizes one piece of raw text into zero or more segments.
func (c *Collector) document(s string) []string {
	if c.MaxSegmentChars <= 0 {
		return appendNormalized(nil, s)
	}

	var out []string
	for _, seg := range SplitDocument(s, c.MaxSegmentChars) {
		out = appendNormalized(out, seg)
	}

	return out
}

func appendNormalized(out []string, s string) []string {
	if n, err := Normalize(s); err == nil {
		out = append(out, n)
	}

	return out
}
