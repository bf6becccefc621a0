package tokenizer

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/multierr"
)

// Method names a tokenization strategy.
type Method string

const (
	MethodCharacter     Method = "character"
	MethodBPE           Method = "bpe"
	MethodWordPiece     Method = "wordpiece"
	MethodSentencePiece Method = "sentencepiece"
	MethodHybrid        Method = "hybrid"
)

// Methods lists every supported method in a stable order.
func Methods() []Method {
	return []Method{MethodCharacter, MethodBPE, MethodWordPiece, MethodSentencePiece, MethodHybrid}
}

// ParseMethod resolves a case-insensitive method name. "char" and
// "spm" are accepted as aliases.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case MethodCharacter, MethodBPE, MethodWordPiece, MethodSentencePiece, MethodHybrid:
		return m, nil
	case "char":
		return MethodCharacter, nil
	case "spm", "sentence_piece":
		return MethodSentencePiece, nil
	default:
		return "", &ConfigError{
			Field:  "method",
			Value:  raw,
			Reason: "expected character|bpe|wordpiece|sentencepiece|hybrid",
		}
	}
}

const ratioTolerance = 1e-6

// Config is the immutable tokenizer configuration shared by every strategy.
// It is passed by value; strategies never mutate it.
type Config struct {
	Method         string   `json:"method" mapstructure:"method"`
	VocabSize      int      `json:"vocab_size" mapstructure:"vocab_size"`
	MinFrequency   int      `json:"min_frequency" mapstructure:"min_frequency"`
	SpecialTokens  []string `json:"special_tokens,omitempty" mapstructure:"special_tokens"`
	UnkToken       string   `json:"unk_token" mapstructure:"unk_token"`
	PadToken       string   `json:"pad_token" mapstructure:"pad_token"`
	CaseSensitive  bool     `json:"case_sensitive" mapstructure:"case_sensitive"`
	MaxTokenLength int      `json:"max_token_length" mapstructure:"max_token_length"`
	Workers        int      `json:"workers" mapstructure:"workers"`

	// BPE
	Dropout         float64 `json:"dropout" mapstructure:"dropout"`
	Seed            uint64  `json:"seed" mapstructure:"seed"`
	EndOfWordSuffix string  `json:"end_of_word_suffix" mapstructure:"end_of_word_suffix"`

	// WordPiece
	ContinuationPrefix   string `json:"continuation_prefix" mapstructure:"continuation_prefix"`
	DoLowerCase          bool   `json:"do_lower_case" mapstructure:"do_lower_case"`
	MaxInputCharsPerWord int    `json:"max_input_chars_per_word" mapstructure:"max_input_chars_per_word"`

	// Hybrid
	CharRatio    float64 `json:"char_ratio" mapstructure:"char_ratio"`
	WordRatio    float64 `json:"word_ratio" mapstructure:"word_ratio"`
	SubwordRatio float64 `json:"subword_ratio" mapstructure:"subword_ratio"`
	AdaptiveMode bool    `json:"adaptive_mode" mapstructure:"adaptive_mode"`
}

// DefaultConfig returns the defaults for the given method.
func DefaultConfig(method Method) Config {
	return Config{
		Method:               string(method),
		VocabSize:            1000,
		MinFrequency:         2,
		UnkToken:             "[UNK]",
		PadToken:             "[PAD]",
		CaseSensitive:        true,
		MaxTokenLength:       100,
		EndOfWordSuffix:      "</w>",
		ContinuationPrefix:   "##",
		MaxInputCharsPerWord: 100,
		CharRatio:            0.3,
		WordRatio:            0.4,
		SubwordRatio:         0.3,
		AdaptiveMode:         true,
	}
}

// reserved returns unk, pad and the user specials in id order.
func (c Config) reserved() []string {
	out := make([]string, 0, 2+len(c.SpecialTokens))
	out = append(out, c.UnkToken, c.PadToken)
	return append(out, c.SpecialTokens...)
}

// Validate reports every violated constraint. The returned error matches
// ErrInvalidConfig via errors.Is.
func (c Config) Validate() error {
	var errs error

	add := func(field string, value any, reason string) {
		errs = multierr.Append(errs, &ConfigError{Field: field, Value: value, Reason: reason})
	}

	method, err := ParseMethod(c.Method)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.VocabSize <= 0 {
		add("vocab_size", c.VocabSize, "must be positive")
	} else if n := len(c.reserved()) + len(markersFor(method, c)); c.VocabSize <= n {
		add("vocab_size", c.VocabSize, fmt.Sprintf("must exceed the %d reserved tokens", n))
	}
	if c.MinFrequency < 0 {
		add("min_frequency", c.MinFrequency, "must not be negative")
	}
	if c.MaxTokenLength < 0 {
		add("max_token_length", c.MaxTokenLength, "must not be negative")
	}
	if c.Workers < 0 {
		add("workers", c.Workers, "must not be negative")
	}

	if c.UnkToken == "" {
		add("unk_token", c.UnkToken, "must not be empty")
	}
	if c.PadToken == "" {
		add("pad_token", c.PadToken, "must not be empty")
	}
	if c.UnkToken != "" && c.UnkToken == c.PadToken {
		add("pad_token", c.PadToken, "conflicts with unk_token")
	}
	seen := map[string]bool{c.UnkToken: true, c.PadToken: true}
	for _, tok := range c.SpecialTokens {
		switch {
		case tok == "":
			add("special_tokens", tok, "must not contain empty tokens")
		case seen[tok]:
			add("special_tokens", tok, "duplicates another reserved token")
		}
		seen[tok] = true
	}
	for _, m := range markersFor(method, c) {
		if m != "" && seen[m] {
			add("special_tokens", m, "collides with a structural marker")
		}
	}

	switch method {
	case MethodBPE:
		if c.Dropout < 0 || c.Dropout >= 1 || math.IsNaN(c.Dropout) {
			add("dropout", c.Dropout, "must be in [0, 1)")
		}
		if c.EndOfWordSuffix == "" {
			add("end_of_word_suffix", c.EndOfWordSuffix, "must not be empty")
		}
	case MethodWordPiece:
		if c.ContinuationPrefix == "" {
			add("continuation_prefix", c.ContinuationPrefix, "must not be empty")
		}
		if c.MaxInputCharsPerWord <= 0 {
			add("max_input_chars_per_word", c.MaxInputCharsPerWord, "must be positive")
		}
	case MethodHybrid:
		for _, r := range []struct {
			field string
			value float64
		}{
			{"char_ratio", c.CharRatio},
			{"word_ratio", c.WordRatio},
			{"subword_ratio", c.SubwordRatio},
		} {
			if r.value < 0 || math.IsNaN(r.value) {
				add(r.field, r.value, "must not be negative")
			}
		}
		sum := c.CharRatio + c.WordRatio + c.SubwordRatio
		if math.Abs(sum-1) > ratioTolerance {
			add("char_ratio+word_ratio+subword_ratio",
				fmt.Sprintf("[%g, %g, %g]", c.CharRatio, c.WordRatio, c.SubwordRatio),
				"ratios must sum to 1.0")
		}
	}

	return errs
}

// markersFor returns the structural tokens a method reserves after the
// specials.
func markersFor(method Method, c Config) []string {
	switch method {
	case MethodBPE:
		return []string{c.EndOfWordSuffix}
	case MethodSentencePiece, MethodHybrid:
		return []string{spaceMarker}
	default:
		return nil
	}
}
