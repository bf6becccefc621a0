// Package tokenizer trains and applies subword vocabularies. Five methods
// share one Config, one Vocabulary type and one merge/match engine:
// character, BPE, WordPiece, SentencePiece-style and Hybrid.
package tokenizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Tokenizer is the method-independent entry point. It owns exactly one
// Strategy selected from the configured method.
type Tokenizer struct {
	cfg      Config
	strategy Strategy
	logger   *slog.Logger
}

// New validates cfg and builds the strategy for cfg.Method.
func New(cfg Config, opts ...Option) (*Tokenizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, _ := ParseMethod(cfg.Method)
	cfg.Method = string(method)
	cfg.SpecialTokens = append([]string(nil), cfg.SpecialTokens...)

	s, err := newStrategy(cfg, opts)
	if err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)
	return &Tokenizer{cfg: cfg, strategy: s, logger: o.logger}, nil
}

// Method returns the resolved method.
func (t *Tokenizer) Method() Method { return t.strategy.Method() }

// Config returns a copy of the configuration.
func (t *Tokenizer) Config() Config {
	cfg := t.cfg
	cfg.SpecialTokens = append([]string(nil), cfg.SpecialTokens...)
	return cfg
}

// Strategy exposes the underlying strategy, e.g. for *Hybrid introspection.
func (t *Tokenizer) Strategy() Strategy { return t.strategy }

// Fit trains on corpus, replacing any previous state only on success.
func (t *Tokenizer) Fit(ctx context.Context, corpus []string) error {
	start := time.Now()
	t.logger.Debug("fit started",
		"method", t.cfg.Method,
		"segments", len(corpus),
		"vocab_size", t.cfg.VocabSize,
	)

	if err := t.strategy.Fit(ctx, corpus); err != nil {
		return fmt.Errorf("fit %s: %w", t.cfg.Method, err)
	}

	attrs := []any{
		"method", t.cfg.Method,
		"segments", len(corpus),
		"duration", time.Since(start),
	}
	if v, err := t.strategy.vocabulary(); err == nil {
		attrs = append(attrs, "vocab_size", v.Size())
	}
	t.logger.Info("fit complete", attrs...)
	return nil
}

func (t *Tokenizer) Tokenize(text string) ([]string, error) { return t.strategy.Tokenize(text) }

func (t *Tokenizer) Encode(text string) ([]int, error) { return t.strategy.Encode(text) }

func (t *Tokenizer) Decode(ids []int) (string, error) { return t.strategy.Decode(ids) }

// Vocab returns the token->id mapping.
func (t *Tokenizer) Vocab() (map[string]int, error) {
	v, err := t.strategy.vocabulary()
	if err != nil {
		return nil, err
	}
	return v.Map(), nil
}

// Tokens returns the vocabulary in id order.
func (t *Tokenizer) Tokens() ([]string, error) {
	v, err := t.strategy.vocabulary()
	if err != nil {
		return nil, err
	}
	return v.Tokens(), nil
}

// TokenFrequencies returns the token->count mapping recorded in training.
func (t *Tokenizer) TokenFrequencies() (map[string]int, error) {
	v, err := t.strategy.vocabulary()
	if err != nil {
		return nil, err
	}
	return v.Frequencies(), nil
}

// VocabSize returns the number of tokens, reserved ones included.
func (t *Tokenizer) VocabSize() (int, error) {
	v, err := t.strategy.vocabulary()
	if err != nil {
		return 0, err
	}
	return v.Size(), nil
}

// VerifyRoundTrip reports whether decoding the encoding of text gives back
// text in the form the method preserves: case folded when configured, and
// for BPE and WordPiece with whitespace collapsed to single spaces.
func (t *Tokenizer) VerifyRoundTrip(text string) (bool, error) {
	ids, err := t.Encode(text)
	if err != nil {
		return false, err
	}
	got, err := t.Decode(ids)
	if err != nil {
		return false, err
	}
	return got == t.canonical(text), nil
}

func (t *Tokenizer) canonical(text string) string {
	switch t.Method() {
	case MethodBPE:
		return strings.Join(strings.Fields(fold(text, !t.cfg.CaseSensitive)), " ")
	case MethodWordPiece:
		return strings.Join(strings.Fields(fold(text, t.cfg.DoLowerCase || !t.cfg.CaseSensitive)), " ")
	default:
		return fold(text, !t.cfg.CaseSensitive)
	}
}
