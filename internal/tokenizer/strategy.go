package tokenizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Strategy is one tokenization method. The variant set is closed: only the
// types in this package implement it.
//
// Fit trains from scratch and atomically replaces any previous state; a
// failed or canceled Fit keeps the previous state. All other methods read
// the committed state only and are safe for concurrent use.
type Strategy interface {
	Method() Method
	Fit(ctx context.Context, corpus []string) error
	Tokenize(text string) ([]string, error)
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)

	vocabulary() (*Vocabulary, error)
	snapshot() (*modelSnapshot, error)
	restore(s *modelSnapshot) error
}

type options struct {
	logger *slog.Logger
	rng    *rand.Rand
}

// Option configures a Tokenizer or Strategy.
type Option func(*options)

// WithLogger sets the logger used to report training progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRand sets the randomness source consulted by BPE dropout.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

func buildOptions(cfg Config, fns []Option) options {
	o := options{logger: slog.Default()}
	for _, fn := range fns {
		fn(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}
	return o
}

// newStrategy maps the configured method to its implementation.
func newStrategy(cfg Config, fns []Option) (Strategy, error) {
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodCharacter:
		return NewCharacter(cfg)
	case MethodBPE:
		return NewBPE(cfg, fns...)
	case MethodWordPiece:
		return NewWordPiece(cfg)
	case MethodSentencePiece:
		return NewSentencePiece(cfg)
	case MethodHybrid:
		return NewHybrid(cfg)
	default:
		return nil, &ConfigError{Field: "method", Value: cfg.Method, Reason: "unsupported method"}
	}
}

// prepare pins the method and validates cfg for a strategy constructor.
func prepare(cfg Config, method Method) (Config, error) {
	cfg.Method = string(method)
	cfg.SpecialTokens = append([]string(nil), cfg.SpecialTokens...)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkCorpus enforces the sequence-of-text contract Fit relies on.
func checkCorpus(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	for i, seg := range corpus {
		if !utf8.ValidString(seg) {
			return fmt.Errorf("%w: segment %d is not valid UTF-8", ErrMalformedInput, i)
		}
	}
	return nil
}

// fold lowercases s when lower is set.
func fold(s string, lower bool) string {
	if !lower || s == "" {
		return s
	}
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Lower(language.Und).String(s)
}

func foldAll(corpus []string, lower bool) []string {
	if !lower {
		return corpus
	}
	out := make([]string, len(corpus))
	for i, s := range corpus {
		out[i] = fold(s, true)
	}
	return out
}

// addByFrequency records counts in descending frequency order, ties by
// token, so later pruning keeps the most frequent tokens deterministically.
func addByFrequency(v *Vocabulary, counts map[string]int) {
	for _, tc := range rankCounts(counts) {
		v.RecordFrequency(tc.word, tc.count)
	}
}

func rankCounts(counts map[string]int) []wordCount {
	out := sortedWords(counts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}

// lookup maps tok to its id, falling back to the unk id.
func lookup(v *Vocabulary, tok, unk string) int {
	if id, ok := v.ID(tok); ok {
		return id
	}
	id, _ := v.ID(unk)
	return id
}

// tokensOrUnk replaces every token missing from v by unk.
func tokensOrUnk(v *Vocabulary, toks []string, unk string) []string {
	for i, t := range toks {
		if !v.Contains(t) {
			toks[i] = unk
		}
	}
	return toks
}

// idTokens resolves ids, dropping pad. It fails on the first out-of-range id.
func idTokens(v *Vocabulary, ids []int, pad string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		tok, err := v.Token(id)
		if err != nil {
			return nil, err
		}
		if tok == pad && v.IsReserved(id) {
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}

func runeSymbols(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
