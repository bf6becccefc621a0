package tokenizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
)

// BPE learns byte-pair-encoding style merges over whitespace-split words.
// Each word is split into runes followed by the end-of-word marker.
type BPE struct {
	cfg   Config
	state atomic.Pointer[mergeState]

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// mergeState is the trained state shared by the merge-based strategies.
type mergeState struct {
	vocab  *Vocabulary
	merges *MergeTable
}

// NewBPE returns an untrained BPE strategy. WithRand supplies the dropout
// randomness source; by default it is seeded from cfg.Seed.
func NewBPE(cfg Config, opts ...Option) (*BPE, error) {
	cfg, err := prepare(cfg, MethodBPE)
	if err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)
	return &BPE{cfg: cfg, rng: o.rng}, nil
}

func (b *BPE) Method() Method { return MethodBPE }

func (b *BPE) Fit(ctx context.Context, corpus []string) error {
	if err := checkCorpus(corpus); err != nil {
		return err
	}
	corpus = foldAll(corpus, !b.cfg.CaseSensitive)

	counts, err := CountWords(ctx, corpus, strings.Fields, b.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count words: %w", err)
	}
	words := sortedWords(counts)

	vocab := NewVocabulary(b.cfg.reserved()...)
	vocab.Reserve(b.cfg.EndOfWordSuffix)

	chars, err := countRunes(ctx, words, b.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}
	addByFrequency(vocab, chars)
	total := 0
	for _, w := range words {
		total += w.count
	}
	vocab.RecordFrequency(b.cfg.EndOfWordSuffix, total)
	vocab.Finalize(b.cfg.VocabSize, b.cfg.MinFrequency)

	arena := make([]learnWord, len(words))
	for i, w := range words {
		arena[i] = learnWord{symbols: b.symbols(w.word), count: w.count}
	}

	rules, err := learnMerges(ctx, arena, vocab, learnerOptions{
		capacity:       b.cfg.VocabSize,
		minFrequency:   b.cfg.MinFrequency,
		maxTokenLength: b.cfg.MaxTokenLength,
		workers:        b.cfg.Workers,
	})
	if err != nil {
		return err
	}

	b.state.Store(&mergeState{vocab: vocab, merges: NewMergeTable(rules)})
	return nil
}

// symbols splits word into runes plus the end-of-word marker.
func (b *BPE) symbols(word string) []string {
	return append(runeSymbols(word), b.cfg.EndOfWordSuffix)
}

// skip draws once per merge attempt. It is nil when dropout is disabled.
func (b *BPE) skip() func() bool {
	if b.cfg.Dropout <= 0 {
		return nil
	}
	return func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.rng.Float64() < b.cfg.Dropout
	}
}

func (b *BPE) Tokenize(text string) ([]string, error) {
	st := b.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return b.tokenize(st, text), nil
}

func (b *BPE) Encode(text string) ([]int, error) {
	st := b.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	toks := b.tokenize(st, text)
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = lookup(st.vocab, t, b.cfg.UnkToken)
	}
	return ids, nil
}

func (b *BPE) tokenize(st *mergeState, text string) []string {
	skip := b.skip()
	var out []string
	for _, word := range strings.Fields(fold(text, !b.cfg.CaseSensitive)) {
		out = append(out, tokensOrUnk(st.vocab, st.merges.Apply(b.symbols(word), skip), b.cfg.UnkToken)...)
	}
	return out
}

// Decode concatenates tokens and turns every end-of-word marker into a
// single space, except after the final token.
func (b *BPE) Decode(ids []int) (string, error) {
	st := b.state.Load()
	if st == nil {
		return "", ErrNotTrained
	}
	toks, err := idTokens(st.vocab, ids, b.cfg.PadToken)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, t := range toks {
		if word, ok := strings.CutSuffix(t, b.cfg.EndOfWordSuffix); ok {
			sb.WriteString(word)
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(t)
	}
	return strings.TrimSuffix(sb.String(), " "), nil
}

func (b *BPE) vocabulary() (*Vocabulary, error) {
	st := b.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return st.vocab, nil
}

func (b *BPE) snapshot() (*modelSnapshot, error) {
	return snapshotMerges(b.cfg, b.state.Load())
}

func (b *BPE) restore(s *modelSnapshot) error {
	st, err := restoreMerges(s)
	if err != nil {
		return err
	}
	b.state.Store(st)
	return nil
}

func snapshotMerges(cfg Config, st *mergeState) (*modelSnapshot, error) {
	if st == nil {
		return nil, ErrNotTrained
	}
	return &modelSnapshot{
		Config: cfg,
		Vocab:  st.vocab.snapshot(),
		Merges: st.merges.Rules(),
	}, nil
}

func restoreMerges(s *modelSnapshot) (*mergeState, error) {
	vocab, err := vocabularyFromSnapshot(s.Vocab)
	if err != nil {
		return nil, err
	}
	for i, r := range s.Merges {
		if r.Rank != i {
			return nil, fmt.Errorf("%w: merge %d has rank %d", ErrMalformedInput, i, r.Rank)
		}
	}
	return &mergeState{vocab: vocab, merges: NewMergeTable(s.Merges)}, nil
}
