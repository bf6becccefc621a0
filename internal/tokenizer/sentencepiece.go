package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// spaceMarker stands in for a literal space so that whitespace is an
// ordinary symbol of the raw character stream.
const spaceMarker = "▁"

// SentencePiece learns BPE merges over the raw character stream without
// splitting on whitespace. Spaces become spaceMarker, so the vocabulary and
// merges alone determine detokenization.
type SentencePiece struct {
	cfg   Config
	state atomic.Pointer[mergeState]
}

// NewSentencePiece returns an untrained SentencePiece-style strategy.
func NewSentencePiece(cfg Config) (*SentencePiece, error) {
	cfg, err := prepare(cfg, MethodSentencePiece)
	if err != nil {
		return nil, err
	}
	return &SentencePiece{cfg: cfg}, nil
}

func (s *SentencePiece) Method() Method { return MethodSentencePiece }

func (s *SentencePiece) escape(text string) string {
	return strings.ReplaceAll(fold(text, !s.cfg.CaseSensitive), " ", spaceMarker)
}

// checkMarker rejects text that already holds spaceMarker, which would
// decode to a space.
func checkMarker(text string) error {
	if strings.Contains(text, spaceMarker) {
		return fmt.Errorf("%w: text contains the reserved space marker %q", ErrMalformedInput, spaceMarker)
	}
	return nil
}

func checkMarkerCorpus(corpus []string) error {
	for i, seg := range corpus {
		if err := checkMarker(seg); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// Fit keeps every rune of the corpus as a base token, so any text over the
// training alphabet round-trips. min_frequency applies to merges only.
func (s *SentencePiece) Fit(ctx context.Context, corpus []string) error {
	if err := checkCorpus(corpus); err != nil {
		return err
	}
	if err := checkMarkerCorpus(corpus); err != nil {
		return err
	}

	// Identical segments share one arena entry.
	counts, err := CountWords(ctx, corpus, func(seg string) []string {
		if seg == "" {
			return nil
		}
		return []string{s.escape(seg)}
	}, s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count segments: %w", err)
	}
	segments := sortedWords(counts)

	vocab := NewVocabulary(s.cfg.reserved()...)
	vocab.Reserve(spaceMarker)

	chars, err := countRunes(ctx, segments, s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}
	addByFrequency(vocab, chars)
	if vocab.Size() > s.cfg.VocabSize {
		reason := fmt.Sprintf("must hold %d reserved tokens and the %d-character training alphabet",
			vocab.Reserved(), vocab.Size()-vocab.Reserved())
		return &ConfigError{Field: "vocab_size", Value: s.cfg.VocabSize, Reason: reason}
	}

	arena := make([]learnWord, len(segments))
	for i, seg := range segments {
		arena[i] = learnWord{symbols: runeSymbols(seg.word), count: seg.count}
	}

	rules, err := learnMerges(ctx, arena, vocab, learnerOptions{
		capacity:       s.cfg.VocabSize,
		minFrequency:   s.cfg.MinFrequency,
		maxTokenLength: s.cfg.MaxTokenLength,
		workers:        s.cfg.Workers,
	})
	if err != nil {
		return err
	}

	s.state.Store(&mergeState{vocab: vocab, merges: NewMergeTable(rules)})
	return nil
}

func (s *SentencePiece) tokenize(st *mergeState, text string) ([]string, error) {
	if err := checkMarker(text); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	pieces := st.merges.Apply(runeSymbols(s.escape(text)), nil)
	return tokensOrUnk(st.vocab, pieces, s.cfg.UnkToken), nil
}

func (s *SentencePiece) Tokenize(text string) ([]string, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return s.tokenize(st, text)
}

func (s *SentencePiece) Encode(text string) ([]int, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	toks, err := s.tokenize(st, text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = lookup(st.vocab, t, s.cfg.UnkToken)
	}
	return ids, nil
}

// Decode concatenates pieces and restores spaces from spaceMarker.
func (s *SentencePiece) Decode(ids []int) (string, error) {
	st := s.state.Load()
	if st == nil {
		return "", ErrNotTrained
	}
	toks, err := idTokens(st.vocab, ids, s.cfg.PadToken)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.Join(toks, ""), spaceMarker, " "), nil
}

func (s *SentencePiece) vocabulary() (*Vocabulary, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return st.vocab, nil
}

func (s *SentencePiece) snapshot() (*modelSnapshot, error) {
	return snapshotMerges(s.cfg, s.state.Load())
}

func (s *SentencePiece) restore(snap *modelSnapshot) error {
	st, err := restoreMerges(snap)
	if err != nil {
		return err
	}
	s.state.Store(st)
	return nil
}
