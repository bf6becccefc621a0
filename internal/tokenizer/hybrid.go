package tokenizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Hybrid splits the vocabulary budget between a character, a whole-word
// and a subword sub-vocabulary and routes each segment to one of them.
// All three share one id space; Origin reports which one owns an id.
type Hybrid struct {
	cfg   Config
	state atomic.Pointer[hybridState]
}

type hybridState struct {
	vocab   *Vocabulary
	merges  *MergeTable
	origins []Route
}

// Span is one routed segment of a Hybrid tokenization.
type Span struct {
	Text   string   `json:"text"`
	Route  Route    `json:"route"`
	Tokens []string `json:"tokens"`
	IDs    []int    `json:"ids"`
}

// NewHybrid returns an untrained Hybrid strategy.
func NewHybrid(cfg Config) (*Hybrid, error) {
	cfg, err := prepare(cfg, MethodHybrid)
	if err != nil {
		return nil, err
	}
	return &Hybrid{cfg: cfg}, nil
}

func (h *Hybrid) Method() Method { return MethodHybrid }

func (h *Hybrid) escape(seg string) string {
	return strings.ReplaceAll(seg, " ", spaceMarker)
}

// budgets splits the learnable part of the vocabulary by the configured
// ratios. Rounding leftovers go to the subword model.
func (h *Hybrid) budgets(reserved int) (chars, words, subwords int) {
	learnable := h.cfg.VocabSize - reserved
	chars = int(math.Floor(float64(learnable) * h.cfg.CharRatio))
	words = int(math.Floor(float64(learnable) * h.cfg.WordRatio))
	return chars, words, learnable - chars - words
}

func (h *Hybrid) Fit(ctx context.Context, corpus []string) error {
	if err := checkCorpus(corpus); err != nil {
		return err
	}
	if err := checkMarkerCorpus(corpus); err != nil {
		return err
	}
	corpus = foldAll(corpus, !h.cfg.CaseSensitive)

	counts, err := CountWords(ctx, corpus, func(s string) []string {
		segs := hybridSegments(s)
		for i, seg := range segs {
			segs[i] = h.escape(seg)
		}
		return segs
	}, h.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count segments: %w", err)
	}
	segments := sortedWords(counts)

	vocab := NewVocabulary(h.cfg.reserved()...)
	vocab.Reserve(spaceMarker)
	origins := make([]Route, vocab.Size())
	charBudget, wordBudget, subBudget := h.budgets(vocab.Size())

	chars, err := countRunes(ctx, segments, h.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}
	// The marker is reserved but still accumulates its count.
	vocab.RecordFrequency(spaceMarker, chars[spaceMarker])
	delete(chars, spaceMarker)
	for _, tc := range rankCounts(chars) {
		if charBudget == 0 || tc.count < h.cfg.MinFrequency {
			break
		}
		vocab.RecordFrequency(tc.word, tc.count)
		origins = append(origins, RouteChar)
		charBudget--
	}

	for _, wc := range h.rankWords(segments) {
		if wordBudget == 0 {
			break
		}
		if vocab.Contains(wc.word) {
			continue
		}
		vocab.RecordFrequency(wc.word, wc.count)
		origins = append(origins, RouteWord)
		wordBudget--
	}

	arena := make([]learnWord, len(segments))
	for i, seg := range segments {
		arena[i] = learnWord{symbols: runeSymbols(seg.word), count: seg.count}
	}
	rules, err := learnMerges(ctx, arena, vocab, learnerOptions{
		capacity:       vocab.Size() + subBudget,
		minFrequency:   h.cfg.MinFrequency,
		maxTokenLength: h.cfg.MaxTokenLength,
		workers:        h.cfg.Workers,
	})
	if err != nil {
		return err
	}
	for len(origins) < vocab.Size() {
		origins = append(origins, RouteSubword)
	}

	h.state.Store(&hybridState{vocab: vocab, merges: NewMergeTable(rules), origins: origins})
	return nil
}

// rankWords returns the multi-rune segments eligible for the word
// sub-vocabulary, most frequent first, ties by text.
func (h *Hybrid) rankWords(segments []wordCount) []wordCount {
	var out []wordCount
	for _, wc := range segments {
		n := utf8.RuneCountInString(wc.word)
		if n < 2 || wc.count < h.cfg.MinFrequency {
			continue
		}
		if h.cfg.MaxTokenLength > 0 && n > h.cfg.MaxTokenLength {
			continue
		}
		out = append(out, wc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}

// Analyze reports the routing features of a single segment.
func (h *Hybrid) Analyze(segment string) (SegmentFeatures, error) {
	st := h.state.Load()
	if st == nil {
		return SegmentFeatures{}, ErrNotTrained
	}
	if err := checkMarker(segment); err != nil {
		return SegmentFeatures{}, err
	}
	f, _ := h.analyze(st, h.escape(fold(segment, !h.cfg.CaseSensitive)))
	return f, nil
}

// analyze computes the features of an escaped segment together with its
// subword pieces, which the subword route reuses.
func (h *Hybrid) analyze(st *hybridState, seg string) (SegmentFeatures, []string) {
	runes := runeSymbols(seg)
	f := SegmentFeatures{Runes: len(runes)}
	if len(runes) == 0 {
		return f, nil
	}
	if id, ok := st.vocab.ID(seg); ok && st.origins[id] == RouteWord {
		f.InWordVocab = true
	}

	cjk := 0
	for _, r := range seg {
		if isCJK(r) {
			cjk++
		}
	}
	f.CJKRatio = float64(cjk) / float64(len(runes))

	pieces := st.merges.Apply(runes, nil)
	unknown := 0
	for _, p := range pieces {
		if !st.vocab.Contains(p) {
			unknown++
		}
	}
	f.UnknownRatio = float64(unknown) / float64(len(pieces))
	f.Fragmentation = float64(len(pieces)) / float64(len(runes))
	return f, pieces
}

func (h *Hybrid) spans(st *hybridState, text string) ([]Span, error) {
	if err := checkMarker(text); err != nil {
		return nil, err
	}
	segs := hybridSegments(fold(text, !h.cfg.CaseSensitive))
	out := make([]Span, 0, len(segs))
	for _, raw := range segs {
		seg := h.escape(raw)
		f, pieces := h.analyze(st, seg)

		var toks []string
		route := ChooseRoute(f, h.cfg.AdaptiveMode)
		switch route {
		case RouteWord:
			toks = []string{seg}
		case RouteChar:
			toks = tokensOrUnk(st.vocab, runeSymbols(seg), h.cfg.UnkToken)
		default:
			toks = tokensOrUnk(st.vocab, pieces, h.cfg.UnkToken)
		}

		ids := make([]int, len(toks))
		for i, t := range toks {
			ids[i] = lookup(st.vocab, t, h.cfg.UnkToken)
		}
		out = append(out, Span{Text: raw, Route: route, Tokens: toks, IDs: ids})
	}
	return out, nil
}

// TokenizeSpans tokenizes text and reports the route taken by every
// segment.
func (h *Hybrid) TokenizeSpans(text string) ([]Span, error) {
	st := h.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return h.spans(st, text)
}

func (h *Hybrid) Tokenize(text string) ([]string, error) {
	st := h.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	spans, err := h.spans(st, text)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, sp := range spans {
		out = append(out, sp.Tokens...)
	}
	return out, nil
}

func (h *Hybrid) Encode(text string) ([]int, error) {
	st := h.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	spans, err := h.spans(st, text)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, sp := range spans {
		out = append(out, sp.IDs...)
	}
	return out, nil
}

// Decode does not depend on routing: every route emits tokens whose
// concatenation is the escaped segment.
func (h *Hybrid) Decode(ids []int) (string, error) {
	st := h.state.Load()
	if st == nil {
		return "", ErrNotTrained
	}
	toks, err := idTokens(st.vocab, ids, h.cfg.PadToken)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.Join(toks, ""), spaceMarker, " "), nil
}

// Origin returns the sub-vocabulary that owns id.
func (h *Hybrid) Origin(id int) (Route, error) {
	st := h.state.Load()
	if st == nil {
		return RouteNone, ErrNotTrained
	}
	if id < 0 || id >= len(st.origins) {
		return RouteNone, &IDError{ID: id, Size: len(st.origins)}
	}
	return st.origins[id], nil
}

func (h *Hybrid) vocabulary() (*Vocabulary, error) {
	st := h.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return st.vocab, nil
}

func (h *Hybrid) snapshot() (*modelSnapshot, error) {
	st := h.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return &modelSnapshot{
		Config:  h.cfg,
		Vocab:   st.vocab.snapshot(),
		Merges:  st.merges.Rules(),
		Origins: append([]Route(nil), st.origins...),
	}, nil
}

func (h *Hybrid) restore(s *modelSnapshot) error {
	ms, err := restoreMerges(s)
	if err != nil {
		return err
	}
	if len(s.Origins) != ms.vocab.Size() {
		return fmt.Errorf("%w: %d origins for %d tokens", ErrMalformedInput, len(s.Origins), ms.vocab.Size())
	}
	h.state.Store(&hybridState{
		vocab:   ms.vocab,
		merges:  ms.merges,
		origins: append([]Route(nil), s.Origins...),
	})
	return nil
}
