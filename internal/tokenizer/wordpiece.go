package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// WordPiece builds its vocabulary by likelihood-style merges and encodes by
// greedy longest-match-first over a trie. Non-initial pieces carry the
// continuation prefix.
type WordPiece struct {
	cfg   Config
	state atomic.Pointer[wordPieceState]
}

type wordPieceState struct {
	vocab *Vocabulary
	trie  *Trie
}

// NewWordPiece returns an untrained WordPiece strategy.
func NewWordPiece(cfg Config) (*WordPiece, error) {
	cfg, err := prepare(cfg, MethodWordPiece)
	if err != nil {
		return nil, err
	}
	return &WordPiece{cfg: cfg}, nil
}

func (w *WordPiece) Method() Method { return MethodWordPiece }

func (w *WordPiece) lower() bool { return w.cfg.DoLowerCase || !w.cfg.CaseSensitive }

// Fit seeds the vocabulary with word-initial and continuation characters,
// then merges the pair maximising joint/(left*right) until the vocabulary
// is full or no pair reaches min_frequency. Words longer than
// max_input_chars_per_word are ignored; they always encode to unk.
func (w *WordPiece) Fit(ctx context.Context, corpus []string) error {
	if err := checkCorpus(corpus); err != nil {
		return err
	}
	corpus = foldAll(corpus, w.lower())

	counts, err := CountWords(ctx, corpus, strings.Fields, w.cfg.Workers)
	if err != nil {
		return fmt.Errorf("count words: %w", err)
	}

	var arena []learnWord
	for _, wc := range sortedWords(counts) {
		runes := []rune(wc.word)
		if len(runes) > w.cfg.MaxInputCharsPerWord {
			continue
		}
		syms := make([]string, len(runes))
		for i, r := range runes {
			syms[i] = w.piece(string(r), i > 0)
		}
		arena = append(arena, learnWord{symbols: syms, count: wc.count})
	}

	alphabet, err := parallelCount(ctx, arena, w.cfg.Workers, func(chunk []learnWord) map[string]int {
		out := make(map[string]int)
		for _, lw := range chunk {
			for _, s := range lw.symbols {
				out[s] += lw.count
			}
		}
		return out
	})
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}

	vocab := NewVocabulary(w.cfg.reserved()...)
	addByFrequency(vocab, alphabet)
	vocab.Finalize(w.cfg.VocabSize, w.cfg.MinFrequency)

	prefix := w.cfg.ContinuationPrefix
	_, err = learnMerges(ctx, arena, vocab, learnerOptions{
		capacity:       w.cfg.VocabSize,
		minFrequency:   w.cfg.MinFrequency,
		maxTokenLength: w.cfg.MaxTokenLength,
		workers:        w.cfg.Workers,
		score: func(joint, left, right int) float64 {
			return float64(joint) / (float64(left) * float64(right))
		},
		join: func(left, right string) string {
			return left + strings.TrimPrefix(right, prefix)
		},
	})
	if err != nil {
		return err
	}

	w.state.Store(newWordPieceState(vocab))
	return nil
}

func newWordPieceState(vocab *Vocabulary) *wordPieceState {
	trie := NewTrie()
	for id, tok := range vocab.tokens {
		if !vocab.IsReserved(id) {
			trie.Insert(tok, id)
		}
	}
	return &wordPieceState{vocab: vocab, trie: trie}
}

func (w *WordPiece) piece(s string, continuation bool) string {
	if continuation {
		return w.cfg.ContinuationPrefix + s
	}
	return s
}

func (w *WordPiece) isContinuation(tok string) bool {
	return len(tok) > len(w.cfg.ContinuationPrefix) && strings.HasPrefix(tok, w.cfg.ContinuationPrefix)
}

func (w *WordPiece) Tokenize(text string) ([]string, error) {
	st := w.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	ids := w.encode(st, text)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = st.vocab.tokens[id]
	}
	return out, nil
}

func (w *WordPiece) Encode(text string) ([]int, error) {
	st := w.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return w.encode(st, text), nil
}

func (w *WordPiece) encode(st *wordPieceState, text string) []int {
	var ids []int
	for _, word := range strings.Fields(fold(text, w.lower())) {
		ids = append(ids, w.encodeWord(st, []rune(word))...)
	}
	return ids
}

// encodeWord scans left to right taking the longest vocabulary piece at
// each position. Every step consumes at least one rune, so the scan ends
// after at most len(word) lookups. If any position has no match the whole
// word becomes unk. The first piece is never a continuation piece, which
// Decode would glue to the previous word.
func (w *WordPiece) encodeWord(st *wordPieceState, word []rune) []int {
	unk := []int{lookup(st.vocab, w.cfg.UnkToken, w.cfg.UnkToken)}
	if len(word) > w.cfg.MaxInputCharsPerWord {
		return unk
	}

	var ids []int
	for pos := 0; pos < len(word); {
		var n, id int
		if pos == 0 {
			n, id = st.trie.LongestMatchFunc(word, func(id int) bool {
				return !w.isContinuation(st.vocab.tokens[id])
			})
		} else {
			n, id = st.trie.LongestMatchAfter(w.cfg.ContinuationPrefix, word[pos:])
		}
		if n == 0 {
			return unk
		}
		ids = append(ids, id)
		pos += n
	}
	return ids
}

// Decode glues continuation pieces to the preceding piece and separates
// words with a single space.
func (w *WordPiece) Decode(ids []int) (string, error) {
	st := w.state.Load()
	if st == nil {
		return "", ErrNotTrained
	}
	toks, err := idTokens(st.vocab, ids, w.cfg.PadToken)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, t := range toks {
		if w.isContinuation(t) {
			sb.WriteString(strings.TrimPrefix(t, w.cfg.ContinuationPrefix))
			continue
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t)
	}
	return sb.String(), nil
}

func (w *WordPiece) vocabulary() (*Vocabulary, error) {
	st := w.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return st.vocab, nil
}

func (w *WordPiece) snapshot() (*modelSnapshot, error) {
	st := w.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return &modelSnapshot{Config: w.cfg, Vocab: st.vocab.snapshot()}, nil
}

func (w *WordPiece) restore(s *modelSnapshot) error {
	vocab, err := vocabularyFromSnapshot(s.Vocab)
	if err != nil {
		return err
	}
	w.state.Store(newWordPieceState(vocab))
	return nil
}
