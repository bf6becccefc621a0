package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Character maps every rune to its own token.
type Character struct {
	cfg   Config
	state atomic.Pointer[charState]
}

type charState struct {
	vocab *Vocabulary
}

// NewCharacter returns an untrained character-level strategy.
func NewCharacter(cfg Config) (*Character, error) {
	cfg, err := prepare(cfg, MethodCharacter)
	if err != nil {
		return nil, err
	}
	return &Character{cfg: cfg}, nil
}

func (c *Character) Method() Method { return MethodCharacter }

// Fit keeps the most frequent runes of corpus.
func (c *Character) Fit(ctx context.Context, corpus []string) error {
	if err := checkCorpus(corpus); err != nil {
		return err
	}
	corpus = foldAll(corpus, !c.cfg.CaseSensitive)

	counts, err := parallelCount(ctx, corpus, c.cfg.Workers, func(chunk []string) map[string]int {
		out := make(map[string]int)
		for _, seg := range chunk {
			for _, r := range seg {
				out[string(r)]++
			}
		}
		return out
	})
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}

	vocab := NewVocabulary(c.cfg.reserved()...)
	addByFrequency(vocab, counts)
	vocab.Finalize(c.cfg.VocabSize, c.cfg.MinFrequency)

	c.state.Store(&charState{vocab: vocab})
	return nil
}

func (c *Character) Tokenize(text string) ([]string, error) {
	st := c.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	toks := runeSymbols(fold(text, !c.cfg.CaseSensitive))
	return tokensOrUnk(st.vocab, toks, c.cfg.UnkToken), nil
}

func (c *Character) Encode(text string) ([]int, error) {
	st := c.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	text = fold(text, !c.cfg.CaseSensitive)
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, lookup(st.vocab, string(r), c.cfg.UnkToken))
	}
	return ids, nil
}

func (c *Character) Decode(ids []int) (string, error) {
	st := c.state.Load()
	if st == nil {
		return "", ErrNotTrained
	}
	toks, err := idTokens(st.vocab, ids, c.cfg.PadToken)
	if err != nil {
		return "", err
	}
	return strings.Join(toks, ""), nil
}

func (c *Character) vocabulary() (*Vocabulary, error) {
	st := c.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return st.vocab, nil
}

func (c *Character) snapshot() (*modelSnapshot, error) {
	st := c.state.Load()
	if st == nil {
		return nil, ErrNotTrained
	}
	return &modelSnapshot{Config: c.cfg, Vocab: st.vocab.snapshot()}, nil
}

func (c *Character) restore(s *modelSnapshot) error {
	vocab, err := vocabularyFromSnapshot(s.Vocab)
	if err != nil {
		return err
	}
	c.state.Store(&charState{vocab: vocab})
	return nil
}
