package tokenizer

import (
	"fmt"
	"sort"
)

// Vocabulary is the bidirectional token<->id mapping with a frequency
// counter per token. Ids are contiguous; reserved tokens occupy the lowest
// ids and are never pruned.
//
// A Vocabulary is mutated only while a strategy trains. Once committed to a
// trained state it is read-only and safe for concurrent lookups.
type Vocabulary struct {
	tokens   []string
	ids      map[string]int
	freqs    []int
	reserved int
}

// NewVocabulary returns a vocabulary holding the given reserved tokens at
// ids 0..len(reserved)-1. Duplicates are collapsed.
func NewVocabulary(reserved ...string) *Vocabulary {
	v := &Vocabulary{ids: make(map[string]int)}
	for _, tok := range reserved {
		v.Reserve(tok)
	}
	return v
}

// Reserve adds tok as a never-pruned token. Reserved tokens must be added
// before any learned token.
func (v *Vocabulary) Reserve(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	if len(v.tokens) != v.reserved {
		panic("tokenizer: Reserve called after learned tokens were added")
	}
	id := v.AddToken(tok)
	v.reserved++
	return id
}

// AddToken adds tok if absent and returns its id. Adding an existing token
// leaves the vocabulary unchanged.
func (v *Vocabulary) AddToken(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	id := len(v.tokens)
	v.tokens = append(v.tokens, tok)
	v.freqs = append(v.freqs, 0)
	v.ids[tok] = id
	return id
}

// RecordFrequency bumps the counter of tok by delta, adding tok first when
// needed. Counters never decrease: a negative delta is ignored.
func (v *Vocabulary) RecordFrequency(tok string, delta int) {
	id := v.AddToken(tok)
	if delta > 0 {
		v.freqs[id] += delta
	}
}

// Finalize drops learned tokens whose frequency is below minFrequency and,
// if the vocabulary still exceeds maxSize, the lowest-frequency tokens
// (earliest inserted wins ties) until it fits. Surviving tokens keep their
// relative order and ids are reassigned contiguously. maxSize <= 0 disables
// the cap. It returns the number of removed tokens.
func (v *Vocabulary) Finalize(maxSize, minFrequency int) int {
	candidates := make([]int, 0, len(v.tokens)-v.reserved)
	for id := v.reserved; id < len(v.tokens); id++ {
		if v.freqs[id] >= minFrequency {
			candidates = append(candidates, id)
		}
	}

	if maxSize > 0 {
		room := max(maxSize-v.reserved, 0)
		if len(candidates) > room {
			sort.SliceStable(candidates, func(i, j int) bool {
				return v.freqs[candidates[i]] > v.freqs[candidates[j]]
			})
			candidates = candidates[:room]
			sort.Ints(candidates)
		}
	}

	removed := len(v.tokens) - v.reserved - len(candidates)
	if removed == 0 {
		return 0
	}

	tokens := append(make([]string, 0, v.reserved+len(candidates)), v.tokens[:v.reserved]...)
	freqs := append(make([]int, 0, cap(tokens)), v.freqs[:v.reserved]...)
	for _, id := range candidates {
		tokens = append(tokens, v.tokens[id])
		freqs = append(freqs, v.freqs[id])
	}

	v.tokens = tokens
	v.freqs = freqs
	v.ids = make(map[string]int, len(tokens))
	for id, tok := range tokens {
		v.ids[tok] = id
	}
	return removed
}

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token text of id, failing with an *IDError when id is
// outside [0, Size()).
func (v *Vocabulary) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", &IDError{ID: id, Size: len(v.tokens)}
	}
	return v.tokens[id], nil
}

// Contains reports whether tok is in the vocabulary.
func (v *Vocabulary) Contains(tok string) bool {
	_, ok := v.ids[tok]
	return ok
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Reserved returns the number of reserved tokens.
func (v *Vocabulary) Reserved() int { return v.reserved }

// IsReserved reports whether id belongs to a reserved token.
func (v *Vocabulary) IsReserved(id int) bool { return id >= 0 && id < v.reserved }

// Frequency returns the recorded count for tok, or 0.
func (v *Vocabulary) Frequency(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return v.freqs[id]
	}
	return 0
}

// Tokens returns the tokens in id order.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Map returns a copy of the token->id mapping.
func (v *Vocabulary) Map() map[string]int {
	out := make(map[string]int, len(v.ids))
	for tok, id := range v.ids {
		out[tok] = id
	}
	return out
}

// Frequencies returns a copy of the token->count mapping.
func (v *Vocabulary) Frequencies() map[string]int {
	out := make(map[string]int, len(v.tokens))
	for id, tok := range v.tokens {
		out[tok] = v.freqs[id]
	}
	return out
}

type vocabSnapshot struct {
	Tokens      []string `json:"tokens"`
	Frequencies []int    `json:"frequencies"`
	Reserved    int      `json:"reserved"`
}

func (v *Vocabulary) snapshot() vocabSnapshot {
	return vocabSnapshot{
		Tokens:      v.Tokens(),
		Frequencies: append([]int(nil), v.freqs...),
		Reserved:    v.reserved,
	}
}

func vocabularyFromSnapshot(s vocabSnapshot) (*Vocabulary, error) {
	if len(s.Tokens) != len(s.Frequencies) {
		return nil, fmt.Errorf("%w: %d frequencies for %d tokens", ErrMalformedInput, len(s.Frequencies), len(s.Tokens))
	}
	if s.Reserved < 0 || s.Reserved > len(s.Tokens) {
		return nil, fmt.Errorf("%w: reserved count %d out of range", ErrMalformedInput, s.Reserved)
	}
	v := &Vocabulary{
		tokens:   append([]string(nil), s.Tokens...),
		freqs:    append([]int(nil), s.Frequencies...),
		ids:      make(map[string]int, len(s.Tokens)),
		reserved: s.Reserved,
	}
	for id, tok := range v.tokens {
		if _, dup := v.ids[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrMalformedInput, tok)
		}
		v.ids[tok] = id
	}
	return v, nil
}
