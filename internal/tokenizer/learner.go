package tokenizer

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"
)

type wordCount struct {
	word  string
	count int
}

// sortedWords flattens counts into a slice ordered by word.
func sortedWords(counts map[string]int) []wordCount {
	out := make([]wordCount, 0, len(counts))
	for w, n := range counts {
		out = append(out, wordCount{word: w, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].word < out[j].word })
	return out
}

// learnWord is one entry of the training arena: a distinct word split into
// its current symbols, weighted by its corpus count.
type learnWord struct {
	symbols []string
	count   int
}

type learnerOptions struct {
	// capacity stops learning once the vocabulary holds this many tokens.
	capacity       int
	minFrequency   int
	maxTokenLength int
	workers        int
	// score ranks a candidate from its joint count and the current counts
	// of its two symbols. Nil ranks by joint count.
	score func(joint, left, right int) float64
	// join builds the merged token text. Nil concatenates.
	join func(left, right string) string
}

// mergeLearner holds the pair statistics of an arena of words. Words are
// addressed by index, so merging inside one word adjusts counts without
// touching any other entry.
type mergeLearner struct {
	opts       learnerOptions
	vocab      *Vocabulary
	words      []learnWord
	pairs      map[Pair]int
	where      map[Pair]map[int]struct{}
	symbols    map[string]int
	ineligible map[Pair]bool
}

// learnMerges repeatedly selects the best-scoring pair, merges it across
// the arena and records the merged token in vocab, until the vocabulary
// reaches capacity or no pair reaches minFrequency. Ties are broken by the
// lexicographically smaller pair. Cancellation is checked between rounds;
// a round is either fully applied or not started.
func learnMerges(ctx context.Context, words []learnWord, vocab *Vocabulary, opts learnerOptions) ([]MergeRule, error) {
	if opts.join == nil {
		opts.join = func(left, right string) string { return left + right }
	}

	l := &mergeLearner{
		opts:       opts,
		vocab:      vocab,
		words:      words,
		where:      make(map[Pair]map[int]struct{}),
		ineligible: make(map[Pair]bool),
	}
	if err := l.count(ctx); err != nil {
		return nil, err
	}

	var rules []MergeRule
	for vocab.Size() < opts.capacity {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge round %d: %w", len(rules), err)
		}

		best, ok := l.selectBest()
		if !ok {
			break
		}

		merged := opts.join(best.Left, best.Right)
		freq := l.pairs[best]
		l.merge(best, merged)
		vocab.RecordFrequency(merged, freq)
		rules = append(rules, MergeRule{Pair: best, Merged: merged, Rank: len(rules)})
	}
	return rules, nil
}

// count computes the initial pair and symbol counts in parallel chunks and
// then indexes which words contain each pair.
func (l *mergeLearner) count(ctx context.Context) error {
	var err error
	l.pairs, err = parallelCount(ctx, l.words, l.opts.workers, func(chunk []learnWord) map[Pair]int {
		counts := make(map[Pair]int)
		for _, w := range chunk {
			for i := 0; i+1 < len(w.symbols); i++ {
				counts[Pair{Left: w.symbols[i], Right: w.symbols[i+1]}] += w.count
			}
		}
		return counts
	})
	if err != nil {
		return fmt.Errorf("count pairs: %w", err)
	}

	l.symbols, err = parallelCount(ctx, l.words, l.opts.workers, func(chunk []learnWord) map[string]int {
		counts := make(map[string]int)
		for _, w := range chunk {
			for _, s := range w.symbols {
				counts[s] += w.count
			}
		}
		return counts
	})
	if err != nil {
		return fmt.Errorf("count symbols: %w", err)
	}

	for wi, w := range l.words {
		for i := 0; i+1 < len(w.symbols); i++ {
			l.index(Pair{Left: w.symbols[i], Right: w.symbols[i+1]}, wi)
		}
	}
	return nil
}

func (l *mergeLearner) index(p Pair, wi int) {
	set := l.where[p]
	if set == nil {
		set = make(map[int]struct{})
		l.where[p] = set
	}
	set[wi] = struct{}{}
}

func (l *mergeLearner) eligible(p Pair) bool {
	if l.ineligible[p] {
		return false
	}
	ok := l.vocab.Contains(p.Left) && l.vocab.Contains(p.Right)
	if ok && l.opts.maxTokenLength > 0 {
		ok = utf8.RuneCountInString(l.opts.join(p.Left, p.Right)) <= l.opts.maxTokenLength
	}
	if !ok {
		l.ineligible[p] = true
	}
	return ok
}

// selectBest scans every live pair. The order is total (score, then pair),
// so the winner does not depend on map iteration order.
func (l *mergeLearner) selectBest() (Pair, bool) {
	var (
		best      Pair
		bestScore float64
		found     bool
	)
	for p, n := range l.pairs {
		if n <= 0 || n < l.opts.minFrequency || !l.eligible(p) {
			continue
		}
		score := float64(n)
		if l.opts.score != nil {
			score = l.opts.score(n, l.symbols[p.Left], l.symbols[p.Right])
		}
		if !found || score > bestScore || (score == bestScore && p.less(best)) {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}

// merge rewrites every word containing p and adjusts only the counts of
// pairs adjacent to each merged occurrence.
func (l *mergeLearner) merge(p Pair, merged string) {
	for wi := range l.where[p] {
		l.mergeWord(wi, p, merged)
	}
	delete(l.where, p)
	delete(l.pairs, p)
}

func (l *mergeLearner) mergeWord(wi int, p Pair, merged string) {
	w := &l.words[wi]
	syms := w.symbols
	n := w.count
	out := make([]string, 0, len(syms))

	for i := 0; i < len(syms); {
		if i+1 >= len(syms) || syms[i] != p.Left || syms[i+1] != p.Right {
			out = append(out, syms[i])
			i++
			continue
		}

		l.addPair(p, -n, wi)
		l.symbols[p.Left] -= n
		l.symbols[p.Right] -= n
		l.symbols[merged] += n
		if len(out) > 0 {
			prev := out[len(out)-1]
			l.addPair(Pair{Left: prev, Right: p.Left}, -n, wi)
			l.addPair(Pair{Left: prev, Right: merged}, n, wi)
		}
		if i+2 < len(syms) {
			next := syms[i+2]
			l.addPair(Pair{Left: p.Right, Right: next}, -n, wi)
			l.addPair(Pair{Left: merged, Right: next}, n, wi)
		}
		out = append(out, merged)
		i += 2
	}
	w.symbols = out
}

func (l *mergeLearner) addPair(p Pair, delta, wi int) {
	l.pairs[p] += delta
	if l.pairs[p] <= 0 {
		delete(l.pairs, p)
	}
	if delta > 0 {
		l.index(p, wi)
	}
}
