package tokenizer

import "container/heap"

// Pair is an ordered pair of adjacent symbols.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// less orders pairs lexicographically by left then right.
func (p Pair) less(o Pair) bool {
	if p.Left != o.Left {
		return p.Left < o.Left
	}
	return p.Right < o.Right
}

// MergeRule combines Left and Right into Merged. Rank is the learning
// order; rank 0 was learned first and has the highest priority.
type MergeRule struct {
	Pair
	Merged string `json:"merged"`
	Rank   int    `json:"rank"`
}

// MergeTable applies learned merge rules in ascending rank order.
// It is immutable after construction and safe for concurrent use.
type MergeTable struct {
	rules []MergeRule
	ranks map[Pair]int
}

// NewMergeTable indexes rules. Rules must be sorted by rank with ranks
// equal to their position; a later duplicate pair is ignored.
func NewMergeTable(rules []MergeRule) *MergeTable {
	m := &MergeTable{
		rules: append([]MergeRule(nil), rules...),
		ranks: make(map[Pair]int, len(rules)),
	}
	for i, r := range m.rules {
		if _, dup := m.ranks[r.Pair]; !dup {
			m.ranks[r.Pair] = i
		}
	}
	return m
}

// Rules returns the rules in rank order.
func (m *MergeTable) Rules() []MergeRule {
	return append([]MergeRule(nil), m.rules...)
}

// Len returns the number of rules.
func (m *MergeTable) Len() int { return len(m.rules) }

// Rank returns the rank of p.
func (m *MergeTable) Rank(p Pair) (int, bool) {
	r, ok := m.ranks[p]
	return r, ok
}

// Apply merges symbols to a fixed point. At every step the applicable
// merge with the lowest rank (leftmost on ties) is attempted. When skip is
// non-nil it is consulted once per attempt; a true result drops that
// attempt, which leaves the pair at that position unmerged unless a later
// merge recreates it. With a nil skip the result is fully deterministic.
func (m *MergeTable) Apply(symbols []string, skip func() bool) []string {
	if len(symbols) < 2 || len(m.rules) == 0 {
		return append([]string(nil), symbols...)
	}

	nodes := make([]symbolNode, len(symbols))
	for i, s := range symbols {
		nodes[i] = symbolNode{text: s, prev: i - 1, next: i + 1}
	}
	nodes[len(nodes)-1].next = -1

	q := &candidateQueue{}
	push := func(pos int) {
		next := nodes[pos].next
		if next < 0 {
			return
		}
		p := Pair{Left: nodes[pos].text, Right: nodes[next].text}
		if rank, ok := m.ranks[p]; ok {
			heap.Push(q, mergeCandidate{rank: rank, pos: pos, pair: p})
		}
	}
	for i := range nodes[:len(nodes)-1] {
		push(i)
	}

	for q.Len() > 0 {
		c := heap.Pop(q).(mergeCandidate)
		left := &nodes[c.pos]
		if left.dead || left.next < 0 || left.text != c.pair.Left || nodes[left.next].text != c.pair.Right {
			continue
		}
		if skip != nil && skip() {
			continue
		}

		right := &nodes[left.next]
		left.text = m.rules[c.rank].Merged
		right.dead = true
		left.next = right.next
		if right.next >= 0 {
			nodes[right.next].prev = c.pos
		}

		if left.prev >= 0 {
			push(left.prev)
		}
		push(c.pos)
	}

	out := make([]string, 0, len(symbols))
	for i := 0; i >= 0; i = nodes[i].next {
		out = append(out, nodes[i].text)
	}
	return out
}

type symbolNode struct {
	text       string
	prev, next int
	dead       bool
}

type mergeCandidate struct {
	rank int
	pos  int
	pair Pair
}

// candidateQueue is a min-heap ordered by (rank, pos).
type candidateQueue []mergeCandidate

func (q candidateQueue) Len() int { return len(q) }

func (q candidateQueue) Less(i, j int) bool {
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].pos < q[j].pos
}

func (q candidateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *candidateQueue) Push(x any) { *q = append(*q, x.(mergeCandidate)) }

func (q *candidateQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}
