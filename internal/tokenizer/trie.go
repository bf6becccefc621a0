package tokenizer

// Trie indexes vocabulary tokens by rune prefix for greedy longest-match
// lookup in time proportional to the match length.
type Trie struct {
	root *trieNode
}

type trieNode struct {
	children map[rune]*trieNode
	tokenID  int // -1 if not a token endpoint
}

func newTrieNode() *trieNode {
	return &trieNode{tokenID: -1}
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode()}
}

// Insert adds token with the given id. Empty tokens are ignored.
func (t *Trie) Insert(token string, id int) {
	if token == "" {
		return
	}
	node := t.root
	for _, r := range token {
		child := node.children[r]
		if child == nil {
			if node.children == nil {
				node.children = make(map[rune]*trieNode)
			}
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
	}
	node.tokenID = id
}

// LongestMatch returns the rune length and id of the longest token that is
// a prefix of text, or (0, -1) when none is.
func (t *Trie) LongestMatch(text []rune) (int, int) {
	return t.root.longestMatch(text, nil)
}

// LongestMatchFunc is LongestMatch restricted to token ids accepted by keep.
func (t *Trie) LongestMatchFunc(text []rune, keep func(id int) bool) (int, int) {
	return t.root.longestMatch(text, keep)
}

// LongestMatchAfter behaves like LongestMatch for the key prefix+text, but
// only reports matches that cover at least one rune of text. The returned
// length counts runes of text only.
func (t *Trie) LongestMatchAfter(prefix string, text []rune) (int, int) {
	node := t.root
	for _, r := range prefix {
		node = node.children[r]
		if node == nil {
			return 0, -1
		}
	}
	return node.longestMatch(text, nil)
}

func (n *trieNode) longestMatch(text []rune, keep func(id int) bool) (int, int) {
	node := n
	bestLen, bestID := 0, -1
	for i, r := range text {
		node = node.children[r]
		if node == nil {
			break
		}
		if node.tokenID >= 0 && (keep == nil || keep(node.tokenID)) {
			bestLen, bestID = i+1, node.tokenID
		}
	}
	return bestLen, bestID
}
