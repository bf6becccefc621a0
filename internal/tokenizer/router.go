package tokenizer

import (
	"fmt"
	"unicode"
)

// Route identifies a Hybrid sub-vocabulary. RouteNone marks reserved tokens.
type Route int

const (
	RouteNone Route = iota
	RouteChar
	RouteWord
	RouteSubword
)

var routeNames = [...]string{"reserved", "char", "word", "subword"}

func (r Route) String() string {
	if r < 0 || int(r) >= len(routeNames) {
		return fmt.Sprintf("Route(%d)", int(r))
	}
	return routeNames[r]
}

func (r Route) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(routeNames) {
		return nil, fmt.Errorf("unknown route %d", int(r))
	}
	return []byte(routeNames[r]), nil
}

func (r *Route) UnmarshalText(b []byte) error {
	for i, name := range routeNames {
		if string(b) == name {
			*r = Route(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown route %q", ErrMalformedInput, b)
}

// SegmentFeatures describes one Hybrid segment as seen by the router.
type SegmentFeatures struct {
	// Runes is the segment length in runes, space markers included.
	Runes int `json:"runes"`
	// InWordVocab is set when the whole segment is a word-vocabulary token.
	InWordVocab bool `json:"in_word_vocab"`
	// CJKRatio is the share of Han, Hiragana, Katakana and Hangul runes.
	CJKRatio float64 `json:"cjk_ratio"`
	// UnknownRatio is the share of subword pieces missing from the vocabulary.
	UnknownRatio float64 `json:"unknown_ratio"`
	// Fragmentation is subword pieces per rune; 1 means no merge applied.
	Fragmentation float64 `json:"fragmentation"`
}

const (
	cjkRouteThreshold     = 0.5
	unknownRouteThreshold = 0.5
)

// ChooseRoute picks the sub-vocabulary for a segment. It depends on f
// only, so equal segments always route identically. With adaptive
// routing disabled every segment goes to the subword model.
func ChooseRoute(f SegmentFeatures, adaptive bool) Route {
	switch {
	case !adaptive:
		return RouteSubword
	case f.InWordVocab:
		return RouteWord
	case f.Runes <= 1,
		f.CJKRatio >= cjkRouteThreshold,
		f.UnknownRatio > unknownRouteThreshold,
		f.Fragmentation >= 1:
		return RouteChar
	default:
		return RouteSubword
	}
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// hybridSegments splits text into segments made of a whitespace run and
// the non-whitespace run that follows it. Concatenating the segments
// yields text again.
func hybridSegments(text string) []string {
	var (
		segs      []string
		start     int
		prevSpace = true
	)
	for i, r := range text {
		space := unicode.IsSpace(r)
		if space && !prevSpace && i > start {
			segs = append(segs, text[start:i])
			start = i
		}
		prevSpace = space
	}
	if start < len(text) {
		segs = append(segs, text[start:])
	}
	return segs
}
