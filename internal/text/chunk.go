package text

import (
	"strings"
	"unicode/utf8"
)

// SplitDocument breaks a document into training segments. Paragraphs
// (separated by blank lines) never share a segment; within a paragraph,
// consecutive sentences are grouped while the segment stays within
// maxChars runes. A sentence longer than maxChars is kept intact.
// maxChars <= 0 yields one segment per paragraph.
func SplitDocument(doc string, maxChars int) []string {
	var out []string

	for _, para := range paragraphs(doc) {
		if maxChars <= 0 {
			out = append(out, para)
			continue
		}

		out = append(out, groupSentences(splitSentences(para), maxChars)...)
	}

	return out
}

// paragraphs splits on blank lines and joins the lines of each paragraph
// with single spaces.
func paragraphs(doc string) []string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	var (
		out   []string
		lines []string
	)

	flush := func() {
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, " "))
			lines = lines[:0]
		}
	}

	for line := range strings.SplitSeq(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		lines = append(lines, line)
	}
	flush()

	return out
}

func groupSentences(sentences []string, maxChars int) []string {
	var (
		chunks  []string
		current strings.Builder
		runes   int
	)

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if current.Len() == 0 {
			current.WriteString(s)
			runes = n

			continue
		}

		if runes+1+n > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(s)
			runes = n

			continue
		}

		current.WriteByte(' ')
		current.WriteString(s)
		runes += 1 + n
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// splitSentences splits text after sentence-ending punctuation, keeping
// the terminator attached. Empty sentences are dropped.
func splitSentences(text string) []string {
	var sentences []string

	start := 0

	for i, r := range text {
		if !isTerminator(r) {
			continue
		}

		if s := strings.TrimSpace(text[start : i+utf8.RuneLen(r)]); s != "" {
			sentences = append(sentences, s)
		}

		start = i + utf8.RuneLen(r)
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	default:
		return false
	}
}
