// Package visualize renders tokenizations for terminal display.
// It only formats what it is given and never touches tokenizer state.
package visualize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var escaper = strings.NewReplacer("\n", `\n`, "\t", `\t`, "\r", `\r`)

// Tokens renders text with its tokens and ids. Each token is shown as
// [token:id]; lines wrap before exceeding maxWidth runes, and maxWidth <= 0
// disables wrapping. ids may be nil, in which case only tokens are shown.
func Tokens(text string, tokens []string, ids []int, maxWidth int) string {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "Text:   %s\n", escaper.Replace(text))
	fmt.Fprintf(sb, "Tokens: %d  Chars: %d  Chars/token: %.2f\n",
		len(tokens), utf8.RuneCountInString(text), charsPerToken(text, len(tokens)))

	cells := make([]string, len(tokens))
	for i, tok := range tokens {
		cell := escaper.Replace(tok)
		if len(ids) == len(tokens) {
			cell += ":" + strconv.Itoa(ids[i])
		}
		cells[i] = "[" + cell + "]"
	}

	for _, line := range wrap(cells, maxWidth) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Compare renders one row per named tokenization, sorted by name, followed
// by the tokens of each.
func Compare(text string, results map[string][]string) string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	sb := &strings.Builder{}

	fmt.Fprintf(sb, "Text: %s\n\n", escaper.Replace(text))
	fmt.Fprintf(sb, "%-14s  %6s  %11s\n", "Method", "Tokens", "Chars/token")
	fmt.Fprintln(sb, strings.Repeat("-", 35))

	for _, name := range names {
		n := len(results[name])
		fmt.Fprintf(sb, "%-14s  %6d  %11.2f\n", name, n, charsPerToken(text, n))
	}

	for _, name := range names {
		cells := make([]string, len(results[name]))
		for i, tok := range results[name] {
			cells[i] = "[" + escaper.Replace(tok) + "]"
		}
		fmt.Fprintf(sb, "\n%s: %s\n", name, strings.Join(cells, " "))
	}

	return sb.String()
}

func charsPerToken(text string, tokens int) float64 {
	if tokens == 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(text)) / float64(tokens)
}

// wrap joins cells with single spaces into lines of at most maxWidth
// runes. A cell wider than maxWidth gets a line of its own.
func wrap(cells []string, maxWidth int) []string {
	if len(cells) == 0 {
		return nil
	}
	if maxWidth <= 0 {
		return []string{strings.Join(cells, " ")}
	}

	var (
		lines []string
		line  strings.Builder
		width int
	)
	for _, cell := range cells {
		w := utf8.RuneCountInString(cell)
		if width > 0 && width+1+w > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteByte(' ')
			width++
		}
		line.WriteString(cell)
		width += w
	}
	lines = append(lines, line.String())

	return lines
}
