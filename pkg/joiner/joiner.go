// Package joiner turns the lines of one text region into its paragraph text.
//
// Scribes mark a word that continues on the next line with a trailing „ or ¬,
// and often repeat „ at the start of the continuation line. Join resolves these
// break characters and records where every line ended up inside the paragraph,
// so a physical line can always be located in the logical text.
//
// All offsets are in runes (Unicode code points).
package joiner

import "strings"

// Line is one text-bearing line of a region
type Line struct {
	ID   string
	Text string
}

// Range is the half-open rune range [Start, End) of a line inside a paragraph
type Range struct {
	LineID string
	Start  int
	End    int
}

// Len returns the number of runes the line contributes to the paragraph
func (r Range) Len() int { return r.End - r.Start }

// Paragraph is the joined text of a region with the position of each line
type Paragraph struct {
	Text   string
	Ranges []Range
}

// LineBreaks are the characters that join a line to the next one without a space
const LineBreaks = "„¬"

// WordBreaks are the characters that may trail or lead a word split over two lines
const WordBreaks = "„¬-"

// IsLineBreak reports whether r joins two lines
func IsLineBreak(r rune) bool {
	return strings.ContainsRune(LineBreaks, r)
}

// Join concatenates lines into paragraph text. Lines ending in a break
// character are glued to the next line, other lines are separated by one
// space, and the paragraph ends with a newline. An empty input yields an
// empty paragraph without ranges.
func Join(lines []Line) Paragraph {
	if len(lines) == 0 {
		return Paragraph{}
	}

	var buf []rune
	ranges := make([]Range, 0, len(lines))
	continuing := false

	for i, line := range lines {
		text, broken := Resolve(line.Text, continuing)
		start := len(buf)
		buf = append(buf, text...)
		ranges = append(ranges, Range{LineID: line.ID, Start: start, End: start + len(text)})

		if i < len(lines)-1 && !broken {
			buf = append(buf, ' ')
		}
		continuing = broken
	}
	buf = append(buf, '\n')

	return Paragraph{Text: string(buf), Ranges: ranges}
}

// Resolve returns the runes a line contributes to its paragraph and whether
// it ends in a break. Trailing ASCII spaces are trimmed, every trailing break
// character is removed, and then one leading „ is removed when the line
// continues a broken previous line. A line holding only „ therefore passes
// the break on to the next line.
func Resolve(text string, continuing bool) ([]rune, bool) {
	runes := []rune(strings.TrimRight(text, " "))
	broken := false
	for len(runes) > 0 && IsLineBreak(runes[len(runes)-1]) {
		runes = runes[:len(runes)-1]
		broken = true
	}
	if continuing && len(runes) > 0 && runes[0] == '„' {
		runes = runes[1:]
	}
	return runes, broken
}

// Slice returns the part of the paragraph covered by the range
func (p Paragraph) Slice(r Range) string {
	runes := []rune(p.Text)
	if r.Start < 0 || r.End > len(runes) || r.Start > r.End {
		return ""
	}
	return string(runes[r.Start:r.End])
}
