// Package wordtree assigns every word of a scan a rune interval in a plain text.
//
// Word strings are not always literally present in the text they were joined
// into: break characters are stripped and whitespace differs. Build walks the
// words in document order with a cursor and a bounded search window, so a
// word is found close to where the previous one ended.
package wordtree

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/gardar/untangler/pkg/joiner"
	"github.com/gardar/untangler/pkg/pagexml"
)

// SearchWindow is how far past the cursor a word may be found
const SearchWindow = 1000

// Interval is the half-open rune range [Start, End) of a word
type Interval struct {
	Start int
	End   int
	Word  pagexml.Word
}

// Tree holds disjoint word intervals in position order
type Tree struct {
	intervals []Interval
}

// AlignmentError lists the words that could not be located in the text
type AlignmentError struct {
	Lost []pagexml.Word
}

func (e *AlignmentError) Error() string {
	ids := make([]string, 0, len(e.Lost))
	for _, w := range e.Lost {
		ids = append(ids, fmt.Sprintf("%s(%q)", w.ID, w.Text))
	}
	return fmt.Sprintf("word alignment lost for %d word(s): %s", len(e.Lost), strings.Join(ids, ", "))
}

// Build locates each word in text. Words without alphanumeric content are
// skipped. Words that cannot be found are left out of the tree and reported
// in an *AlignmentError; the returned tree is usable either way.
func Build(text string, words []pagexml.Word) (*Tree, error) {
	haystack := []rune(text)
	tree := &Tree{intervals: make([]Interval, 0, len(words))}
	var lost []pagexml.Word
	cursor := 0

	for _, w := range words {
		needle := stripBreaks(w.Text)
		if !hasAlphanumeric(needle) {
			continue
		}

		idx := search(haystack, needle, cursor)
		if idx < 0 {
			// Second chance with punctuation and spaces removed from the edges
			needle = []rune(strings.TrimFunc(string(needle), func(r rune) bool {
				return unicode.IsPunct(r) || unicode.IsSpace(r)
			}))
			idx = search(haystack, needle, cursor)
		}
		if idx < 0 {
			lost = append(lost, w)
			continue
		}

		end := idx + len(needle)
		tree.intervals = append(tree.intervals, Interval{Start: idx, End: end, Word: w})
		cursor = end
	}

	if len(lost) > 0 {
		return tree, &AlignmentError{Lost: lost}
	}
	return tree, nil
}

// Len returns the number of words in the tree
func (t *Tree) Len() int { return len(t.intervals) }

// Intervals returns the intervals in position order
func (t *Tree) Intervals() []Interval {
	return append([]Interval(nil), t.intervals...)
}

// At returns the word interval covering rune position pos
func (t *Tree) At(pos int) (Interval, bool) {
	i := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].End > pos
	})
	if i < len(t.intervals) && t.intervals[i].Start <= pos {
		return t.intervals[i], true
	}
	return Interval{}, false
}

// Overlapping returns the intervals that overlap [begin, end)
func (t *Tree) Overlapping(begin, end int) []Interval {
	i := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].End > begin
	})
	var result []Interval
	for ; i < len(t.intervals) && t.intervals[i].Start < end; i++ {
		result = append(result, t.intervals[i])
	}
	return result
}

// search finds needle in haystack within the window starting at from
func search(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	limit := min(from+len(needle)+SearchWindow, len(haystack))
	for i := from; i+len(needle) <= limit; i++ {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stripBreaks(text string) []rune {
	return []rune(strings.Trim(strings.TrimSpace(text), joiner.WordBreaks))
}

func hasAlphanumeric(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
