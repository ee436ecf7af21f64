package untangle

import "github.com/gardar/untangler/pkg/pagexml"

// Type is the kind of structure an annotation describes
type Type string

const (
	TypeFile       Type = "File"
	TypePage       Type = "Page"
	TypeTextRegion Type = "TextRegion"
	TypeTextLine   Type = "TextLine"
)

// rank orders annotations with equal spans from outer to inner structure
func (t Type) rank() int {
	switch t {
	case TypeFile:
		return 0
	case TypePage:
		return 1
	case TypeTextRegion:
		return 2
	default:
		return 3
	}
}

// TextSpan is an inclusive anchor range in one projection, optionally
// narrowed to characters inside a single anchor. CharEnd is inclusive:
// the covered text is segment[CharStart : CharEnd+1].
type TextSpan struct {
	Begin     int
	End       int
	CharStart *int
	CharEnd   *int
}

// AnchorSpan returns a span over the anchors [begin, end]
func AnchorSpan(begin, end int) TextSpan {
	return TextSpan{Begin: begin, End: end}
}

// CharSpan returns a span inside one anchor covering runes [start, end]
func CharSpan(anchor, start, end int) TextSpan {
	return TextSpan{Begin: anchor, End: anchor, CharStart: &start, CharEnd: &end}
}

// Len returns the number of anchors covered
func (s TextSpan) Len() int { return s.End - s.Begin + 1 }

// HasChars reports whether the span is narrowed to characters
func (s TextSpan) HasChars() bool { return s.CharStart != nil && s.CharEnd != nil }

// Shift moves the span by n anchors; character bounds are relative to the
// anchor and stay as they are
func (s TextSpan) Shift(n int) TextSpan {
	s.Begin += n
	s.End += n
	return s
}

// Valid checks the span invariants
func (s TextSpan) Valid() bool {
	if s.Begin < 0 || s.Begin > s.End {
		return false
	}
	if s.HasChars() && s.Begin == s.End {
		return *s.CharStart <= *s.CharEnd+1
	}
	return true
}

// Annotation is one typed structure with a span in both projections.
// Containment between annotations is expressed only by overlapping spans.
type Annotation struct {
	Type     Type
	ID       string // PageXML id, page id, or inventory number for File
	PageID   string // Empty for File
	Physical TextSpan
	Logical  TextSpan
	Metadata map[string]any
	Coords   []pagexml.Polygon // Outline(s) on the scan image
}

// shift translates scan-local anchors to inventory anchors
func (a Annotation) shift(physical, logical int) Annotation {
	a.Physical = a.Physical.Shift(physical)
	a.Logical = a.Logical.Shift(logical)
	return a
}
