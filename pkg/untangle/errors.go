package untangle

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned when none of an inventory's pages could be untangled
var ErrNoPages = errors.New("no pages untangled")

// Kind classifies the problems recorded during untangling
type Kind int

const (
	KindMalformedPageXML Kind = iota
	KindMissingPage
	KindMissingNavigation
	KindMissingIIIFMapping
	KindWordAlignmentLost
	KindEmptyScan
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPageXML:
		return "MalformedPageXml"
	case KindMissingPage:
		return "MissingPage"
	case KindMissingNavigation:
		return "MissingNavigation"
	case KindMissingIIIFMapping:
		return "MissingIiifMapping"
	case KindWordAlignmentLost:
		return "WordAlignmentLost"
	case KindEmptyScan:
		return "EmptyScan"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsError reports whether the kind means a page was skipped.
// The other kinds degrade the output but keep the page.
func (k Kind) IsError() bool {
	return k == KindMalformedPageXML || k == KindMissingPage
}

// Issue is a problem with one page
type Issue struct {
	Kind   Kind
	PageID string
	Err    error
}

func (i Issue) Error() string {
	if i.Err == nil {
		return fmt.Sprintf("%s: %s", i.Kind, i.PageID)
	}
	return fmt.Sprintf("%s: %s: %v", i.Kind, i.PageID, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Issues is the list of problems recorded for a run
type Issues []Issue

// Count returns the number of issues per kind
func (is Issues) Count() map[Kind]int {
	counts := make(map[Kind]int)
	for _, i := range is {
		counts[i.Kind]++
	}
	return counts
}

// HasErrors reports whether any page was skipped
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Kind.IsError() {
			return true
		}
	}
	return false
}

// OfKind returns the issues of one kind
func (is Issues) OfKind(k Kind) Issues {
	var result Issues
	for _, i := range is {
		if i.Kind == k {
			result = append(result, i)
		}
	}
	return result
}
