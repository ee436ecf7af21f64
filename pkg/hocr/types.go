package hocr

import (
	"fmt"

	"github.com/gardar/untangler/pkg/pagexml"
)

// Document represents the entire hOCR document structure
type Document struct {
	Title    string            // Document title
	Language string            // Document language
	Metadata map[string]string // Additional <meta> entries
	Pages    []Page            // Pages in the document
}

// Page is one scan
// Corresponds to hOCR element with class: 'ocr_page'
type Page struct {
	ID         string      // Page id of the scan
	PageNumber int         // Physical page number (ppageno)
	ImageName  string      // Source image filename
	Langs      []string    // Detected languages of the page
	BBox       BoundingBox // Page coordinates
	Areas      []Area      // Text regions
}

// Class assign 'ocr_page' to 'Page' struct
func (Page) Class() string { return "ocr_page" }

// Area is a text region
// Corresponds to hOCR element with class: 'ocr_carea'
type Area struct {
	ID    string       // Region id
	Role  pagexml.Role // Structural role, exported as x_role
	BBox  BoundingBox  // Area coordinates
	Lines []Line       // Text lines in this area
}

// Class assign 'ocr_carea' to 'Area' struct
func (Area) Class() string { return "ocr_carea" }

// Line represents a line of text
// Corresponds to hOCR element with class: 'ocr_line'
type Line struct {
	ID       string      // Line id
	BBox     BoundingBox // Line coordinates
	Baseline string      // "slope offset" relative to the bottom left of BBox
	Text     string      // Literal line text, used when the line has no words
	Words    []Word      // Words in this line
}

// Class assign 'ocr_line' to 'Line' struct
func (Line) Class() string { return "ocr_line" }

// Word is a recognized word with bounding box
// Corresponds to hOCR element with class: 'ocrx_word'
type Word struct {
	ID   string      // Word id
	Text string      // The actual text content
	BBox BoundingBox // Word coordinates
}

// Class assign 'ocrx_word' to 'Word' struct
func (Word) Class() string { return "ocrx_word" }

// BoundingBox is an hOCR 'bbox' property: top-left and bottom-right corners
type BoundingBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// BoxOf converts a polygon to its hOCR bounding box
func BoxOf(p pagexml.Polygon) BoundingBox {
	b := p.BoundingBox()
	return BoundingBox{X1: b.X, Y1: b.Y, X2: b.X + b.Width, Y2: b.Y + b.Height}
}

// String renders the box as a title property
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox %d %d %d %d", b.X1, b.Y1, b.X2, b.Y2)
}
