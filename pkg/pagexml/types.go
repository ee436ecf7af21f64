package pagexml

// Scan is one parsed PageXML document, corresponding to one image
type Scan struct {
	ID          string       // Page identifier (file name without .xml)
	ImageName   string       // Source image filename
	ImageWidth  int          // Page width in pixels
	ImageHeight int          // Page height in pixels
	Metadata    Metadata     // Document metadata
	Regions     []TextRegion // Text regions in reading order
	CanvasID    string       // IIIF canvas URL, set by the caller
	IIIFBase    string       // IIIF image service base URL, set by the caller
}

// Metadata holds the PageXML Metadata block plus values derived from the page id
type Metadata struct {
	Creator         string
	Created         string
	LastChange      string
	Comment         string
	ExternalRef     string
	InventoryNumber string
	PageNumber      string
}

// Role is the structural type of a text region
type Role string

const (
	RoleParagraph     Role = "paragraph"
	RoleMarginalia    Role = "marginalia"
	RoleHeader        Role = "header"
	RoleSignatureMark Role = "signature-mark"
	RoleCatchWord     Role = "catch-word"
	RolePageNumber    Role = "page-number"
	RoleOther         Role = "other"
)

// IsText reports whether regions with this role contribute to the text projections
func (r Role) IsText() bool {
	return r != RoleCatchWord && r != RolePageNumber
}

// TextRegion is a block of lines with a structural role
// Corresponds to PageXML element 'TextRegion'
type TextRegion struct {
	ID     string     // Unique identifier
	Coords Polygon    // Region outline
	Role   Role       // Structural role
	Lines  []TextLine // Lines in document order
}

// TextLine is a single line of text
// Corresponds to PageXML element 'TextLine'
type TextLine struct {
	ID       string  // Unique identifier
	Coords   Polygon // Line outline
	Baseline Polygon // Baseline points, if present
	Text     string  // Literal line text, may be empty
	Words    []Word  // Words in document order
}

// Word is a recognized word with its outline
// Corresponds to PageXML element 'Word'
type Word struct {
	ID     string  // Unique identifier
	Coords Polygon // Word outline
	Text   string  // The actual text content
}

// Point is an image coordinate
type Point struct {
	X int
	Y int
}

// Polygon is an ordered list of image points
type Polygon []Point

// BoundingBox represents an axis-aligned rectangle in image coordinates
type BoundingBox struct {
	X      int // Left coordinate
	Y      int // Top coordinate
	Width  int
	Height int
}

// TextRegions returns the regions that contribute to the text projections
func (s *Scan) TextRegions() []TextRegion {
	var regions []TextRegion
	for _, r := range s.Regions {
		if r.Role.IsText() {
			regions = append(regions, r)
		}
	}
	return regions
}

// Words returns all words of the region in document order
func (r TextRegion) Words() []Word {
	var words []Word
	for _, l := range r.Lines {
		words = append(words, l.Words...)
	}
	return words
}
