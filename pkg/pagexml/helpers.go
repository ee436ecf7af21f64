package pagexml

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ParsePoints converts a PageXML points attribute into a polygon
// Example input: "10,20 30,20 30,40 10,40"
func ParsePoints(points string) (Polygon, error) {
	fields := strings.Fields(points)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty points", ErrMalformed)
	}
	poly := make(Polygon, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("%w: invalid point %q", ErrMalformed, f)
		}
		x, err := strconv.Atoi(xs)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid x in %q", ErrMalformed, f)
		}
		y, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid y in %q", ErrMalformed, f)
		}
		poly = append(poly, Point{X: x, Y: y})
	}
	return poly, nil
}

// BoundingBox returns the axis-aligned bounding box of the polygon
func (p Polygon) BoundingBox() BoundingBox {
	if len(p) == 0 {
		return BoundingBox{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := p[0].X, p[0].Y
	for _, pt := range p[1:] {
		minX = min(minX, pt.X)
		minY = min(minY, pt.Y)
		maxX = max(maxX, pt.X)
		maxY = max(maxY, pt.Y)
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// String renders the polygon back into PageXML points notation
func (p Polygon) String() string {
	parts := make([]string, len(p))
	for i, pt := range p {
		parts[i] = fmt.Sprintf("%d,%d", pt.X, pt.Y)
	}
	return strings.Join(parts, " ")
}

// XYWH renders the box as used by IIIF regions and media fragments
func (b BoundingBox) XYWH() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}

// Contains reports whether o lies inside b
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.X >= b.X && o.Y >= b.Y &&
		o.X+o.Width <= b.X+b.Width && o.Y+o.Height <= b.Y+b.Height
}

// PageID is the parsed form of an archival scan identifier
// Example: "NL-HaNA_1.04.02_1092_0017"
type PageID struct {
	Prefix    string // Everything before the inventory number
	Inventory string // Inventory number, e.g. "1092"
	Page      string // Zero-padded page number, e.g. "0017"
}

// ParsePageID splits a page identifier into archive prefix, inventory and page number
func ParsePageID(id string) (PageID, error) {
	last := strings.LastIndex(id, "_")
	if last <= 0 || last == len(id)-1 {
		return PageID{}, fmt.Errorf("invalid page id %q", id)
	}
	rest, page := id[:last], id[last+1:]
	if _, err := strconv.Atoi(page); err != nil {
		return PageID{}, fmt.Errorf("invalid page number in page id %q", id)
	}
	prev := strings.LastIndex(rest, "_")
	if prev < 0 {
		return PageID{Inventory: rest, Page: page}, nil
	}
	return PageID{Prefix: rest[:prev], Inventory: rest[prev+1:], Page: page}, nil
}

// String reassembles the page identifier
func (p PageID) String() string {
	if p.Prefix == "" {
		return p.Inventory + "_" + p.Page
	}
	return p.Prefix + "_" + p.Inventory + "_" + p.Page
}

// PageNumber returns the page number as an integer
func (p PageID) PageNumber() int {
	n, _ := strconv.Atoi(p.Page)
	return n
}

// WithPage returns the identifier of another page in the same inventory,
// keeping the zero padding width of the original
func (p PageID) WithPage(n int) PageID {
	p.Page = fmt.Sprintf("%0*d", len(p.Page), n)
	return p
}

// ScanIDFromPath strips directories and a .xml or .json extension from a path.
// Page ids contain dots, so only known extensions are removed.
func ScanIDFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".xml", ".json"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
