package pagexml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformed is returned when required PageXML elements or attributes are absent
var ErrMalformed = errors.New("malformed PageXML")

// PageXML files come with and without the namespace, so every step matches on local-name()
var (
	exprPage        = xpath.MustCompile("//*[local-name()='Page']")
	exprMetadata    = xpath.MustCompile("//*[local-name()='Metadata']")
	exprRegionRefs  = xpath.MustCompile(".//*[local-name()='ReadingOrder']//*[local-name()='RegionRefIndexed']")
	exprTextRegions = xpath.MustCompile(".//*[local-name()='TextRegion']")
	exprTextLines   = xpath.MustCompile("./*[local-name()='TextLine']")
	exprWords       = xpath.MustCompile("./*[local-name()='Word']")
	exprCoords      = xpath.MustCompile("./*[local-name()='Coords']")
	exprBaseline    = xpath.MustCompile("./*[local-name()='Baseline']")
	exprUnicode     = xpath.MustCompile("./*[local-name()='TextEquiv']/*[local-name()='Unicode']")
)

var structureType = regexp.MustCompile(`structure\s*\{[^}]*type:\s*([^;}]+)`)

// Parse reads the PageXML file at path and returns the typed page model.
// The scan id is taken from the file name.
func Parse(path string) (*Scan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(ScanIDFromPath(path), data)
}

// ParseBytes converts raw PageXML data into a Scan with the given id
func ParseBytes(id string, data []byte) (*Scan, error) {
	return ParseReader(id, bytes.NewReader(data))
}

// ParseReader converts a PageXML stream into a Scan with the given id
func ParseReader(id string, r io.Reader) (*Scan, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, id, err)
	}

	page := xmlquery.QuerySelector(doc, exprPage)
	if page == nil {
		return nil, fmt.Errorf("%w: %s: no Page element", ErrMalformed, id)
	}

	scan := &Scan{
		ID:        id,
		ImageName: page.SelectAttr("imageFilename"),
	}
	if scan.ImageWidth, err = intAttr(page, "imageWidth"); err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	if scan.ImageHeight, err = intAttr(page, "imageHeight"); err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	scan.Metadata = extractMetadata(doc)
	if pid, err := ParsePageID(id); err == nil {
		scan.Metadata.InventoryNumber = pid.Inventory
		scan.Metadata.PageNumber = pid.Page
	}

	// Process all regions in document order first, then apply the reading order
	var regions []TextRegion
	for _, n := range xmlquery.QuerySelectorAll(page, exprTextRegions) {
		region, err := processRegion(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		regions = append(regions, region)
	}

	scan.Regions, err = applyReadingOrder(page, regions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return scan, nil
}

// extractMetadata reads the Metadata block; all fields are optional
func extractMetadata(doc *xmlquery.Node) Metadata {
	var md Metadata
	meta := xmlquery.QuerySelector(doc, exprMetadata)
	if meta == nil {
		return md
	}
	md.ExternalRef = meta.SelectAttr("externalRef")
	for c := meta.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		text := strings.TrimSpace(c.InnerText())
		switch c.Data {
		case "Creator":
			md.Creator = text
		case "Created":
			md.Created = text
		case "LastChange":
			md.LastChange = text
		case "Comments", "Comment":
			md.Comment = text
		}
	}
	return md
}

// processRegion extracts a region, its outline, role and lines
func processRegion(n *xmlquery.Node) (TextRegion, error) {
	region := TextRegion{
		ID:   n.SelectAttr("id"),
		Role: regionRole(n.SelectAttr("custom"), n.SelectAttr("type")),
	}
	if region.ID == "" {
		return region, fmt.Errorf("%w: TextRegion without id", ErrMalformed)
	}

	coords, err := requiredCoords(n)
	if err != nil {
		return region, fmt.Errorf("region %s: %w", region.ID, err)
	}
	region.Coords = coords

	for _, ln := range xmlquery.QuerySelectorAll(n, exprTextLines) {
		line, err := processLine(ln)
		if err != nil {
			return region, fmt.Errorf("region %s: %w", region.ID, err)
		}
		region.Lines = append(region.Lines, line)
	}
	return region, nil
}

// processLine extracts line information and its words
func processLine(n *xmlquery.Node) (TextLine, error) {
	line := TextLine{ID: n.SelectAttr("id")}
	if line.ID == "" {
		return line, fmt.Errorf("%w: TextLine without id", ErrMalformed)
	}

	coords, err := requiredCoords(n)
	if err != nil {
		return line, fmt.Errorf("line %s: %w", line.ID, err)
	}
	line.Coords = coords

	if bl := xmlquery.QuerySelector(n, exprBaseline); bl != nil {
		// A broken baseline is not fatal; the line outline is what we need
		line.Baseline, _ = ParsePoints(bl.SelectAttr("points"))
	}

	for _, wn := range xmlquery.QuerySelectorAll(n, exprWords) {
		word := Word{
			ID:   wn.SelectAttr("id"),
			Text: unicodeText(wn),
		}
		if c := xmlquery.QuerySelector(wn, exprCoords); c != nil {
			word.Coords, _ = ParsePoints(c.SelectAttr("points"))
		}
		line.Words = append(line.Words, word)
	}

	line.Text = unicodeText(n)
	if line.Text == "" && len(line.Words) > 0 {
		// Some exports only carry word level text
		parts := make([]string, 0, len(line.Words))
		for _, w := range line.Words {
			if w.Text != "" {
				parts = append(parts, w.Text)
			}
		}
		line.Text = strings.Join(parts, " ")
	}
	return line, nil
}

// applyReadingOrder sorts regions by RegionRefIndexed. Regions not mentioned
// in the reading order follow the ordered ones in document order.
func applyReadingOrder(page *xmlquery.Node, regions []TextRegion) ([]TextRegion, error) {
	refs := xmlquery.QuerySelectorAll(page, exprRegionRefs)
	if len(refs) == 0 {
		return regions, nil
	}

	type regionRef struct {
		ref   string
		index int
	}
	ordered := make([]regionRef, 0, len(refs))
	for _, n := range refs {
		ref := n.SelectAttr("regionRef")
		if ref == "" {
			return nil, fmt.Errorf("%w: RegionRefIndexed without regionRef", ErrMalformed)
		}
		idx, err := intAttr(n, "index")
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, regionRef{ref: ref, index: idx})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].index < ordered[j].index
	})
	for i, r := range ordered {
		if r.index != i {
			return nil, fmt.Errorf("%w: reading order index %d is not dense (expected %d)", ErrMalformed, r.index, i)
		}
	}

	byID := make(map[string]int, len(regions))
	for i, r := range regions {
		byID[r.ID] = i
	}
	used := make([]bool, len(regions))
	result := make([]TextRegion, 0, len(regions))
	for _, r := range ordered {
		i, ok := byID[r.ref]
		if !ok {
			// The reading order may reference non-text regions (tables, images)
			continue
		}
		if used[i] {
			return nil, fmt.Errorf("%w: region %s appears twice in reading order", ErrMalformed, r.ref)
		}
		used[i] = true
		result = append(result, regions[i])
	}
	for i, r := range regions {
		if !used[i] {
			result = append(result, r)
		}
	}
	return result, nil
}

// regionRole resolves the structural role, preferring the custom structure tag
func regionRole(custom, typ string) Role {
	value := typ
	if m := structureType.FindStringSubmatch(custom); m != nil {
		value = m[1]
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "paragraph", "text":
		return RoleParagraph
	case "marginalia":
		return RoleMarginalia
	case "header", "heading":
		return RoleHeader
	case "signature-mark":
		return RoleSignatureMark
	case "catch-word":
		return RoleCatchWord
	case "page-number":
		return RolePageNumber
	case "":
		return RoleParagraph
	default:
		return RoleOther
	}
}

// unicodeText returns the NFC normalized TextEquiv/Unicode content of a node
func unicodeText(n *xmlquery.Node) string {
	u := xmlquery.QuerySelector(n, exprUnicode)
	if u == nil {
		return ""
	}
	return norm.NFC.String(u.InnerText())
}

func requiredCoords(n *xmlquery.Node) (Polygon, error) {
	c := xmlquery.QuerySelector(n, exprCoords)
	if c == nil {
		return nil, fmt.Errorf("%w: missing Coords", ErrMalformed)
	}
	return ParsePoints(c.SelectAttr("points"))
}

func intAttr(n *xmlquery.Node, name string) (int, error) {
	raw := n.SelectAttr(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s missing @%s", ErrMalformed, n.Data, name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s has invalid @%s %q", ErrMalformed, n.Data, name, raw)
	}
	return v, nil
}

// Check reports lines whose outline is not inside their region's outline.
// These are layout defects, not parse failures.
func (s *Scan) Check() []error {
	var problems []error
	for _, r := range s.Regions {
		box := r.Coords.BoundingBox()
		for _, l := range r.Lines {
			if !box.Contains(l.Coords.BoundingBox()) {
				problems = append(problems, fmt.Errorf("line %s lies outside region %s", l.ID, r.ID))
			}
		}
	}
	return problems
}
