package hocr

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/gardar/untangler/pkg/pagexml"
)

// ErrNoPages is returned when a document has no ocr_page element
var ErrNoPages = errors.New("no ocr_page elements found in hOCR data")

// Parse reads an hOCR document into the object model
func Parse(r io.Reader) (Document, error) {
	doc := Document{Metadata: make(map[string]string)}
	root, err := html.Parse(r)
	if err != nil {
		return doc, err
	}

	walk(root, func(n *html.Node) bool {
		switch {
		case n.Type != html.ElementNode:
			return true
		case n.Data == "html":
			doc.Language = attr(n, "lang")
		case n.Data == "title":
			doc.Title = textContent(n)
			return false
		case n.Data == "meta":
			if name := attr(n, "name"); name != "" {
				doc.Metadata[name] = attr(n, "content")
			}
		case hasClass(n, "ocr_page"):
			doc.Pages = append(doc.Pages, parsePage(n))
			return false
		}
		return true
	})

	if len(doc.Pages) == 0 {
		return doc, ErrNoPages
	}
	return doc, nil
}

// ParseTitle breaks down an hOCR title attribute into its components
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(part)
		if len(items) > 0 {
			result[items[0]] = items[1:]
		}
	}
	return result
}

// ParseBoundingBox extracts the bbox property of a title attribute
func ParseBoundingBox(title string) (BoundingBox, error) {
	bbox, ok := ParseTitle(title)["bbox"]
	if !ok || len(bbox) != 4 {
		return BoundingBox{}, fmt.Errorf("no bbox in title %q", title)
	}
	var v [4]int
	for i, s := range bbox {
		n, err := strconv.Atoi(s)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid bbox in title %q: %w", title, err)
		}
		v[i] = n
	}
	return BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

func parsePage(n *html.Node) Page {
	title := attr(n, "title")
	props := ParseTitle(title)
	page := Page{ID: attr(n, "id")}
	page.BBox, _ = ParseBoundingBox(title)
	if img, ok := props["image"]; ok && len(img) > 0 {
		page.ImageName = strings.Trim(strings.Join(img, " "), `"`)
	}
	if pno, ok := props["ppageno"]; ok && len(pno) > 0 {
		page.PageNumber, _ = strconv.Atoi(pno[0])
	}
	if lang := attr(n, "lang"); lang != "" {
		page.Langs = []string{lang}
	}

	walk(n, func(c *html.Node) bool {
		if c != n && hasClass(c, "ocr_carea") {
			page.Areas = append(page.Areas, parseArea(c))
			return false
		}
		return true
	})
	return page
}

func parseArea(n *html.Node) Area {
	title := attr(n, "title")
	area := Area{ID: attr(n, "id")}
	area.BBox, _ = ParseBoundingBox(title)
	if role, ok := ParseTitle(title)["x_role"]; ok && len(role) > 0 {
		area.Role = pagexml.Role(role[0])
	}

	walk(n, func(c *html.Node) bool {
		if c != n && hasClass(c, "ocr_line") {
			area.Lines = append(area.Lines, parseLine(c))
			return false
		}
		return true
	})
	return area
}

func parseLine(n *html.Node) Line {
	title := attr(n, "title")
	line := Line{ID: attr(n, "id")}
	line.BBox, _ = ParseBoundingBox(title)
	if bl, ok := ParseTitle(title)["baseline"]; ok {
		line.Baseline = strings.Join(bl, " ")
	}

	walk(n, func(c *html.Node) bool {
		if c != n && hasClass(c, "ocrx_word") {
			w := Word{ID: attr(c, "id"), Text: textContent(c)}
			w.BBox, _ = ParseBoundingBox(attr(c, "title"))
			line.Words = append(line.Words, w)
			return false
		}
		return true
	})
	line.Text = textContent(n)
	return line
}

// walk visits n and its descendants depth first. Children are skipped
// when visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// textContent gets all text from a node and its children
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(sb.String())
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Get the value of a specific attribute from a node
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
