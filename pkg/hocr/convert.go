package hocr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gardar/untangler/pkg/pagexml"
)

// LanguageLookup returns the detected languages of a page
type LanguageLookup func(pageID string) []string

// FromScans builds an hOCR document with one page per scan
func FromScans(title string, scans []*pagexml.Scan, langs LanguageLookup) Document {
	doc := Document{
		Title: title,
		Metadata: map[string]string{
			"ocr-system":          "untangler",
			"ocr-capabilities":    "ocr_page ocr_carea ocr_line ocrx_word",
			"ocr-number-of-pages": strconv.Itoa(len(scans)),
		},
	}
	for i, s := range scans {
		page := convertPage(s, i)
		if langs != nil {
			page.Langs = langs(s.ID)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func convertPage(s *pagexml.Scan, index int) Page {
	page := Page{
		ID:         s.ID,
		PageNumber: index,
		ImageName:  s.ImageName,
		BBox:       BoundingBox{X2: s.ImageWidth, Y2: s.ImageHeight},
	}
	if pid, err := pagexml.ParsePageID(s.ID); err == nil {
		page.PageNumber = pid.PageNumber()
	}
	for _, r := range s.Regions {
		page.Areas = append(page.Areas, convertArea(r))
	}
	return page
}

func convertArea(r pagexml.TextRegion) Area {
	area := Area{ID: r.ID, Role: r.Role, BBox: BoxOf(r.Coords)}
	for _, l := range r.Lines {
		line := Line{
			ID:       l.ID,
			BBox:     BoxOf(l.Coords),
			Baseline: baseline(l.Baseline, BoxOf(l.Coords)),
			Text:     l.Text,
		}
		for _, w := range l.Words {
			line.Words = append(line.Words, Word{ID: w.ID, Text: w.Text, BBox: BoxOf(w.Coords)})
		}
		area.Lines = append(area.Lines, line)
	}
	return area
}

// baseline converts a PageXML baseline to the hOCR "slope offset" form.
// The offset is measured from the bottom of the line box at its left edge.
func baseline(points pagexml.Polygon, box BoundingBox) string {
	if len(points) < 2 {
		return ""
	}
	first, last := points[0], points[len(points)-1]
	if last.X == first.X {
		return ""
	}
	slope := float64(last.Y-first.Y) / float64(last.X-first.X)
	y := float64(first.Y) + slope*float64(box.X1-first.X)
	offset := y - float64(box.Y2)
	return fmt.Sprintf("%s %s", formatFloat(slope), formatFloat(offset))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}
