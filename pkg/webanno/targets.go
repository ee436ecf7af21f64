package webanno

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gardar/untangler/pkg/iiif"
	"github.com/gardar/untangler/pkg/pagexml"
	"github.com/gardar/untangler/pkg/untangle"
)

// Target is one place an annotation points at. Selector is a single
// selector for text targets and a list for image and canvas targets.
type Target struct {
	Source   string `json:"source"`
	Type     string `json:"type"`
	Selector any    `json:"selector,omitempty"`
}

// TextAnchorSelector selects an anchor range of a segmented text,
// optionally narrowed to characters within the first and last anchor
type TextAnchorSelector struct {
	Type      string `json:"type"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	CharStart *int   `json:"charStart,omitempty"`
	CharEnd   *int   `json:"charEnd,omitempty"`
}

// FragmentSelector selects a rectangle with a media fragment
type FragmentSelector struct {
	Type       string `json:"type"`
	ConformsTo string `json:"conformsTo"`
	Value      string `json:"value"`
}

// SvgSelector selects an area with an inline SVG document
type SvgSelector struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ImageAPISelector selects a region of a canvas in IIIF Image API terms
type ImageAPISelector struct {
	Type   string `json:"type"`
	Region string `json:"region"`
}

// Targets builds the full target list of an annotation
func (b *Builder) Targets(a untangle.Annotation) []Target {
	targets := []Target{
		b.textAnchorTarget(b.cfg.PhysicalVersionID, a.Physical),
		b.cutoutTarget(b.cfg.PhysicalVersionID, a.Physical),
		b.textAnchorTarget(b.cfg.LogicalVersionID, a.Logical),
		b.cutoutTarget(b.cfg.LogicalVersionID, a.Logical),
	}

	scan, ok := b.scans[a.PageID]
	if !ok {
		return targets
	}
	if a.Type == untangle.TypePage {
		if scan.IIIFBase != "" {
			targets = append(targets, Target{Source: iiif.FullImageURL(scan.IIIFBase), Type: "Image"})
		}
		if scan.CanvasID != "" {
			targets = append(targets, Target{Source: scan.CanvasID, Type: "Canvas"})
		}
	}
	return append(targets, imageTargets(scan, a.Coords)...)
}

// TextContentsURL is the URL of the contents of a text version
func (b *Builder) TextContentsURL(versionID string) string {
	return fmt.Sprintf("%s/rest/versions/%s/contents", b.cfg.TextRepoBaseURL, versionID)
}

// CutoutURL is the URL of the text covered by span in a text version
// Example: {textrepo}/view/versions/{id}/segments/index/3/0/3/12
func (b *Builder) CutoutURL(versionID string, span untangle.TextSpan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/view/versions/%s/segments/index/%d", b.cfg.TextRepoBaseURL, versionID, span.Begin)
	if span.HasChars() {
		fmt.Fprintf(&sb, "/%d/%d/%d", *span.CharStart, span.End, *span.CharEnd)
	} else {
		fmt.Fprintf(&sb, "/%d", span.End)
	}
	return sb.String()
}

func (b *Builder) textAnchorTarget(versionID string, span untangle.TextSpan) Target {
	sel := TextAnchorSelector{
		Type:  "tt:TextAnchorSelector",
		Start: span.Begin,
		End:   span.End,
	}
	if span.HasChars() {
		sel.CharStart = span.CharStart
		sel.CharEnd = span.CharEnd
	}
	return Target{Source: b.TextContentsURL(versionID), Type: "Text", Selector: sel}
}

func (b *Builder) cutoutTarget(versionID string, span untangle.TextSpan) Target {
	return Target{Source: b.CutoutURL(versionID, span), Type: "Text"}
}

// imageTargets builds the crop, image and canvas targets for polygons on a scan.
// Without an IIIF base there is no image to point into.
func imageTargets(scan untangle.ScanInfo, polygons []pagexml.Polygon) []Target {
	polygons = nonEmpty(polygons)
	if scan.IIIFBase == "" || len(polygons) == 0 {
		return nil
	}

	var targets []Target
	for _, p := range polygons {
		targets = append(targets, Target{
			Source: iiif.ImageURL(scan.IIIFBase, p.BoundingBox().XYWH()),
			Type:   "Image",
		})
	}

	svg := SVGSelector(polygons)
	imageSelectors := make([]any, 0, len(polygons)+1)
	canvasSelectors := make([]any, 0, len(polygons)+1)
	for _, p := range polygons {
		xywh := p.BoundingBox().XYWH()
		imageSelectors = append(imageSelectors, FragmentSelector{
			Type:       "FragmentSelector",
			ConformsTo: "http://www.w3.org/TR/media-frags/",
			Value:      "xywh=" + xywh,
		})
		canvasSelectors = append(canvasSelectors, ImageAPISelector{
			Type:   "iiif:ImageApiSelector",
			Region: xywh,
		})
	}
	imageSelectors = append(imageSelectors, svg)
	canvasSelectors = append(canvasSelectors, svg)

	targets = append(targets, Target{
		Source:   iiif.FullImageURL(scan.IIIFBase),
		Type:     "Image",
		Selector: imageSelectors,
	})
	if scan.CanvasID != "" {
		targets = append(targets, Target{
			Source:   scan.CanvasID,
			Type:     "Canvas",
			Selector: canvasSelectors,
		})
	}
	return targets
}

// SVGSelector outlines all polygons in one SVG path. The document is as
// high and wide as the largest y and x over the polygons.
func SVGSelector(polygons []pagexml.Polygon) SvgSelector {
	var height, width int
	paths := make([]string, 0, len(polygons))
	for _, p := range polygons {
		if len(p) == 0 {
			continue
		}
		points := make([]string, len(p))
		for i, pt := range p {
			op := "L"
			if i == 0 {
				op = "M"
			}
			points[i] = op + strconv.Itoa(pt.X) + " " + strconv.Itoa(pt.Y)
			height = max(height, pt.Y)
			width = max(width, pt.X)
		}
		paths = append(paths, strings.Join(points, " ")+" Z")
	}
	return SvgSelector{
		Type: "SvgSelector",
		Value: fmt.Sprintf(`<svg height="%d" width="%d"><path d="%s"/></svg>`,
			height, width, strings.Join(paths, " ")),
	}
}

func nonEmpty(polygons []pagexml.Polygon) []pagexml.Polygon {
	var out []pagexml.Polygon
	for _, p := range polygons {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}
