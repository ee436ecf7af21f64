package untangle

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gardar/untangler/pkg/joiner"
	"github.com/gardar/untangler/pkg/pagexml"
	"github.com/gardar/untangler/pkg/wordtree"
)

// PageNavigator resolves the previous and next page of a page
type PageNavigator interface {
	Neighbours(pageID string) (prev, next string, err error)
}

// LanguageResolver looks up the detected languages of a page
type LanguageResolver interface {
	Languages(pageID string) (langs []string, corrected bool, ok bool)
}

// ScanResult is the untangled form of one scan, with anchors local to the scan
type ScanResult struct {
	PageID      string
	Lines       []string // Physical segments
	Paragraphs  []string // Logical segments
	Annotations []Annotation
	Words       *wordtree.Tree // Word intervals over the concatenated paragraphs
	Issues      Issues
}

// ScanUntangler produces the two projections and the annotations of one scan
type ScanUntangler struct {
	Navigator PageNavigator    // Optional
	Languages LanguageResolver // Optional
	Logger    *zap.Logger
}

// Untangle runs the line joiner on every text region of the scan. All
// anchors in the result start at 0; the inventory untangler shifts them.
func (u *ScanUntangler) Untangle(scan *pagexml.Scan) ScanResult {
	logger := u.logger().With(zap.String("page", scan.ID))
	res := ScanResult{PageID: scan.ID}
	var words []pagexml.Word

	for _, region := range scan.Regions {
		if !region.Role.IsText() {
			continue
		}

		var lines []pagexml.TextLine
		var joinLines []joiner.Line
		for _, l := range region.Lines {
			if strings.TrimSpace(l.Text) == "" {
				continue
			}
			lines = append(lines, l)
			joinLines = append(joinLines, joiner.Line{ID: l.ID, Text: l.Text})
		}
		if len(lines) == 0 {
			continue
		}

		para := joiner.Join(joinLines)
		lineOffset := len(res.Lines)
		paraIndex := len(res.Paragraphs)

		res.Annotations = append(res.Annotations, Annotation{
			Type:     TypeTextRegion,
			ID:       region.ID,
			PageID:   scan.ID,
			Physical: AnchorSpan(lineOffset, lineOffset+len(lines)-1),
			Logical:  AnchorSpan(paraIndex, paraIndex),
			Metadata: map[string]any{
				"structureType": string(region.Role),
			},
			Coords: []pagexml.Polygon{region.Coords},
		})

		for i, line := range lines {
			r := para.Ranges[i]
			res.Annotations = append(res.Annotations, Annotation{
				Type:     TypeTextLine,
				ID:       line.ID,
				PageID:   scan.ID,
				Physical: AnchorSpan(lineOffset+i, lineOffset+i),
				Logical:  CharSpan(paraIndex, r.Start, r.End-1),
				Metadata: map[string]any{
					"text":         line.Text,
					"textRegionId": region.ID,
				},
				Coords: []pagexml.Polygon{line.Coords},
			})
			res.Lines = append(res.Lines, line.Text)
			words = append(words, line.Words...)
		}
		res.Paragraphs = append(res.Paragraphs, para.Text)
	}

	if len(res.Lines) == 0 {
		// Keep one anchor per page so the projections stay dense
		res.Lines = []string{""}
		res.Paragraphs = []string{""}
		res.Issues = append(res.Issues, Issue{Kind: KindEmptyScan, PageID: scan.ID})
		logger.Debug("empty scan")
	}

	tree, err := wordtree.Build(strings.Join(res.Paragraphs, ""), words)
	if err != nil {
		res.Issues = append(res.Issues, Issue{Kind: KindWordAlignmentLost, PageID: scan.ID, Err: err})
		var ae *wordtree.AlignmentError
		if errors.As(err, &ae) {
			logger.Warn("word alignment lost", zap.Int("lost", len(ae.Lost)), zap.Int("aligned", tree.Len()))
		}
	}
	res.Words = tree

	for _, problem := range scan.Check() {
		logger.Debug("layout problem", zap.Error(problem))
	}

	res.Annotations = append(res.Annotations, Annotation{
		Type:     TypePage,
		ID:       scan.ID,
		PageID:   scan.ID,
		Physical: AnchorSpan(0, len(res.Lines)-1),
		Logical:  AnchorSpan(0, len(res.Paragraphs)-1),
		Metadata: u.pageMetadata(scan, &res),
	})
	return res
}

// pageMetadata collects the page level metadata, languages and navigation
func (u *ScanUntangler) pageMetadata(scan *pagexml.Scan, res *ScanResult) map[string]any {
	md := scan.Metadata
	meta := map[string]any{
		"inventoryNumber": md.InventoryNumber,
		"pageNumber":      md.PageNumber,
		"imageWidth":      scan.ImageWidth,
		"imageHeight":     scan.ImageHeight,
	}
	setIfPresent(meta, "creator", md.Creator)
	setIfPresent(meta, "created", md.Created)
	setIfPresent(meta, "lastChange", md.LastChange)
	setIfPresent(meta, "comment", md.Comment)
	setIfPresent(meta, "externalRef", md.ExternalRef)
	setIfPresent(meta, "imageFilename", scan.ImageName)

	if u.Languages != nil {
		if langs, corrected, ok := u.Languages.Languages(scan.ID); ok {
			meta["langs"] = langs
			meta["langCorrected"] = corrected
		}
	}

	if u.Navigator != nil {
		prev, next, err := u.Navigator.Neighbours(scan.ID)
		if err != nil {
			res.Issues = append(res.Issues, Issue{
				Kind:   KindMissingNavigation,
				PageID: scan.ID,
				Err:    fmt.Errorf("navigation: %w", err),
			})
		}
		setIfPresent(meta, "prevPage", prev)
		setIfPresent(meta, "nextPage", next)
	}
	return meta
}

func (u *ScanUntangler) logger() *zap.Logger {
	if u.Logger == nil {
		return zap.NewNop()
	}
	return u.Logger
}

func setIfPresent(meta map[string]any, key, value string) {
	if value != "" {
		meta[key] = value
	}
}
