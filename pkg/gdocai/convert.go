package gdocai

import (
	"fmt"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/untangler/pkg/pagexml"
)

// convertRegions turns blocks into regions and assigns lines and tokens by
// text anchor containment
func convertRegions(page *documentaipb.Document_Page, fullText string) []pagexml.TextRegion {
	var regions []pagexml.TextRegion

	// Track which lines are assigned to avoid duplication
	assignedLines := make(map[string]bool)

	for bidx, block := range page.GetBlocks() {
		region := pagexml.TextRegion{
			ID:     fmt.Sprintf("block_%d", bidx),
			Role:   pagexml.RoleParagraph,
			Coords: polygonFromLayout(block.GetLayout(), page.GetDimension()),
		}
		for lidx, line := range page.GetLines() {
			if !isElementInParent(line.GetLayout(), block.GetLayout()) {
				continue
			}
			key := getLayoutKey(line.GetLayout())
			if assignedLines[key] {
				continue
			}
			assignedLines[key] = true
			region.Lines = append(region.Lines, convertLine(line, page, fullText, bidx, lidx))
		}
		regions = append(regions, region)
	}

	// Collect lines not assigned to any block in one extra region
	var unassigned []pagexml.TextLine
	for lidx, line := range page.GetLines() {
		if assignedLines[getLayoutKey(line.GetLayout())] {
			continue
		}
		unassigned = append(unassigned, convertLine(line, page, fullText, len(page.GetBlocks()), lidx))
	}
	if len(unassigned) > 0 {
		region := pagexml.TextRegion{
			ID:    "block_unassigned",
			Role:  pagexml.RoleParagraph,
			Lines: unassigned,
		}
		for _, l := range unassigned {
			region.Coords = append(region.Coords, l.Coords...)
		}
		region.Coords = boxPolygon(region.Coords.BoundingBox())
		regions = append(regions, region)
	}
	return regions
}

// convertLine converts a proto line and the tokens inside it
func convertLine(line *documentaipb.Document_Page_Line, page *documentaipb.Document_Page,
	fullText string, blockIdx, lineIdx int) pagexml.TextLine {

	result := pagexml.TextLine{
		ID:     fmt.Sprintf("line_%d_%d", blockIdx, lineIdx),
		Coords: polygonFromLayout(line.GetLayout(), page.GetDimension()),
		Text:   cleanText(textFromLayout(line.GetLayout(), fullText)),
	}

	for tidx, token := range page.GetTokens() {
		if !isElementInParent(token.GetLayout(), line.GetLayout()) {
			continue
		}
		result.Words = append(result.Words, pagexml.Word{
			ID:     fmt.Sprintf("word_%d_%d_%d", blockIdx, lineIdx, tidx),
			Coords: polygonFromLayout(token.GetLayout(), page.GetDimension()),
			Text:   cleanText(textFromLayout(token.GetLayout(), fullText)),
		})
	}
	return result
}

// cleanText removes the line break Document AI keeps at the end of lines and tokens
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}

// Helper function to check if an element is contained within a parent
func isElementInParent(elementLayout, parentLayout *documentaipb.Document_Page_Layout) bool {
	element := elementLayout.GetTextAnchor().GetTextSegments()
	parent := parentLayout.GetTextAnchor().GetTextSegments()
	if len(element) == 0 || len(parent) == 0 {
		return false
	}
	return element[0].GetStartIndex() >= parent[0].GetStartIndex() &&
		element[0].GetEndIndex() <= parent[0].GetEndIndex()
}

// Helper function to generate a unique key for a layout
func getLayoutKey(layout *documentaipb.Document_Page_Layout) string {
	segments := layout.GetTextAnchor().GetTextSegments()
	if len(segments) == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", segments[0].GetStartIndex(), segments[0].GetEndIndex())
}
