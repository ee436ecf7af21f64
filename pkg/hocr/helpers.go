package hocr

import (
	"strings"
)

// ExtractText extracts all text from an hOCR document.
// Lines are separated by newlines, areas by an empty line and pages by a
// form feed.
func ExtractText(doc Document) string {
	var builder strings.Builder
	for i, page := range doc.Pages {
		if i > 0 {
			builder.WriteString("\f")
		}
		for j, area := range page.Areas {
			if j > 0 {
				builder.WriteString("\n")
			}
			for _, line := range area.Lines {
				builder.WriteString(LineText(line))
				builder.WriteString("\n")
			}
		}
	}
	return builder.String()
}

// LineText returns the text of a line, from its words when it has any
func LineText(line Line) string {
	if len(line.Words) == 0 {
		return line.Text
	}
	words := make([]string, len(line.Words))
	for i, w := range line.Words {
		words[i] = w.Text
	}
	return strings.Join(words, " ")
}
