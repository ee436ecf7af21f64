package hocr

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const doctype = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`

// Render writes the document as hOCR HTML
func Render(w io.Writer, doc Document) error {
	if _, err := io.WriteString(w, doctype+"\n"); err != nil {
		return err
	}
	if err := html.Render(w, documentNode(doc)); err != nil {
		return fmt.Errorf("error rendering hOCR document: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// RenderString returns the rendered document
func RenderString(doc Document) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func documentNode(doc Document) *html.Node {
	root := element(atom.Html, "xmlns", "http://www.w3.org/1999/xhtml")
	if doc.Language != "" {
		root.Attr = append(root.Attr, html.Attribute{Key: "lang", Val: doc.Language})
	}

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "http-equiv", "Content-Type", "content", "text/html; charset=utf-8"))
	title := element(atom.Title)
	title.AppendChild(text(doc.Title))
	head.AppendChild(title)
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		head.AppendChild(element(atom.Meta, "name", k, "content", doc.Metadata[k]))
	}
	root.AppendChild(head)

	body := element(atom.Body)
	for _, p := range doc.Pages {
		body.AppendChild(pageNode(p))
	}
	root.AppendChild(body)
	return root
}

func pageNode(p Page) *html.Node {
	props := []string{p.BBox.String(), fmt.Sprintf("ppageno %d", p.PageNumber)}
	if p.ImageName != "" {
		props = append(props, fmt.Sprintf("image %q", p.ImageName))
	}
	n := element(atom.Div, "class", p.Class(), "id", p.ID, "title", strings.Join(props, "; "))
	if len(p.Langs) > 0 {
		n.Attr = append(n.Attr, html.Attribute{Key: "lang", Val: p.Langs[0]})
	}
	for _, a := range p.Areas {
		n.AppendChild(areaNode(a))
	}
	return n
}

func areaNode(a Area) *html.Node {
	title := a.BBox.String()
	if a.Role != "" {
		title += "; x_role " + string(a.Role)
	}
	n := element(atom.Div, "class", a.Class(), "id", a.ID, "title", title)
	for _, l := range a.Lines {
		n.AppendChild(lineNode(l))
	}
	return n
}

func lineNode(l Line) *html.Node {
	title := l.BBox.String()
	if l.Baseline != "" {
		title += "; baseline " + l.Baseline
	}
	n := element(atom.Span, "class", l.Class(), "id", l.ID, "title", title)
	if len(l.Words) == 0 {
		n.AppendChild(text(l.Text))
		return n
	}
	for i, w := range l.Words {
		if i > 0 {
			n.AppendChild(text(" "))
		}
		word := element(atom.Span, "class", w.Class(), "id", w.ID, "title", w.BBox.String())
		word.AppendChild(text(w.Text))
		n.AppendChild(word)
	}
	return n
}

// element creates an element node with attributes given as key, value pairs
func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
