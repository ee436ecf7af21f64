// Package iiif maps scans to their IIIF image service and canvas.
//
// The image service base URL of every page comes from a CSV export
// (pagexml_id,iiif_base_url); canvas URLs follow the manifest generator's
// naming and are produced from a template.
package iiif

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gardar/untangler/pkg/pagexml"
)

// Mapping holds the IIIF base URL of each page
type Mapping struct {
	bases map[string]string
}

// LoadMapping reads a pagexml_id,iiif_base_url CSV file
func LoadMapping(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMapping(f)
}

// ReadMapping reads mapping rows; a header row is skipped
func ReadMapping(r io.Reader) (*Mapping, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	m := &Mapping{bases: make(map[string]string)}
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading IIIF mapping: %w", err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("IIIF mapping line %d: expected 2 fields, got %d", line, len(record))
		}
		if line == 1 && record[0] == "pagexml_id" {
			continue
		}
		id := pagexml.ScanIDFromPath(strings.TrimSpace(record[0]))
		m.bases[id] = strings.TrimRight(strings.TrimSpace(record[1]), "/")
	}
	return m, nil
}

// NewMapping builds a mapping from a page id to base URL map
func NewMapping(bases map[string]string) *Mapping {
	m := &Mapping{bases: make(map[string]string, len(bases))}
	for k, v := range bases {
		m.bases[k] = strings.TrimRight(v, "/")
	}
	return m
}

// Base returns the IIIF image service base URL of a page
func (m *Mapping) Base(pageID string) (string, bool) {
	if m == nil {
		return "", false
	}
	base, ok := m.bases[pageID]
	return base, ok
}

// Len returns the number of mapped pages
func (m *Mapping) Len() int { return len(m.bases) }

// Canvases builds canvas URLs from a template with the placeholders
// {inventory}, {page} (page number without padding) and {pageId}
type Canvases struct {
	Template string
}

// URL returns the canvas URL of a page
func (c Canvases) URL(pageID string) (string, error) {
	if c.Template == "" {
		return "", errors.New("no canvas URL template configured")
	}
	pid, err := pagexml.ParsePageID(pageID)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{inventory}", pid.Inventory,
		"{page}", strconv.Itoa(pid.PageNumber()),
		"{pageId}", pageID,
	)
	return r.Replace(c.Template), nil
}

// ImageURL returns an Image API URL for a region of the image at full size
// Example: {base}/10,20,300,40/max/0/default.jpg
func ImageURL(base, region string) string {
	return fmt.Sprintf("%s/%s/max/0/default.jpg", base, region)
}

// FullImageURL returns the Image API URL of the whole image
func FullImageURL(base string) string {
	return ImageURL(base, "full")
}
