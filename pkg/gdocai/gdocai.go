// Package gdocai converts Google Document AI output into the PAGE page model,
// so scans that were recognised with Document AI instead of an HTR pipeline
// can be untangled like any PAGE XML scan.
//
// The input is the JSON form of a Document AI Document (as written by the
// Document AI console or a batch process) holding exactly one page.
//
// Structure mapping:
//
// - Document page → Scan (image size from the page dimension)
// - Block → TextRegion with role paragraph
// - Line → TextLine
// - Token → Word
//
// Lines that belong to no block are collected in one trailing region.
//
// Main Functions:
//
// - LoadScan: Reads a Document AI JSON file into a Scan
// - ParseScan: Same, for in-memory JSON
// - ScanFromProto: Converts a decoded Document into a Scan
package gdocai

import (
	"fmt"
	"os"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/gardar/untangler/pkg/pagexml"
)

// Creator is recorded as the scan's metadata creator
const Creator = "Google Document AI"

// LoadScan reads a Document AI JSON document from disk
func LoadScan(path string) (*pagexml.Scan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScan(pagexml.ScanIDFromPath(path), data)
}

// ParseScan decodes Document AI JSON and converts it into a Scan with the given id
func ParseScan(id string, data []byte) (*pagexml.Scan, error) {
	var doc documentaipb.Document
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding Document AI JSON: %v", pagexml.ErrMalformed, id, err)
	}
	return ScanFromProto(id, &doc)
}

// ScanFromProto converts a single page Document AI document into a Scan
func ScanFromProto(id string, doc *documentaipb.Document) (*pagexml.Scan, error) {
	if len(doc.GetPages()) != 1 {
		return nil, fmt.Errorf("%w: %s: expected 1 page in Document AI result, got %d",
			pagexml.ErrMalformed, id, len(doc.GetPages()))
	}
	page := doc.GetPages()[0]
	dim := page.GetDimension()
	if dim == nil || dim.GetWidth() <= 0 || dim.GetHeight() <= 0 {
		return nil, fmt.Errorf("%w: %s: page has no dimension", pagexml.ErrMalformed, id)
	}

	scan := &pagexml.Scan{
		ID:          id,
		ImageWidth:  int(dim.GetWidth() + 0.5),
		ImageHeight: int(dim.GetHeight() + 0.5),
		Metadata:    pagexml.Metadata{Creator: Creator},
	}
	if pid, err := pagexml.ParsePageID(id); err == nil {
		scan.Metadata.InventoryNumber = pid.Inventory
		scan.Metadata.PageNumber = pid.Page
	}
	scan.Regions = convertRegions(page, doc.GetText())
	return scan, nil
}
