// Package pagexml implements parsing of PAGE XML layout documents into a typed
// page model for the untangler.
//
// The package implements the part of the PAGE hierarchy the untangler reads:
// Page → TextRegions (in reading order) → TextLines → Words, each with an outline
// polygon and the literal text from TextEquiv/Unicode.
//
// Key Types:
//
// - Scan: One PAGE XML document, corresponding to one image
// - TextRegion: A block of lines with a structural Role
// - TextLine: A single line with its literal text and words
// - Word: A single word with its outline
// - Polygon and BoundingBox: Image coordinates
// - PageID: The archival identifier "prefix_inventory_page"
//
// Main Functions:
//
// - Parse: Reads a PAGE XML file into a Scan
// - ParseBytes / ParseReader: Same, for in-memory data
// - ParsePageID: Splits a scan identifier into inventory and page number
package pagexml
