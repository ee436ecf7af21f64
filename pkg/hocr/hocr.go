// Package hocr exports scans as hOCR, the HTML-based format for OCR
// results, and reads such exports back.
//
// The export follows the hOCR hierarchy Document → Pages → Areas → Lines →
// Words. Every text region of a scan becomes an 'ocr_carea', including the
// regions that do not contribute to the text projections, so that the export
// shows the full layout of the scan.
//
// Key Types:
//
// - Document: Top-level structure representing an entire hOCR document
// - Page: A single scan with class 'ocr_page'
// - Area: A text region with class 'ocr_carea'
// - Line: A line of text with class 'ocr_line'
// - Word: A single word with class 'ocrx_word'
//
// Main Functions:
//
// - FromScans: Converts parsed scans into the object model
// - Render: Writes the object model as an hOCR document
// - Parse: Reads an hOCR document back into the object model
package hocr
