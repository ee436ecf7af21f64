// Package langs attaches detected page languages from a precomputed TSV
// table with the columns inv_nr, page_no, langs and corrected.
package langs

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

// Entry is the language record of one page
type Entry struct {
	Langs     []string
	Corrected bool // Languages were checked by a person
}

type key struct {
	inventory string
	page      int
}

// Table maps pages to their languages
type Table struct {
	entries map[key]Entry
}

// Load reads a language table from a TSV file
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// Read parses a language table. A header row starting with inv_nr is skipped.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &Table{entries: make(map[key]Entry)}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && rec[0] == "inv_nr" {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 columns, got %d", line, len(rec))
		}
		page, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid page number %q", line, rec[1])
		}
		entry := Entry{Langs: splitLangs(rec[2])}
		if len(rec) > 3 {
			entry.Corrected = strings.TrimSpace(rec[3]) == "1"
		}
		t.entries[key{strings.TrimSpace(rec[0]), page}] = entry
	}
}

// Lookup returns the entry of a page
func (t *Table) Lookup(pageID string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	pid, err := pagexml.ParsePageID(pageID)
	if err != nil {
		return Entry{}, false
	}
	e, ok := t.entries[key{pid.Inventory, pid.PageNumber()}]
	return e, ok
}

// Languages implements the resolver used by the scan untangler
func (t *Table) Languages(pageID string) ([]string, bool, bool) {
	e, ok := t.Lookup(pageID)
	return e.Langs, e.Corrected, ok
}

// Len returns the number of pages in the table
func (t *Table) Len() int { return len(t.entries) }

func splitLangs(s string) []string {
	var langs []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
