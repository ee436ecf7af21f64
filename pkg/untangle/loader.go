package untangle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gardar/untangler/pkg/gdocai"
	"github.com/gardar/untangler/pkg/iiif"
	"github.com/gardar/untangler/pkg/pagexml"
)

// DirLoader reads scans from a directory of PAGE XML files named
// {page_id}.xml. When a page has no PAGE XML file and DocAIDir is set,
// {DocAIDir}/{page_id}.json is read as Document AI output instead.
type DirLoader struct {
	PageXMLDir string
	DocAIDir   string
	Images     *iiif.Mapping // Optional, fills Scan.IIIFBase
	Canvases   iiif.Canvases // Optional, fills Scan.CanvasID
}

// Load reads and parses one page
func (l *DirLoader) Load(ctx context.Context, pageID string) (*pagexml.Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scan, err := pagexml.Parse(filepath.Join(l.PageXMLDir, pageID+".xml"))
	if errors.Is(err, fs.ErrNotExist) && l.DocAIDir != "" {
		scan, err = gdocai.LoadScan(filepath.Join(l.DocAIDir, pageID+".json"))
	}
	if err != nil {
		return nil, err
	}

	if base, ok := l.Images.Base(pageID); ok {
		scan.IIIFBase = base
	}
	if l.Canvases.Template != "" {
		if canvas, err := l.Canvases.URL(pageID); err == nil {
			scan.CanvasID = canvas
		}
	}
	return scan, nil
}

// PageIDs lists the pages of an inventory found in the loader's directories,
// sorted by page id
func (l *DirLoader) PageIDs(inventory string) ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range []string{l.PageXMLDir, l.DocAIDir} {
		if dir == "" {
			continue
		}
		ids, err := scanIDs(dir)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			pid, err := pagexml.ParsePageID(id)
			if err != nil || pid.Inventory != inventory {
				continue
			}
			seen[id] = true
		}
	}
	return sortedKeys(seen), nil
}

// Inventories lists every inventory number with at least one page
func (l *DirLoader) Inventories() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range []string{l.PageXMLDir, l.DocAIDir} {
		if dir == "" {
			continue
		}
		ids, err := scanIDs(dir)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if pid, err := pagexml.ParsePageID(id); err == nil {
				seen[pid.Inventory] = true
			}
		}
	}
	return sortedKeys(seen), nil
}

// PageRange returns the page ids of an inventory whose page number lies in [from, to]
func (l *DirLoader) PageRange(inventory string, from, to int) ([]string, error) {
	if from > to {
		return nil, fmt.Errorf("invalid page range %d-%d", from, to)
	}
	ids, err := l.PageIDs(inventory)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, id := range ids {
		pid, _ := pagexml.ParsePageID(id)
		if n := pid.PageNumber(); n >= from && n <= to {
			result = append(result, id)
		}
	}
	return result, nil
}

func scanIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".json")) {
			continue
		}
		ids = append(ids, pagexml.ScanIDFromPath(name))
	}
	return ids, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
