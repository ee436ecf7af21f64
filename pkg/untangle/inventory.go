package untangle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"go.uber.org/zap"

	"github.com/gardar/untangler/pkg/pagexml"
	"github.com/gardar/untangler/pkg/wordtree"
)

// Loader reads the page model of one page
type Loader interface {
	Load(ctx context.Context, pageID string) (*pagexml.Scan, error)
}

// ScanInfo is what later stages need to know about an untangled scan
type ScanInfo struct {
	PageID      string
	ImageWidth  int
	ImageHeight int
	CanvasID    string
	IIIFBase    string
}

// Result is the untangled inventory: both projections, the annotations with
// inventory-wide anchors, and everything that went wrong on the way
type Result struct {
	Inventory   string
	Physical    []string // One line per anchor
	Logical     []string // One paragraph per anchor
	Annotations []Annotation
	Scans       []ScanInfo
	Words       map[string]*wordtree.Tree // Per page, over the page's logical text
	Issues      Issues
}

// InventoryUntangler drives the scan untangler over the pages of an inventory
type InventoryUntangler struct {
	Loader Loader
	Scans  *ScanUntangler
	Logger *zap.Logger
}

// Untangle processes pageIDs in order. Pages that cannot be loaded are
// skipped and recorded. The context is checked between pages; a cancelled
// run returns no result.
func (u *InventoryUntangler) Untangle(ctx context.Context, inventory string, pageIDs []string) (*Result, error) {
	logger := u.logger().With(zap.String("inventory", inventory))
	scans := u.Scans
	if scans == nil {
		scans = &ScanUntangler{Logger: logger}
	}

	res := &Result{
		Inventory: inventory,
		Words:     make(map[string]*wordtree.Tree),
	}

	for _, pageID := range pageIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scan, err := u.Loader.Load(ctx, pageID)
		if err != nil {
			kind := KindMalformedPageXML
			if errors.Is(err, fs.ErrNotExist) {
				kind = KindMissingPage
			}
			res.Issues = append(res.Issues, Issue{Kind: kind, PageID: pageID, Err: err})
			logger.Warn("skipping page", zap.String("page", pageID), zap.Stringer("kind", kind), zap.Error(err))
			continue
		}

		if scan.IIIFBase == "" {
			res.Issues = append(res.Issues, Issue{Kind: KindMissingIIIFMapping, PageID: pageID})
			logger.Warn("no IIIF mapping", zap.String("page", pageID))
		}

		sr := scans.Untangle(scan)
		physicalBase, logicalBase := len(res.Physical), len(res.Logical)
		for _, a := range sr.Annotations {
			res.Annotations = append(res.Annotations, a.shift(physicalBase, logicalBase))
		}
		res.Physical = append(res.Physical, sr.Lines...)
		res.Logical = append(res.Logical, sr.Paragraphs...)
		res.Words[scan.ID] = sr.Words
		res.Issues = append(res.Issues, sr.Issues...)
		res.Scans = append(res.Scans, ScanInfo{
			PageID:      scan.ID,
			ImageWidth:  scan.ImageWidth,
			ImageHeight: scan.ImageHeight,
			CanvasID:    scan.CanvasID,
			IIIFBase:    scan.IIIFBase,
		})
	}

	if len(res.Scans) == 0 {
		return res, fmt.Errorf("inventory %s: %w", inventory, ErrNoPages)
	}

	SortAnnotations(res.Annotations)
	file := Annotation{
		Type:     TypeFile,
		ID:       inventory,
		Physical: AnchorSpan(0, len(res.Physical)-1),
		Logical:  AnchorSpan(0, len(res.Logical)-1),
		Metadata: map[string]any{
			"inventoryNumber": inventory,
			"pages":           len(res.Scans),
		},
	}
	res.Annotations = append([]Annotation{file}, res.Annotations...)

	logger.Info("inventory untangled",
		zap.Int("pages", len(res.Scans)),
		zap.Int("lines", len(res.Physical)),
		zap.Int("paragraphs", len(res.Logical)),
		zap.Int("annotations", len(res.Annotations)),
		zap.Int("issues", len(res.Issues)),
	)
	return res, nil
}

// SortAnnotations orders annotations by page id, then physical begin
// ascending, then physical length descending, so a container precedes its
// contents
func SortAnnotations(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		a, b := anns[i], anns[j]
		if a.PageID != b.PageID {
			return a.PageID < b.PageID
		}
		if a.Physical.Begin != b.Physical.Begin {
			return a.Physical.Begin < b.Physical.Begin
		}
		if a.Physical.Len() != b.Physical.Len() {
			return a.Physical.Len() > b.Physical.Len()
		}
		return a.Type.rank() < b.Type.rank()
	})
}

// ScanInfo returns the info of one page
func (r *Result) ScanInfo(pageID string) (ScanInfo, bool) {
	for _, s := range r.Scans {
		if s.PageID == pageID {
			return s, true
		}
	}
	return ScanInfo{}, false
}

func (u *InventoryUntangler) logger() *zap.Logger {
	if u.Logger == nil {
		return zap.NewNop()
	}
	return u.Logger
}
