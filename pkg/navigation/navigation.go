// Package navigation resolves the previous and next page of a scan from
// precomputed per-inventory indices named page_nav_idx_{inventory}.json.
package navigation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/gardar/untangler/pkg/pagexml"
)

// CachedInventories is how many inventory indices are kept in memory
const CachedInventories = 2

// ErrNotIndexed is returned alongside deduced neighbours
var ErrNotIndexed = errors.New("page not in navigation index")

// Record holds the neighbours of one page as bare page ids
type Record struct {
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

// Index maps page ids to their neighbours
type Index map[string]Record

// Provider looks up page neighbours, loading inventory indices lazily
type Provider struct {
	dir     string
	indices *lru.Cache[string, Index]
	logger  *zap.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the logger used for index loading
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a provider reading indices from dir
func New(dir string, opts ...Option) (*Provider, error) {
	cache, err := lru.New[string, Index](CachedInventories)
	if err != nil {
		return nil, fmt.Errorf("creating index cache: %w", err)
	}
	p := &Provider{dir: dir, indices: cache, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IndexPath is where the index of an inventory is read from
func (p *Provider) IndexPath(inventory string) string {
	return filepath.Join(p.dir, fmt.Sprintf("page_nav_idx_%s.json", inventory))
}

// Neighbours returns the previous and next page of pageID. Pages missing
// from their inventory's index get neighbours deduced from the page number;
// the error then tells why the index could not answer.
func (p *Provider) Neighbours(pageID string) (prev, next string, err error) {
	pid, err := pagexml.ParsePageID(pageID)
	if err != nil {
		return "", "", err
	}

	idx, err := p.index(pid.Inventory)
	if err == nil {
		if rec, ok := idx[pageID]; ok {
			return rec.Prev, rec.Next, nil
		}
		err = fmt.Errorf("%w: %s", ErrNotIndexed, pageID)
	}

	prev, next = Deduce(pid)
	return prev, next, err
}

// Deduce guesses the neighbours of a page from its number. Page 0 has no
// previous page.
func Deduce(pid pagexml.PageID) (prev, next string) {
	n := pid.PageNumber()
	if n > 0 {
		prev = pid.WithPage(n - 1).String()
	}
	return prev, pid.WithPage(n + 1).String()
}

// index returns the cached index of an inventory, loading it on a miss
func (p *Provider) index(inventory string) (Index, error) {
	if idx, ok := p.indices.Get(inventory); ok {
		return idx, nil
	}

	path := p.IndexPath(inventory)
	idx, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("no navigation index", zap.String("inventory", inventory))
			// Cache the miss so every page does not retry the file
			p.indices.Add(inventory, Index{})
		}
		return nil, err
	}
	p.logger.Debug("loaded navigation index", zap.String("inventory", inventory), zap.Int("pages", len(idx)))
	p.indices.Add(inventory, idx)
	return idx, nil
}

// Load reads one navigation index file
func Load(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return idx, nil
}
