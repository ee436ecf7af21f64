package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gardar/untangler/pkg/iiif"
	"github.com/gardar/untangler/pkg/langs"
	"github.com/gardar/untangler/pkg/navigation"
	"github.com/gardar/untangler/pkg/store"
	"github.com/gardar/untangler/pkg/untangle"
	"github.com/gardar/untangler/pkg/webanno"
)

// app holds what every inventory run shares
type app struct {
	cfg       *config
	logger    *zap.Logger
	loader    *untangle.DirLoader
	langs     *langs.Table
	sink      store.Sink
	generated time.Time
}

func newApp(cfg *config, logger *zap.Logger, generated time.Time) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		generated: generated,
		loader: &untangle.DirLoader{
			PageXMLDir: cfg.PageXMLDir,
			DocAIDir:   cfg.DocAIDir,
			Canvases:   iiif.Canvases{Template: cfg.CanvasURLTemplate},
		},
	}

	if cfg.IIIFMappingCSV != "" {
		m, err := iiif.LoadMapping(cfg.IIIFMappingCSV)
		if err != nil {
			return nil, fmt.Errorf("loading IIIF mapping: %w", err)
		}
		a.loader.Images = m
		logger.Info("loaded IIIF mapping", zap.Int("pages", m.Len()))
	}

	if cfg.LangsTSV != "" {
		t, err := langs.Load(cfg.LangsTSV)
		if err != nil {
			return nil, fmt.Errorf("loading language table: %w", err)
		}
		a.langs = t
		logger.Info("loaded language table", zap.Int("pages", t.Len()))
	}

	var err error
	switch cfg.Output.Kind {
	case "sqlite":
		a.sink, err = store.NewSQLiteSink(cfg.Output.Path)
	default:
		a.sink, err = store.NewDirSink(cfg.Output.Path, cfg.Output.Compress)
	}
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.sink.Close()
}

// newUntangler gives every inventory run its own untangler state
func (a *app) newUntangler(logger *zap.Logger) (*untangle.InventoryUntangler, error) {
	scans := &untangle.ScanUntangler{Logger: logger}
	if a.cfg.NavDir != "" {
		nav, err := navigation.New(a.cfg.NavDir, navigation.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		scans.Navigator = nav
	}
	if a.langs != nil {
		scans.Languages = a.langs
	}
	return &untangle.InventoryUntangler{Loader: a.loader, Scans: scans, Logger: logger}, nil
}

// runStats is what a run reports at the end
type runStats struct {
	mu          sync.Mutex
	inventories int
	pages       int
	lines       int
	paragraphs  int
	annotations int
	bytes       uint64
	issues      untangle.Issues
	failed      []string // Inventories without output
}

func (s *runStats) add(res *untangle.Result, written uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventories++
	s.pages += len(res.Scans)
	s.lines += len(res.Physical)
	s.paragraphs += len(res.Logical)
	s.annotations += len(res.Annotations)
	s.bytes += written
	s.issues = append(s.issues, res.Issues...)
}

func (s *runStats) fail(inventory string, issues untangle.Issues) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, inventory)
	s.issues = append(s.issues, issues...)
}

// processInventory untangles one inventory and stores its outputs.
// An inventory without a single readable page is recorded, not returned.
func (a *app) processInventory(ctx context.Context, inventory string, pageIDs []string, stats *runStats) error {
	logger := a.logger.With(zap.String("inventory", inventory))
	u, err := a.newUntangler(logger)
	if err != nil {
		return err
	}

	res, err := u.Untangle(ctx, inventory, pageIDs)
	if errors.Is(err, untangle.ErrNoPages) {
		logger.Error("no pages could be read", zap.Int("requested", len(pageIDs)))
		stats.fail(inventory, res.Issues)
		return nil
	}
	if err != nil {
		return err
	}

	written, err := a.write(ctx, res)
	if err != nil {
		return fmt.Errorf("inventory %s: %w", inventory, err)
	}
	stats.add(res, written)
	return nil
}

type payload struct {
	name string
	data []byte
}

// write stores both projections and the grouped web annotations
func (a *app) write(ctx context.Context, res *untangle.Result) (uint64, error) {
	physical, err := res.PhysicalText().JSON()
	if err != nil {
		return 0, err
	}
	logical, err := res.LogicalText().JSON()
	if err != nil {
		return 0, err
	}

	builder := webanno.NewBuilder(webanno.Config{
		TextRepoBaseURL:   a.cfg.TextRepoBaseURL,
		PhysicalVersionID: store.VersionID(physical),
		LogicalVersionID:  store.VersionID(logical),
		Generator:         a.cfg.Generator,
		Generated:         a.generated,
	}, res)
	groups, err := builder.Build()
	if err != nil {
		return 0, err
	}

	payloads := []payload{
		{"physical_segmented_text.json", physical},
		{"logical_segmented_text.json", logical},
	}
	for _, g := range webanno.Groups {
		data, err := webanno.Marshal(groups[g])
		if err != nil {
			return 0, fmt.Errorf("encoding %s: %w", g, err)
		}
		payloads = append(payloads, payload{fmt.Sprintf("web_annotations_%s.json", g), data})
	}

	var written uint64
	for _, p := range payloads {
		if err := a.sink.Store(ctx, res.Inventory+"/"+p.name, p.data); err != nil {
			return written, err
		}
		written += uint64(len(p.data))
	}
	a.logger.Debug("stored inventory", zap.String("inventory", res.Inventory), zap.Uint64("bytes", written))
	return written, nil
}

// processCorpus runs inventories in parallel, each with its own untangler
func (a *app) processCorpus(ctx context.Context, inventories []string, stats *runStats) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, inv := range inventories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pageIDs, err := a.loader.PageIDs(inv)
			if err != nil {
				return err
			}
			return a.processInventory(gctx, inv, pageIDs, stats)
		})
	}
	return g.Wait()
}
