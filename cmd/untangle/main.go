// untangle turns PageXML scans of VOC archive inventories into segmented
// texts and web annotations.
//
// Configuration:
//
// The tool reads a YAML configuration file:
//
//	pagexml_dir: pagexml            # {page_id}.xml files
//	docai_dir: docai                # optional {page_id}.json Document AI output
//	nav_dir: nav                    # optional page_nav_idx_{inventory}.json files
//	langs_tsv: langs.tsv            # optional page languages
//	iiif_mapping_csv: iiif.csv      # optional pagexml_id,iiif_base_url
//	canvas_url_template: https://example.org/{inventory}/canvas/p{page}
//	textrepo_base_url: https://textrepo.example.org
//	generator:
//	  id: https://github.com/gardar/untangler
//	  name: untangler
//	output:
//	  kind: dir                     # dir or sqlite
//	  path: out
//	  compress: false               # xz-compress files in a dir output
//	workers: 4
//	log_mode: dev                   # dev or prod
//
// Usage:
//
//	untangle inventory 1092
//	untangle pages 1092 --from 10 --to 20
//	untangle corpus --workers 8
//	untangle hocr pagexml/NL-HaNA_1.04.02_1092_0017.xml --out page.hocr
//
// Logs go to stderr. The exit code is non-zero when any page could not be
// read or an inventory produced no output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/gardar/untangler/internal/logger"
	"github.com/gardar/untangler/pkg/hocr"
	"github.com/gardar/untangler/pkg/langs"
	"github.com/gardar/untangler/pkg/pagexml"
	"github.com/gardar/untangler/pkg/untangle"
)

// errRecorded makes the process exit non-zero after a summary
var errRecorded = errors.New("errors were recorded")

// Globals are flags shared by all commands
type Globals struct {
	Config    string `short:"c" default:"untangle.yml" help:"Path to the config YAML file" type:"path"`
	LogMode   string `name:"log-mode" help:"Log output: dev or prod (overrides log_mode)"`
	Verbose   bool   `short:"v" help:"Enable debug logging"`
	Generated string `help:"Timestamp (RFC3339) written into every annotation; defaults to now"`
	Output    string `help:"Output directory or database (overrides output.path)" type:"path"`
}

// CLI defines the command-line interface
var CLI struct {
	Globals

	Inventory InventoryCmd `cmd:"" help:"Untangle all pages of one inventory"`
	Pages     PagesCmd     `cmd:"" help:"Untangle a page range of one inventory"`
	Corpus    CorpusCmd    `cmd:"" help:"Untangle every inventory found in pagexml_dir"`
	Hocr      HocrCmd      `cmd:"" help:"Export PageXML files as one hOCR document"`
}

// InventoryCmd untangles one inventory
type InventoryCmd struct {
	Inventory string `arg:"" help:"Inventory number"`
}

func (c *InventoryCmd) Run(g *Globals) error {
	return run(g, func(ctx context.Context, a *app, stats *runStats) error {
		pageIDs, err := a.loader.PageIDs(c.Inventory)
		if err != nil {
			return err
		}
		return a.processInventory(ctx, c.Inventory, pageIDs, stats)
	})
}

// PagesCmd untangles a page range as if it were a whole inventory
type PagesCmd struct {
	Inventory string `arg:"" help:"Inventory number"`
	From      int    `default:"0" help:"First page number"`
	To        int    `required:"" help:"Last page number (inclusive)"`
}

func (c *PagesCmd) Run(g *Globals) error {
	return run(g, func(ctx context.Context, a *app, stats *runStats) error {
		pageIDs, err := a.loader.PageRange(c.Inventory, c.From, c.To)
		if err != nil {
			return err
		}
		return a.processInventory(ctx, c.Inventory, pageIDs, stats)
	})
}

// CorpusCmd untangles every inventory
type CorpusCmd struct {
	Workers int `help:"Inventories processed in parallel (overrides workers)"`
}

func (c *CorpusCmd) Run(g *Globals) error {
	return run(g, func(ctx context.Context, a *app, stats *runStats) error {
		if c.Workers > 0 {
			a.cfg.Workers = c.Workers
		}
		inventories, err := a.loader.Inventories()
		if err != nil {
			return err
		}
		a.logger.Info("processing corpus", zap.Int("inventories", len(inventories)), zap.Int("workers", a.cfg.Workers))
		return a.processCorpus(ctx, inventories, stats)
	})
}

// HocrCmd exports scans as hOCR
type HocrCmd struct {
	Files []string `arg:"" help:"PageXML files" type:"existingfile"`
	Title string   `help:"Document title"`
	Langs string   `help:"Language table (TSV) for page languages" type:"existingfile"`
	Out   string   `short:"o" help:"Output file; stdout when empty" type:"path"`
}

func (c *HocrCmd) Run(g *Globals) error {
	var scans []*pagexml.Scan
	for _, f := range c.Files {
		s, err := pagexml.Parse(f)
		if err != nil {
			return err
		}
		scans = append(scans, s)
	}

	var lookup hocr.LanguageLookup
	if c.Langs != "" {
		table, err := langs.Load(c.Langs)
		if err != nil {
			return err
		}
		lookup = func(pageID string) []string {
			e, _ := table.Lookup(pageID)
			return e.Langs
		}
	}

	doc := hocr.FromScans(c.Title, scans, lookup)
	if c.Out == "" {
		return hocr.Render(os.Stdout, doc)
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := hocr.Render(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// run sets up logging, config and output around a processing step, then
// prints the summary
func run(g *Globals, step func(context.Context, *app, *runStats) error) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if g.Output != "" {
		cfg.Output.Path = g.Output
	}
	mode := cfg.LogMode
	if g.LogMode != "" {
		mode = g.LogMode
	}
	log, err := logger.New(mode, g.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	generated, err := parseGenerated(g.Generated)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, generated)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats := &runStats{}
	start := time.Now()
	if err := step(ctx, a, stats); err != nil {
		return err
	}
	printSummary(os.Stdout, stats, time.Since(start))

	if stats.issues.HasErrors() || len(stats.failed) > 0 {
		return errRecorded
	}
	return nil
}

func parseGenerated(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --generated: %w", err)
	}
	return t, nil
}

// printSummary reports totals and issue counts per kind
func printSummary(w io.Writer, s *runStats, took time.Duration) {
	fmt.Fprintf(w, "inventories: %s, pages: %s, lines: %s, paragraphs: %s, annotations: %s\n",
		humanize.Comma(int64(s.inventories)),
		humanize.Comma(int64(s.pages)),
		humanize.Comma(int64(s.lines)),
		humanize.Comma(int64(s.paragraphs)),
		humanize.Comma(int64(s.annotations)))
	fmt.Fprintf(w, "written: %s in %s\n", humanize.Bytes(s.bytes), took.Round(time.Millisecond))

	counts := s.issues.Count()
	kinds := make([]untangle.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		severity := "warning"
		if k.IsError() {
			severity = "error"
		}
		fmt.Fprintf(w, "%-20s %-8s %s\n", k, severity, humanize.Comma(int64(counts[k])))
	}
	for _, inv := range s.failed {
		fmt.Fprintf(w, "inventory %s produced no output\n", inv)
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("untangle"),
		kong.Description("Untangle PageXML scans into segmented texts and web annotations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
