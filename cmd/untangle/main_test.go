package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gardar/untangler/pkg/untangle"
)

const testPage = `<?xml version="1.0" encoding="UTF-8"?>
<PcGts xmlns="http://schema.primaresearch.org/PAGE/gts/pagecontent/2013-07-15">
  <Metadata><Creator>test</Creator></Metadata>
  <Page imageFilename="scan.jpg" imageWidth="1000" imageHeight="2000">
    <TextRegion id="r1" custom="structure {type:paragraph;}">
      <Coords points="10,10 900,10 900,300 10,300"/>
      <TextLine id="r1l1">
        <Coords points="10,10 900,10 900,50 10,50"/>
        <Word id="w1"><Coords points="10,10 200,10 200,50 10,50"/><TextEquiv><Unicode>voor„</Unicode></TextEquiv></Word>
        <TextEquiv><Unicode>voor„</Unicode></TextEquiv>
      </TextLine>
      <TextLine id="r1l2">
        <Coords points="10,60 900,60 900,100 10,100"/>
        <Word id="w2"><Coords points="10,60 200,60 200,100 10,100"/><TextEquiv><Unicode>„zetter</Unicode></TextEquiv></Word>
        <TextEquiv><Unicode>„zetter</Unicode></TextEquiv>
      </TextLine>
    </TextRegion>
  </Page>
</PcGts>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeFixture(t *testing.T, outputKind string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range []string{"NL-HaNA_1.04.02_1092_0001", "NL-HaNA_1.04.02_1092_0002", "NL-HaNA_1.04.02_1093_0001"} {
		writeFile(t, filepath.Join(dir, "pagexml", id+".xml"), testPage)
	}
	writeFile(t, filepath.Join(dir, "pagexml", "NL-HaNA_1.04.02_1092_0003.xml"), "<PcGts><Page></PcGts>")
	writeFile(t, filepath.Join(dir, "iiif.csv"),
		"pagexml_id,iiif_base_url\nNL-HaNA_1.04.02_1092_0001,https://iiif.example.org/iiif/1092_0001.jpg\n")
	writeFile(t, filepath.Join(dir, "langs.tsv"), "inv_nr\tpage_no\tlangs\tcorrected\n1092\t1\tnl\t1\n")
	writeFile(t, filepath.Join(dir, "nav", "page_nav_idx_1092.json"),
		`{"NL-HaNA_1.04.02_1092_0001": {"next": "NL-HaNA_1.04.02_1092_0002"}}`)
	writeFile(t, filepath.Join(dir, "untangle.yml"), `
pagexml_dir: pagexml
nav_dir: nav
langs_tsv: langs.tsv
iiif_mapping_csv: iiif.csv
canvas_url_template: https://data.example.org/{inventory}/canvas/p{page}
textrepo_base_url: https://textrepo.example.org
generator:
  id: https://github.com/gardar/untangler
output:
  kind: `+outputKind+`
  path: out
workers: 2
`)
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeFixture(t, "dir")
	cfg, err := loadConfig(filepath.Join(dir, "untangle.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageXMLDir != filepath.Join(dir, "pagexml") || cfg.Output.Path != filepath.Join(dir, "out") {
		t.Errorf("paths not resolved: %s %s", cfg.PageXMLDir, cfg.Output.Path)
	}
	if cfg.Generator.Name != "untangler" || cfg.Workers != 2 {
		t.Errorf("defaults: %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.yml")
	writeFile(t, bad, "output:\n  kind: s3\n")
	_, err = loadConfig(bad)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"pagexml_dir", "textrepo_base_url", "output.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func newTestApp(t *testing.T, outputKind string) *app {
	t.Helper()
	dir := writeFixture(t, outputKind)
	cfg, err := loadConfig(filepath.Join(dir, "untangle.yml"))
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(cfg, zap.NewNop(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestProcessInventory(t *testing.T) {
	a := newTestApp(t, "dir")
	ctx := context.Background()
	stats := &runStats{}

	pageIDs, err := a.loader.PageIDs("1092")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.processInventory(ctx, "1092", pageIDs, stats); err != nil {
		t.Fatal(err)
	}
	if stats.inventories != 1 || stats.pages != 2 || stats.lines != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if n := len(stats.issues.OfKind(untangle.KindMalformedPageXML)); n != 1 {
		t.Errorf("%d malformed pages, want 1", n)
	}

	logical, err := a.sink.Fetch(ctx, "1092/logical_segmented_text.json")
	if err != nil {
		t.Fatal(err)
	}
	var text untangle.SegmentedText
	if err := json.Unmarshal(logical, &text); err != nil {
		t.Fatal(err)
	}
	if len(text.OrderedSegments) != 2 || text.OrderedSegments[0] != "voorzetter\n" {
		t.Errorf("logical segments = %q", text.OrderedSegments)
	}

	pages, err := a.sink.Fetch(ctx, "1092/web_annotations_px_page.json")
	if err != nil {
		t.Fatal(err)
	}
	var anns []map[string]any
	if err := json.Unmarshal(pages, &anns); err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 {
		t.Fatalf("%d page annotations, want 2", len(anns))
	}
	meta := anns[0]["body"].(map[string]any)["metadata"].(map[string]any)
	if meta["nextPage"] != "urn:globalise:NL-HaNA_1.04.02_1092_0002" || meta["langCorrected"] != true {
		t.Errorf("page metadata = %v", meta)
	}
	if anns[0]["generated"] != "2024-03-01T00:00:00Z" {
		t.Errorf("generated = %v", anns[0]["generated"])
	}
}

func TestProcessCorpus(t *testing.T) {
	for _, kind := range []string{"dir", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			a := newTestApp(t, kind)
			stats := &runStats{}
			inventories, err := a.loader.Inventories()
			if err != nil {
				t.Fatal(err)
			}
			if err := a.processCorpus(context.Background(), inventories, stats); err != nil {
				t.Fatal(err)
			}
			if stats.inventories != 2 || stats.pages != 3 {
				t.Errorf("stats = %+v", stats)
			}
			for _, id := range []string{"1092/web_annotations_na_file.json", "1093/physical_segmented_text.json"} {
				if _, err := a.sink.Fetch(context.Background(), id); err != nil {
					t.Errorf("Fetch(%s): %v", id, err)
				}
			}
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	a := newTestApp(t, "dir")
	ctx := context.Background()
	pageIDs, _ := a.loader.PageIDs("1093")

	var outputs [2][]byte
	for i := range outputs {
		if err := a.processInventory(ctx, "1093", pageIDs, &runStats{}); err != nil {
			t.Fatal(err)
		}
		data, err := a.sink.Fetch(ctx, "1093/web_annotations_px_textline.json")
		if err != nil {
			t.Fatal(err)
		}
		outputs[i] = data
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two runs produced different annotations")
	}
}

func TestNoPagesRecorded(t *testing.T) {
	a := newTestApp(t, "dir")
	stats := &runStats{}
	if err := a.processInventory(context.Background(), "9999", []string{"NL-HaNA_1.04.02_9999_0001"}, stats); err != nil {
		t.Fatal(err)
	}
	if len(stats.failed) != 1 || !stats.issues.HasErrors() {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPrintSummary(t *testing.T) {
	stats := &runStats{
		inventories: 1,
		pages:       1200,
		bytes:       2048,
		issues: untangle.Issues{
			{Kind: untangle.KindEmptyScan},
			{Kind: untangle.KindMissingPage},
			{Kind: untangle.KindEmptyScan},
		},
		failed: []string{"9999"},
	}
	var buf bytes.Buffer
	printSummary(&buf, stats, time.Second)
	out := buf.String()
	for _, want := range []string{"pages: 1,200", "2.0 kB", "EmptyScan", "warning  2", "MissingPage", "error    1", "inventory 9999"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
}

func TestParseGenerated(t *testing.T) {
	if _, err := parseGenerated("yesterday"); err == nil {
		t.Error("expected an error")
	}
	got, err := parseGenerated("2024-03-01T12:00:00Z")
	if err != nil || !got.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("parseGenerated = %v, %v", got, err)
	}
}
