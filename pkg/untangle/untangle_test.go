package untangle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"github.com/gardar/untangler/pkg/joiner"
	"github.com/gardar/untangler/pkg/pagexml"
)

type mapLoader map[string]*pagexml.Scan

func (m mapLoader) Load(_ context.Context, pageID string) (*pagexml.Scan, error) {
	if pageID == "inv_0666" {
		return nil, fmt.Errorf("%w: inv_0666: no Page element", pagexml.ErrMalformed)
	}
	s, ok := m[pageID]
	if !ok {
		return nil, fmt.Errorf("open %s.xml: %w", pageID, fs.ErrNotExist)
	}
	return s, nil
}

func box(x, y, w, h int) pagexml.Polygon {
	return pagexml.Polygon{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
}

func region(id string, role pagexml.Role, texts ...string) pagexml.TextRegion {
	r := pagexml.TextRegion{ID: id, Role: role, Coords: box(0, 0, 1000, 1000)}
	for i, text := range texts {
		line := pagexml.TextLine{
			ID:     fmt.Sprintf("%s_l%d", id, i+1),
			Coords: box(10, 10+i*50, 900, 40),
			Text:   text,
		}
		for j, w := range strings.Fields(text) {
			line.Words = append(line.Words, pagexml.Word{ID: fmt.Sprintf("%s_w%d", line.ID, j+1), Text: w})
		}
		r.Lines = append(r.Lines, line)
	}
	return r
}

func scan(id string, regions ...pagexml.TextRegion) *pagexml.Scan {
	return &pagexml.Scan{
		ID:          id,
		ImageWidth:  2000,
		ImageHeight: 3000,
		Regions:     regions,
		IIIFBase:    "https://iiif.example.org/iiif/" + id + ".jpg",
		CanvasID:    "https://data.example.org/canvas/" + id,
	}
}

func untangle(t *testing.T, loader mapLoader, pageIDs ...string) *Result {
	t.Helper()
	u := &InventoryUntangler{Loader: loader}
	res, err := u.Untangle(context.Background(), "inv", pageIDs)
	if err != nil {
		t.Fatalf("Untangle failed: %v", err)
	}
	checkInvariants(t, res)
	return res
}

func find(res *Result, typ Type, id string) Annotation {
	for _, a := range res.Annotations {
		if a.Type == typ && a.ID == id {
			return a
		}
	}
	return Annotation{}
}

func count(res *Result, typ Type) int {
	n := 0
	for _, a := range res.Annotations {
		if a.Type == typ {
			n++
		}
	}
	return n
}

func assertSpan(t *testing.T, name string, got TextSpan, begin, end int) {
	t.Helper()
	if got.Begin != begin || got.End != end {
		t.Errorf("%s = [%d,%d], want [%d,%d]", name, got.Begin, got.End, begin, end)
	}
}

func assertSegments(t *testing.T, name string, got []string, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %q, want %q", name, got, want)
	}
}

// checkInvariants verifies the properties that hold for every inventory
func checkInvariants(t *testing.T, res *Result) {
	t.Helper()
	maxPhysical, maxLogical := -1, -1
	for _, a := range res.Annotations {
		if !a.Physical.Valid() || !a.Logical.Valid() {
			t.Errorf("%s %s has an invalid span", a.Type, a.ID)
		}
		maxPhysical = max(maxPhysical, a.Physical.End)
		maxLogical = max(maxLogical, a.Logical.End)
	}
	if len(res.Physical) != maxPhysical+1 {
		t.Errorf("%d physical segments, max anchor %d", len(res.Physical), maxPhysical)
	}
	if len(res.Logical) != maxLogical+1 {
		t.Errorf("%d logical segments, max anchor %d", len(res.Logical), maxLogical)
	}
	if res.Annotations[0].Type != TypeFile {
		t.Errorf("first annotation is %s, want File", res.Annotations[0].Type)
	}

	// Pages cover the physical projection contiguously
	next := 0
	for _, a := range res.Annotations {
		if a.Type != TypePage {
			continue
		}
		if a.Physical.Begin != next {
			t.Errorf("page %s starts at %d, want %d", a.ID, a.Physical.Begin, next)
		}
		next = a.Physical.End + 1
	}
	if next != len(res.Physical) {
		t.Errorf("pages end at %d, want %d", next, len(res.Physical))
	}

	// Lines point at their physical segment and their resolved text
	paragraphs := make(map[int][]joiner.Line)
	for _, a := range res.Annotations {
		if a.Type != TypeTextLine {
			continue
		}
		text := a.Metadata["text"].(string)
		if res.Physical[a.Physical.Begin] != text {
			t.Errorf("line %s: physical segment %q, want %q", a.ID, res.Physical[a.Physical.Begin], text)
		}
		paragraphs[a.Logical.Begin] = append(paragraphs[a.Logical.Begin], joiner.Line{ID: a.ID, Text: text})
	}
	for anchor, lines := range paragraphs {
		if want := joiner.Join(lines).Text; res.Logical[anchor] != want {
			t.Errorf("logical segment %d = %q, want %q", anchor, res.Logical[anchor], want)
		}
	}

	continuing := map[int]bool{}
	for _, a := range res.Annotations {
		if a.Type != TypeTextLine {
			continue
		}
		resolved, broken := joiner.Resolve(a.Metadata["text"].(string), continuing[a.Logical.Begin])
		continuing[a.Logical.Begin] = broken
		segment := []rune(res.Logical[a.Logical.Begin])
		got := string(segment[*a.Logical.CharStart : *a.Logical.CharEnd+1])
		if got != string(resolved) {
			t.Errorf("line %s: logical chars %q, want %q", a.ID, got, string(resolved))
		}
	}
}

// S1
func TestSingleRegionSingleLine(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001", region("r1", pagexml.RoleParagraph, "Hello"))}, "inv_0001")

	assertSegments(t, "physical", res.Physical, "Hello")
	assertSegments(t, "logical", res.Logical, "Hello\n")
	if count(res, TypePage) != 1 || count(res, TypeTextRegion) != 1 || count(res, TypeTextLine) != 1 {
		t.Errorf("unexpected annotation counts in %d annotations", len(res.Annotations))
	}
	line := find(res, TypeTextLine, "r1_l1")
	if *line.Logical.CharStart != 0 || *line.Logical.CharEnd != 4 {
		t.Errorf("line chars = %d..%d, want 0..4", *line.Logical.CharStart, *line.Logical.CharEnd)
	}

	wantOrder := []Type{TypeFile, TypePage, TypeTextRegion, TypeTextLine}
	for i, typ := range wantOrder {
		if res.Annotations[i].Type != typ {
			t.Errorf("annotation %d is %s, want %s", i, res.Annotations[i].Type, typ)
		}
	}
}

// S2
func TestLinesJoinedByBreak(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001", region("r1", pagexml.RoleParagraph, "voor„", "„zetter"))}, "inv_0001")

	assertSegments(t, "physical", res.Physical, "voor„", "„zetter")
	assertSegments(t, "logical", res.Logical, "voorzetter\n")
	l1, l2 := find(res, TypeTextLine, "r1_l1"), find(res, TypeTextLine, "r1_l2")
	if *l1.Logical.CharStart != 0 || *l1.Logical.CharEnd != 3 {
		t.Errorf("line 1 chars = %d..%d, want 0..3", *l1.Logical.CharStart, *l1.Logical.CharEnd)
	}
	if *l2.Logical.CharStart != 4 || *l2.Logical.CharEnd != 9 {
		t.Errorf("line 2 chars = %d..%d, want 4..9", *l2.Logical.CharStart, *l2.Logical.CharEnd)
	}
}

// S3
func TestTwoRegions(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001",
		region("m", pagexml.RoleMarginalia, "nota"),
		region("p", pagexml.RoleParagraph, "corpus"),
	)}, "inv_0001")

	assertSegments(t, "logical", res.Logical, "nota\n", "corpus\n")
	assertSpan(t, "marginalia logical", find(res, TypeTextRegion, "m").Logical, 0, 0)
	assertSpan(t, "paragraph logical", find(res, TypeTextRegion, "p").Logical, 1, 1)
	assertSpan(t, "page logical", find(res, TypePage, "inv_0001").Logical, 0, 1)
	if role := find(res, TypeTextRegion, "m").Metadata["structureType"]; role != "marginalia" {
		t.Errorf("structureType = %v", role)
	}
}

// S4
func TestSkippedRegionTypes(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001",
		region("p", pagexml.RoleParagraph, "de brief", "van heden"),
		region("c", pagexml.RoleCatchWord, "zijn"),
		region("n", pagexml.RolePageNumber, "17"),
		region("s", pagexml.RoleSignatureMark, "A2"),
	)}, "inv_0001")

	assertSegments(t, "physical", res.Physical, "de brief", "van heden", "A2")
	assertSegments(t, "logical", res.Logical, "de brief van heden\n", "A2\n")
	if find(res, TypeTextRegion, "c").ID != "" || find(res, TypeTextRegion, "n").ID != "" {
		t.Error("catch-word and page-number regions must not be annotated")
	}
	page := find(res, TypePage, "inv_0001")
	assertSpan(t, "page physical", page.Physical, 0, 2)
	assertSpan(t, "page logical", page.Logical, 0, 1)
}

// S5
func TestEmptyScan(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001",
		region("c", pagexml.RoleCatchWord, "zijn"),
		region("e", pagexml.RoleParagraph, "", "   "),
	)}, "inv_0001")

	assertSegments(t, "physical", res.Physical, "")
	assertSegments(t, "logical", res.Logical, "")
	page := find(res, TypePage, "inv_0001")
	assertSpan(t, "page physical", page.Physical, 0, 0)
	assertSpan(t, "page logical", page.Logical, 0, 0)
	if count(res, TypeTextRegion) != 0 || count(res, TypeTextLine) != 0 {
		t.Error("empty scan must not produce region or line annotations")
	}
	if len(res.Issues.OfKind(KindEmptyScan)) != 1 {
		t.Errorf("issues = %v, want one EmptyScan", res.Issues)
	}
	if res.Issues.HasErrors() {
		t.Error("an empty scan is not an error")
	}
}

// S6
func TestAnchorContinuity(t *testing.T) {
	res := untangle(t, mapLoader{
		"inv_0001": scan("inv_0001", region("a", pagexml.RoleParagraph, "een", "twee", "drie")),
		"inv_0002": scan("inv_0002", region("b", pagexml.RoleParagraph, "vier", "vijf")),
	}, "inv_0001", "inv_0002")

	pageA, pageB := find(res, TypePage, "inv_0001"), find(res, TypePage, "inv_0002")
	assertSpan(t, "page A physical", pageA.Physical, 0, 2)
	assertSpan(t, "page A logical", pageA.Logical, 0, 0)
	assertSpan(t, "page B physical", pageB.Physical, 3, 4)
	assertSpan(t, "page B logical", pageB.Logical, 1, 1)
	file := res.Annotations[0]
	assertSpan(t, "file physical", file.Physical, 0, 4)
	assertSpan(t, "file logical", file.Logical, 0, 1)

	line := find(res, TypeTextLine, "b_l2")
	assertSpan(t, "line physical", line.Physical, 4, 4)
	if *line.Logical.CharStart != 5 || *line.Logical.CharEnd != 8 {
		t.Errorf("line chars = %d..%d, want 5..8", *line.Logical.CharStart, *line.Logical.CharEnd)
	}
	if len(res.Scans) != 2 || res.Scans[1].IIIFBase == "" {
		t.Errorf("unexpected scans %+v", res.Scans)
	}
}

func TestSkippedPages(t *testing.T) {
	res := untangle(t, mapLoader{
		"inv_0001": scan("inv_0001", region("a", pagexml.RoleParagraph, "een")),
		"inv_0003": scan("inv_0003", region("b", pagexml.RoleParagraph, "drie")),
	}, "inv_0001", "inv_0002", "inv_0666", "inv_0003")

	assertSegments(t, "physical", res.Physical, "een", "drie")
	counts := res.Issues.Count()
	if counts[KindMissingPage] != 1 || counts[KindMalformedPageXML] != 1 {
		t.Errorf("issue counts = %v", counts)
	}
	if !res.Issues.HasErrors() {
		t.Error("skipped pages are errors")
	}
	if res.Annotations[0].Metadata["pages"] != 2 {
		t.Errorf("file pages = %v, want 2", res.Annotations[0].Metadata["pages"])
	}
}

func TestNoPages(t *testing.T) {
	u := &InventoryUntangler{Loader: mapLoader{}}
	res, err := u.Untangle(context.Background(), "inv", []string{"inv_0001"})
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("error = %v, want ErrNoPages", err)
	}
	if len(res.Issues) != 1 || len(res.Annotations) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := &InventoryUntangler{Loader: mapLoader{"inv_0001": scan("inv_0001")}}
	res, err := u.Untangle(ctx, "inv", []string{"inv_0001"})
	if !errors.Is(err, context.Canceled) || res != nil {
		t.Errorf("Untangle = %v, %v; want nil, context.Canceled", res, err)
	}
}

func TestMissingIIIFMapping(t *testing.T) {
	s := scan("inv_0001", region("a", pagexml.RoleParagraph, "een"))
	s.IIIFBase = ""
	res := untangle(t, mapLoader{"inv_0001": s}, "inv_0001")
	if len(res.Issues.OfKind(KindMissingIIIFMapping)) != 1 {
		t.Errorf("issues = %v, want one MissingIiifMapping", res.Issues)
	}
}

type fakeNavigator struct{}

func (fakeNavigator) Neighbours(pageID string) (string, string, error) {
	if pageID == "inv_0002" {
		return "inv_0001", "inv_0003", fmt.Errorf("not in index")
	}
	return "", "inv_0002", nil
}

type fakeLanguages struct{}

func (fakeLanguages) Languages(pageID string) ([]string, bool, bool) {
	if pageID == "inv_0001" {
		return []string{"nl", "la"}, true, true
	}
	return nil, false, false
}

func TestPageMetadata(t *testing.T) {
	s1 := scan("inv_0001", region("a", pagexml.RoleParagraph, "een"))
	s1.Metadata = pagexml.Metadata{Creator: "loghi", Created: "2023", LastChange: "2024", ExternalRef: "ext", InventoryNumber: "inv", PageNumber: "0001"}
	s2 := scan("inv_0002", region("b", pagexml.RoleParagraph, "twee"))

	u := &InventoryUntangler{
		Loader: mapLoader{"inv_0001": s1, "inv_0002": s2},
		Scans:  &ScanUntangler{Navigator: fakeNavigator{}, Languages: fakeLanguages{}},
	}
	res, err := u.Untangle(context.Background(), "inv", []string{"inv_0001", "inv_0002"})
	if err != nil {
		t.Fatalf("Untangle failed: %v", err)
	}

	p1 := find(res, TypePage, "inv_0001").Metadata
	if p1["creator"] != "loghi" || p1["externalRef"] != "ext" || p1["nextPage"] != "inv_0002" {
		t.Errorf("page 1 metadata = %v", p1)
	}
	if _, ok := p1["prevPage"]; ok {
		t.Error("first page must not have a previous page")
	}
	if !reflect.DeepEqual(p1["langs"], []string{"nl", "la"}) || p1["langCorrected"] != true {
		t.Errorf("page 1 languages = %v, %v", p1["langs"], p1["langCorrected"])
	}

	p2 := find(res, TypePage, "inv_0002").Metadata
	if p2["prevPage"] != "inv_0001" || p2["nextPage"] != "inv_0003" {
		t.Errorf("page 2 navigation = %v, %v", p2["prevPage"], p2["nextPage"])
	}
	if _, ok := p2["langs"]; ok {
		t.Error("page 2 has no language entry")
	}
	if len(res.Issues.OfKind(KindMissingNavigation)) != 1 {
		t.Errorf("issues = %v, want one MissingNavigation", res.Issues)
	}
}

func TestWordAlignment(t *testing.T) {
	r := region("a", pagexml.RoleParagraph, "voor„", "„zetter van")
	r.Lines[1].Words = append(r.Lines[1].Words, pagexml.Word{ID: "ghost", Text: "spook"})
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001", r)}, "inv_0001")

	tree := res.Words["inv_0001"]
	if tree == nil || tree.Len() != 3 {
		t.Fatalf("word tree = %+v, want 3 aligned words", tree)
	}
	iv, ok := tree.At(5)
	if !ok || iv.Word.Text != "„zetter" {
		t.Errorf("At(5) = %+v, %v", iv, ok)
	}
	if len(res.Issues.OfKind(KindWordAlignmentLost)) != 1 {
		t.Errorf("issues = %v, want one WordAlignmentLost", res.Issues)
	}
	// The projections are complete despite the lost word
	assertSegments(t, "logical", res.Logical, "voorzetter van\n")
}

func TestZeroWidthLine(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001",
		region("a", pagexml.RoleParagraph, "voor„", "„", "zetter"),
	)}, "inv_0001")

	line := find(res, TypeTextLine, "a_l2")
	if *line.Logical.CharStart != 4 || *line.Logical.CharEnd != 3 {
		t.Errorf("zero width line chars = %d..%d, want 4..3", *line.Logical.CharStart, *line.Logical.CharEnd)
	}
	assertSegments(t, "physical", res.Physical, "voor„", "„", "zetter")
}

func TestDeterministic(t *testing.T) {
	loader := mapLoader{
		"inv_0001": scan("inv_0001", region("a", pagexml.RoleParagraph, "een„", "„twee"), region("m", pagexml.RoleMarginalia, "nota")),
		"inv_0002": scan("inv_0002"),
		"inv_0003": scan("inv_0003", region("b", pagexml.RoleHeader, "Batavia")),
	}
	ids := []string{"inv_0001", "inv_0002", "inv_0003"}
	first := untangle(t, loader, ids...)
	second := untangle(t, loader, ids...)
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same input differ")
	}
}

func TestSegmentedText(t *testing.T) {
	res := untangle(t, mapLoader{"inv_0001": scan("inv_0001", region("a", pagexml.RoleParagraph, "voor„", "„zetter"))}, "inv_0001")

	data, err := res.LogicalText().JSON()
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"_ordered_segments\": [\n    \"voorzetter\\n\"\n  ]\n}"
	if string(data) != want {
		t.Errorf("logical JSON = %s, want %s", data, want)
	}
	if got := res.PhysicalText().OrderedSegments; len(got) != 2 {
		t.Errorf("physical segments = %q", got)
	}
}
