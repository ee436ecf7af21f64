package navigation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gardar/untangler/pkg/pagexml"
)

func writeIndex(t *testing.T, dir, inventory, content string) {
	t.Helper()
	path := filepath.Join(dir, "page_nav_idx_"+inventory+".json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNeighbours(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "1092", `{
		"NL-HaNA_1.04.02_1092_0001": {"next": "NL-HaNA_1.04.02_1092_0003"},
		"NL-HaNA_1.04.02_1092_0003": {"prev": "NL-HaNA_1.04.02_1092_0001", "next": "NL-HaNA_1.04.02_1092_0004"}
	}`)
	writeIndex(t, dir, "1093", `{"NL-HaNA_1.04.02_1093_0001": {"next": "NL-HaNA_1.04.02_1093_0002"}}`)
	writeIndex(t, dir, "1094", `not json`)

	p, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		pageID   string
		prev     string
		next     string
		deduced  bool
		wantsErr bool
	}{
		{name: "first page", pageID: "NL-HaNA_1.04.02_1092_0001", next: "NL-HaNA_1.04.02_1092_0003"},
		{name: "indexed gap", pageID: "NL-HaNA_1.04.02_1092_0003", prev: "NL-HaNA_1.04.02_1092_0001", next: "NL-HaNA_1.04.02_1092_0004"},
		{name: "deduced", pageID: "NL-HaNA_1.04.02_1092_0010", prev: "NL-HaNA_1.04.02_1092_0009", next: "NL-HaNA_1.04.02_1092_0011", deduced: true},
		{name: "other inventory", pageID: "NL-HaNA_1.04.02_1093_0001", next: "NL-HaNA_1.04.02_1093_0002"},
		{name: "back to first inventory", pageID: "NL-HaNA_1.04.02_1092_0001", next: "NL-HaNA_1.04.02_1092_0003"},
		{name: "page zero", pageID: "NL-HaNA_1.04.02_1093_0000", next: "NL-HaNA_1.04.02_1093_0001", deduced: true},
		{name: "no index", pageID: "NL-HaNA_1.04.02_2000_0100", prev: "NL-HaNA_1.04.02_2000_0099", next: "NL-HaNA_1.04.02_2000_0101", wantsErr: true},
		{name: "broken index", pageID: "NL-HaNA_1.04.02_1094_0002", prev: "NL-HaNA_1.04.02_1094_0001", next: "NL-HaNA_1.04.02_1094_0003", wantsErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, next, err := p.Neighbours(tt.pageID)
			if prev != tt.prev || next != tt.next {
				t.Errorf("Neighbours(%s) = %q, %q; want %q, %q", tt.pageID, prev, next, tt.prev, tt.next)
			}
			switch {
			case tt.deduced && !errors.Is(err, ErrNotIndexed):
				t.Errorf("error = %v, want ErrNotIndexed", err)
			case tt.wantsErr && err == nil:
				t.Error("expected an error")
			case !tt.deduced && !tt.wantsErr && err != nil:
				t.Errorf("unexpected error %v", err)
			}
		})
	}

	if n := p.indices.Len(); n > CachedInventories {
		t.Errorf("%d indices cached, want at most %d", n, CachedInventories)
	}
}

func TestNeighboursInvalidPageID(t *testing.T) {
	p, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.Neighbours("not-a-page"); err == nil {
		t.Error("expected an error for an invalid page id")
	}
}

func TestDeduce(t *testing.T) {
	pid, err := pagexml.ParsePageID("NL-HaNA_1.04.02_1092_0100")
	if err != nil {
		t.Fatal(err)
	}
	prev, next := Deduce(pid)
	if prev != "NL-HaNA_1.04.02_1092_0099" || next != "NL-HaNA_1.04.02_1092_0101" {
		t.Errorf("Deduce = %s, %s", prev, next)
	}
}
