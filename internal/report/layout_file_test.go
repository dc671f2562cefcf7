package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLayoutBaseOverride(t *testing.T) {
	l, err := ParseLayout([]byte(`
base: rapid
name: rapid-lab2
title: Lab 2 Plates
aliases:
  conc_ng_ul: concentration
`))
	if err != nil {
		t.Fatalf("ParseLayout() error = %v", err)
	}
	if l.Name != "rapid-lab2" || l.Title != "Lab 2 Plates" {
		t.Fatalf("unexpected name/title: %q %q", l.Name, l.Title)
	}
	if l.WellColumns[2].Header != "Well Number" {
		t.Fatalf("columns must come from the base layout")
	}
	if got := l.Schema().Canonical("conc_ng_ul"); got != "concentration" {
		t.Fatalf("alias not applied, got %q", got)
	}
	if got := l.Schema().Canonical("sci_name"); got != "scientific_name" {
		t.Fatalf("default aliases must survive, got %q", got)
	}
}

func TestParseLayoutDefaultsKinds(t *testing.T) {
	l, err := ParseLayout([]byte(`
name: minimal
criteria:
  - control: search-family
    field: family
plate_columns:
  - header: Plate ID
    field: plate_id
well_columns:
  - header: Well
    field: well
  - header: Yield
    field: mean_yield
    kind: number
    precision: 1
`))
	if err != nil {
		t.Fatalf("ParseLayout() error = %v", err)
	}
	if l.Criteria[0].Kind != Substring || l.PlateColumns[0].Kind != Text || l.WellColumns[1].Kind != Number {
		t.Fatalf("unexpected kinds: %+v %+v %+v", l.Criteria, l.PlateColumns, l.WellColumns)
	}
	if l.HeaderWidth() != 2 {
		t.Fatalf("expected header width 2, got %d", l.HeaderWidth())
	}
}

func TestParseLayoutErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "unknown base", doc: "base: nope\n", want: "unknown base layout"},
		{name: "missing name", doc: "plate_columns: [{header: A, field: a}]\nwell_columns: [{header: B, field: b}]\n", want: "name is required"},
		{name: "no wells", doc: "name: x\nplate_columns: [{header: A, field: a}]\n", want: "well_columns is empty"},
		{name: "bad kind", doc: "name: x\nplate_columns: [{header: A, field: a, kind: money}]\nwell_columns: [{header: B, field: b}]\n", want: "unknown kind"},
		{name: "duplicate control", doc: "name: x\ncriteria: [{control: c, field: a}, {control: c, field: b}]\nplate_columns: [{header: A, field: a}]\nwell_columns: [{header: B, field: b}]\n", want: "duplicate control"},
		{name: "not yaml", doc: "name: [", want: "parse layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLayout([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout("")
	if err != nil || l.Name != LayoutNitfix {
		t.Fatalf("empty name must give the nitfix layout, got %q %v", l.Name, err)
	}
	if l, err = LoadLayout(" Rapid "); err != nil || l.Name != LayoutRapid {
		t.Fatalf("builtin lookup ignores case, got %q %v", l.Name, err)
	}

	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("base: nitfix\nname: from-file\n"), 0o600); err != nil {
		t.Fatalf("write layout: %v", err)
	}
	if l, err = LoadLayout(path); err != nil || l.Name != "from-file" {
		t.Fatalf("file layout, got %q %v", l.Name, err)
	}

	if _, err := LoadLayout(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestBuiltinLayoutIsACopy(t *testing.T) {
	l, _ := BuiltinLayout(LayoutNitfix)
	l.WellColumns[1].Header = "changed"
	again, _ := BuiltinLayout(LayoutNitfix)
	if again.WellColumns[1].Header != "Well" {
		t.Fatalf("callers must not mutate the built-in layouts")
	}
}
