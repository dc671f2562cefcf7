package report

import (
	"testing"

	"go-sample-plates-report/internal/platedata"
)

func fixtureDataset() *platedata.Dataset {
	return &platedata.Dataset{
		Plates: []platedata.Plate{
			{PlateID: "P1", EntryDate: "2018-01-05", LocalID: "L1", Protocol: "R1", Notes: "first"},
			{PlateID: "P2", EntryDate: "2018-01-06", LocalID: "L2"},
			{PlateID: "P3", EntryDate: "2018-01-07", LocalID: "L3"},
		},
		Wells: map[string][]platedata.Well{
			"P1": {
				{PlateID: "P1", Well: "A01", SampleID: "S-100", ScientificName: "Acacia farnesiana", Family: "Fabaceae", SourcePlate: "SP1", Concentration: "2.5", TotalDNA: "40", SeqReturned: true},
				{PlateID: "P1", Well: "A02", SampleID: "S-101", ScientificName: "Quercus alba", Family: "Fagaceae", SourcePlate: "SP1", Concentration: "", TotalDNA: "abc"},
			},
			"P2": {
				{PlateID: "P2", Well: "A01", SampleID: "S-200", ScientificName: "Rosa canina", Family: "Rosaceae", SourcePlate: "SP2"},
			},
			"P3": {
				{PlateID: "P3", Well: "A01", SampleID: "S-300", ScientificName: "Acacia dealbata", Family: "Fabaceae", SourcePlate: "SP3", Concentration: "1.25"},
				{PlateID: "P3", Well: "B01", SampleID: "S-301", ScientificName: "Mimosa pudica", Family: "Fabaceae", SourcePlate: "SP3"},
			},
		},
	}
}

func nitfixLayout(t *testing.T) Layout {
	t.Helper()
	l, ok := BuiltinLayout(LayoutNitfix)
	if !ok {
		t.Fatalf("nitfix layout missing")
	}
	return l
}

func TestMatchesCriteria(t *testing.T) {
	defs := nitfixLayout(t).Criteria
	well := platedata.Well{
		ScientificName: "Acacia farnesiana",
		Family:         "Fabaceae",
		SampleID:       "S-100",
		SourcePlate:    "SP1",
		Concentration:  "2.5",
		SeqReturned:    true,
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{name: "no criteria", criteria: NewCriteria(), want: true},
		{name: "substring ignores case", criteria: NewCriteria().WithText("search-sci-name", "ACACIA"), want: true},
		{name: "substring miss", criteria: NewCriteria().WithText("search-family", "rosa"), want: false},
		{name: "flag set", criteria: NewCriteria().WithChecked("search-seq-returned", true), want: true},
		{name: "unchecked flag imposes nothing", criteria: NewCriteria().WithChecked("search-sent-to-rapid", false), want: true},
		{
			name: "all criteria",
			criteria: NewCriteria().
				WithText("search-sci-name", "farn").
				WithText("search-family", "fab").
				WithText("search-sample-id", "s-1").
				WithText("search-source-plate", "sp").
				WithChecked("search-sent-to-rapid", true).
				WithChecked("search-seq-returned", true),
			want: true,
		},
		{
			name: "all criteria but one fails",
			criteria: NewCriteria().
				WithText("search-sci-name", "farn").
				WithText("search-family", "fab").
				WithText("search-sample-id", "s-2"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesCriteria(well, defs, tt.criteria); got != tt.want {
				t.Fatalf("MatchesCriteria() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlagCriterionNeedsTruthyField(t *testing.T) {
	defs := nitfixLayout(t).Criteria
	c := NewCriteria().WithChecked("search-sent-to-rapid", true)

	for raw, want := range map[string]bool{"": false, "0": false, "2.5": true, "abc": true} {
		w := platedata.Well{Concentration: raw}
		if got := MatchesCriteria(w, defs, c); got != want {
			t.Fatalf("concentration %q: got %v, want %v", raw, got, want)
		}
	}
}

func TestFilterWellsPreservesOrder(t *testing.T) {
	ds := fixtureDataset()
	defs := nitfixLayout(t).Criteria

	got := FilterWells(ds, ds.Plates[2], defs, NewCriteria().WithText("search-family", "fabaceae"))
	if len(got) != 2 || got[0].Well != "A01" || got[1].Well != "B01" {
		t.Fatalf("unexpected wells: %+v", got)
	}
}

func TestFilterPlatesDropsPlatesWithoutMatches(t *testing.T) {
	ds := fixtureDataset()
	defs := nitfixLayout(t).Criteria

	got := FilterPlates(ds, defs, NewCriteria().WithText("search-sci-name", "farnesiana"))
	if len(got) != 1 || got[0].PlateID != "P1" {
		t.Fatalf("expected only P1, got %+v", got)
	}

	got = FilterPlates(ds, defs, NewCriteria().WithText("search-family", "fabaceae"))
	if len(got) != 2 || got[0].PlateID != "P1" || got[1].PlateID != "P3" {
		t.Fatalf("expected P1, P3 in source order, got %+v", got)
	}

	if got := FilterPlates(ds, defs, NewCriteria()); len(got) != 3 {
		t.Fatalf("expected all plates without criteria, got %d", len(got))
	}
}

func TestCriteriaCleared(t *testing.T) {
	c := NewCriteria().WithText("search-family", "fab").WithChecked("search-seq-returned", true)
	c = c.Cleared("search-family")
	if _, ok := c.Text["search-family"]; ok {
		t.Fatalf("expected search-family cleared")
	}
	if !c.Checked["search-seq-returned"] {
		t.Fatalf("expected other controls untouched")
	}
}
