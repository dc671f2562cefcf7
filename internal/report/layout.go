package report

import (
	"fmt"
	"sort"
	"strings"

	"go-sample-plates-report/internal/platedata"
)

// ColumnKind controls how a cell value is formatted.
type ColumnKind string

const (
	Text   ColumnKind = "text"
	Number ColumnKind = "number"
	YesNo  ColumnKind = "yes"
	Blank  ColumnKind = "blank"
)

// Column describes one table column: its heading and how to fill its cells.
type Column struct {
	Header      string     `json:"header" yaml:"header"`
	Field       string     `json:"field,omitempty" yaml:"field"`
	Kind        ColumnKind `json:"kind" yaml:"kind"`
	Precision   int        `json:"precision,omitempty" yaml:"precision"`
	Class       string     `json:"class,omitempty" yaml:"class"`
	HeaderClass string     `json:"header_class,omitempty" yaml:"header_class"`
}

// Layout is one report variant: which controls filter the wells and which
// columns the plate and well rows show.
type Layout struct {
	Name         string            `json:"name" yaml:"name"`
	Title        string            `json:"title" yaml:"title"`
	Criteria     []Criterion       `json:"criteria" yaml:"criteria"`
	PlateColumns []Column          `json:"plate_columns" yaml:"plate_columns"`
	WellColumns  []Column          `json:"well_columns" yaml:"well_columns"`
	Aliases      map[string]string `json:"aliases,omitempty" yaml:"aliases"`
}

// Schema returns the field-name mapping for data fed to this layout.
func (l Layout) Schema() platedata.Schema {
	return platedata.DefaultSchema().Merge(l.Aliases)
}

// HeaderWidth is the cell count of the plate header row, padded to line up
// with the well rows beneath it.
func (l Layout) HeaderWidth() int {
	if len(l.WellColumns) > len(l.PlateColumns) {
		return len(l.WellColumns)
	}
	return len(l.PlateColumns)
}

// Criterion returns the definition bound to a control id.
func (l Layout) Criterion(control string) (Criterion, bool) {
	for _, c := range l.Criteria {
		if c.Control == control {
			return c, true
		}
	}
	return Criterion{}, false
}

// Validate checks a layout loaded from outside the binary.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("layout name is required")
	}
	if len(l.PlateColumns) == 0 {
		return fmt.Errorf("layout %s: plate_columns is empty", l.Name)
	}
	if len(l.WellColumns) == 0 {
		return fmt.Errorf("layout %s: well_columns is empty", l.Name)
	}
	seen := map[string]struct{}{}
	for _, c := range l.Criteria {
		if c.Control == "" || c.Field == "" {
			return fmt.Errorf("layout %s: criterion needs control and field", l.Name)
		}
		if c.Kind != Substring && c.Kind != Flag {
			return fmt.Errorf("layout %s: criterion %s has unknown kind %q", l.Name, c.Control, c.Kind)
		}
		if _, ok := seen[c.Control]; ok {
			return fmt.Errorf("layout %s: duplicate control %s", l.Name, c.Control)
		}
		seen[c.Control] = struct{}{}
	}
	for _, cols := range [][]Column{l.PlateColumns, l.WellColumns} {
		for _, col := range cols {
			switch col.Kind {
			case Text, Number, YesNo:
				if col.Field == "" {
					return fmt.Errorf("layout %s: column %q needs a field", l.Name, col.Header)
				}
			case Blank:
			default:
				return fmt.Errorf("layout %s: column %q has unknown kind %q", l.Name, col.Header, col.Kind)
			}
		}
	}
	return nil
}

// Built-in variant names.
const (
	LayoutNitfix = "nitfix"
	LayoutRapid  = "rapid"
)

var builtinLayouts = map[string]Layout{
	LayoutNitfix: {
		Name:  LayoutNitfix,
		Title: "Sample Plates Report",
		Criteria: []Criterion{
			{Control: "search-sci-name", Label: "Scientific Name", Field: platedata.FieldScientificName, Kind: Substring},
			{Control: "search-family", Label: "Family", Field: platedata.FieldFamily, Kind: Substring},
			{Control: "search-sample-id", Label: "Sample ID", Field: platedata.FieldSampleID, Kind: Substring},
			{Control: "search-source-plate", Label: "Source Plate", Field: platedata.FieldSourcePlate, Kind: Substring},
			{Control: "search-sent-to-rapid", Label: "Sent to Rapid", Field: platedata.FieldConcentration, Kind: Flag},
			{Control: "search-seq-returned", Label: "Sequence Returned", Field: platedata.FieldSeqReturned, Kind: Flag},
		},
		PlateColumns: []Column{
			{Header: "Plate ID", Field: platedata.FieldPlateID, Kind: Text, Class: "l"},
			{Header: "Entry Date", Field: platedata.FieldEntryDate, Kind: Text},
			{Header: "Local ID", Field: platedata.FieldLocalID, Kind: Text, Class: "l"},
			{Header: "Rapid Plates", Field: platedata.FieldProtocol, Kind: Text, Class: "l"},
			{Header: "Notes", Field: platedata.FieldNotes, Kind: Text, Class: "l"},
		},
		WellColumns: []Column{
			{Kind: Blank, Class: "empty", HeaderClass: "empty"},
			{Header: "Well", Field: platedata.FieldWell, Kind: Text},
			{Header: "Family", Field: platedata.FieldFamily, Kind: Text, Class: "l"},
			{Header: "Scientific Name", Field: platedata.FieldScientificName, Kind: Text, Class: "l"},
			{Header: "Concentration (ng/µL)", Field: platedata.FieldConcentration, Kind: Number, Precision: 2, Class: "r"},
			{Header: "Total DNA (ng)", Field: platedata.FieldTotalDNA, Kind: Number, Precision: 2, Class: "r"},
			{Header: "Sequence Returned", Field: platedata.FieldSeqReturned, Kind: YesNo},
			{Header: "Sample ID", Field: platedata.FieldSampleID, Kind: Text, Class: "l"},
			{Header: "Source Plate", Field: platedata.FieldSourcePlate, Kind: Text},
		},
	},
	LayoutRapid: {
		Name:  LayoutRapid,
		Title: "Sample Plates Report",
		Criteria: []Criterion{
			{Control: "search-sci-name", Label: "Scientific Name", Field: platedata.FieldScientificName, Kind: Substring},
			{Control: "search-family", Label: "Family", Field: platedata.FieldFamily, Kind: Substring},
			{Control: "search-sample-id", Label: "Sample ID", Field: platedata.FieldSampleID, Kind: Substring},
			{Control: "search-sent-to-rapid", Label: "Sent to Rapid", Field: platedata.FieldConcentration, Kind: Flag},
			{Control: "search-seq-returned", Label: "Sequence Returned", Field: platedata.FieldSeqReturned, Kind: Flag},
		},
		PlateColumns: []Column{
			{Header: "Plate ID", Field: platedata.FieldPlateID, Kind: Text, Class: "l"},
			{Header: "Entry Date", Field: platedata.FieldEntryDate, Kind: Text},
			{Header: "Local ID", Field: platedata.FieldLocalID, Kind: Text, Class: "l"},
			{Header: "Protocol", Field: platedata.FieldProtocol, Kind: Text, Class: "l"},
			{Header: "Notes", Field: platedata.FieldNotes, Kind: Text, Class: "l"},
		},
		WellColumns: []Column{
			{Kind: Blank, Class: "empty", HeaderClass: "empty"},
			{Header: "Well", Field: platedata.FieldWell, Kind: Text},
			{Header: "Well Number", Field: platedata.FieldPicogreenID, Kind: Text},
			{Header: "Family", Field: platedata.FieldFamily, Kind: Text, Class: "l"},
			{Header: "Scientific Name", Field: platedata.FieldScientificName, Kind: Text, Class: "l"},
			{Header: "Mean Yield (ng/µL)", Field: platedata.FieldMeanYield, Kind: Number, Precision: 3, Class: "r"},
			{Header: "Sent to Rapid", Field: platedata.FieldConcentration, Kind: YesNo},
			{Header: "Sequence Returned", Field: platedata.FieldSeqReturned, Kind: YesNo},
			{Header: "Sample ID", Field: platedata.FieldSampleID, Kind: Text, Class: "l"},
		},
	},
}

// BuiltinLayout returns one of the layouts compiled into the binary.
func BuiltinLayout(name string) (Layout, bool) {
	l, ok := builtinLayouts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Layout{}, false
	}
	l.Criteria = append([]Criterion(nil), l.Criteria...)
	l.PlateColumns = append([]Column(nil), l.PlateColumns...)
	l.WellColumns = append([]Column(nil), l.WellColumns...)
	return l, true
}

// BuiltinLayoutNames lists the compiled-in layouts.
func BuiltinLayoutNames() []string {
	names := make([]string, 0, len(builtinLayouts))
	for name := range builtinLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
