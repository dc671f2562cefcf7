package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go-sample-plates-report/internal/platedata"
)

// Row classes used by the report stylesheet.
const (
	RowPlateHeader = "header"
	RowWellHeader  = "sub-header"
	RowWell        = "well"
)

// Cell is one table cell: raw content plus an optional styling class.
type Cell struct {
	Content string `json:"content"`
	Class   string `json:"cls,omitempty"`
}

// Row is one table row description, independent of how it is written out.
type Row struct {
	Class string `json:"cls,omitempty"`
	Cells []Cell `json:"td"`
}

// BuildTableRows describes the table body for the page on screen.
func BuildTableRows(s *State) []Row {
	return BuildPageRows(s, s.Page())
}

// BuildPageRows describes the table body for any page of the filtered plates:
// plate header, plate data, well header, then one row per matching well.
// An absent page yields no rows.
func BuildPageRows(s *State, page int) []Row {
	plate, ok := s.PlateAt(page)
	if !ok {
		return []Row{}
	}
	wells := s.MatchingWells(plate)
	layout := s.Layout()

	rows := make([]Row, 0, 3+len(wells))
	rows = append(rows, PlateHeaderRow(layout))
	rows = append(rows, PlateDataRow(layout, plate))
	rows = append(rows, WellHeaderRow(layout))
	for _, w := range wells {
		rows = append(rows, WellDataRow(layout, w))
	}
	return rows
}

// PlateHeaderRow labels the plate columns, padded to the width of the well rows.
func PlateHeaderRow(l Layout) Row {
	cells := make([]Cell, 0, l.HeaderWidth())
	for _, col := range l.PlateColumns {
		cells = append(cells, Cell{Content: col.Header})
	}
	for len(cells) < l.HeaderWidth() {
		cells = append(cells, Cell{})
	}
	return Row{Class: RowPlateHeader, Cells: cells}
}

// PlateDataRow lays the plate fields out in column order.
func PlateDataRow(l Layout, p platedata.Plate) Row {
	cells := make([]Cell, 0, len(l.PlateColumns))
	for _, col := range l.PlateColumns {
		cells = append(cells, Cell{Content: formatCell(col, p.Field(col.Field), false), Class: col.Class})
	}
	return Row{Cells: cells}
}

// WellHeaderRow labels the well columns.
func WellHeaderRow(l Layout) Row {
	cells := make([]Cell, 0, len(l.WellColumns))
	for _, col := range l.WellColumns {
		cells = append(cells, Cell{Content: col.Header, Class: col.HeaderClass})
	}
	return Row{Class: RowWellHeader, Cells: cells}
}

// WellDataRow lays the well fields out in column order.
func WellDataRow(l Layout, w platedata.Well) Row {
	cells := make([]Cell, 0, len(l.WellColumns))
	for _, col := range l.WellColumns {
		var content string
		switch col.Kind {
		case Blank:
		case YesNo:
			content = formatCell(col, "", w.Flag(col.Field))
		default:
			content = formatCell(col, w.Field(col.Field), false)
		}
		cells = append(cells, Cell{Content: content, Class: col.Class})
	}
	return Row{Class: RowWell, Cells: cells}
}

func formatCell(col Column, raw string, flag bool) string {
	switch col.Kind {
	case Blank:
		return ""
	case Number:
		return FormatNumber(raw, col.Precision)
	case YesNo:
		if flag || (raw != "" && platedata.Truthy(raw)) {
			return "Yes"
		}
		return ""
	}
	return raw
}

var leadingNumber = regexp.MustCompile(`^[+-]?(Infinity|\d+\.?\d*([eE][+-]?\d+)?|\.\d+([eE][+-]?\d+)?)`)

// FormatNumber renders the leading number of raw with a fixed precision.
// Text with no leading number renders as ""; values out of float range
// render as "Infinity" or "-Infinity".
func FormatNumber(raw string, precision int) string {
	m := leadingNumber.FindString(strings.TrimSpace(raw))
	if m == "" {
		return ""
	}
	f, err := strconv.ParseFloat(m, 64)
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if err != nil || math.IsNaN(f) {
		return ""
	}
	if precision < 0 {
		precision = 0
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}
