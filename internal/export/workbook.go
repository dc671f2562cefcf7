package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"go-sample-plates-report/internal/platedata"
	"go-sample-plates-report/internal/report"
)

// Sheet names, in workbook order.
const (
	SheetCoverage = "Family Coverage"
	SheetPlates   = "Sample Plates"
	SheetWells    = "Sample Plate Wells"
)

var (
	coverageHeader = []string{"Family", "Genus", "Total", "Imaged", "Percent"}
	wellHeader     = []string{
		"Local Plate Number", "Plate ID", "Well Offset", "Well", "Family", "Scientific Name",
		"Sample ID", "Source Plate", "Concentration (ng / uL)", "Total DNA (ng)",
		"Mean Yield (ng / uL)", "Sequence Returned?",
	}
)

type wellColumn func(platedata.Plate, platedata.Well) any

var wellColumns = []wellColumn{
	func(p platedata.Plate, _ platedata.Well) any { return number(p.LocalNo) },
	func(p platedata.Plate, _ platedata.Well) any { return p.PlateID },
	func(_ platedata.Plate, w platedata.Well) any { return number(w.WellNo) },
	func(_ platedata.Plate, w platedata.Well) any { return w.Well },
	func(_ platedata.Plate, w platedata.Well) any { return w.Family },
	func(_ platedata.Plate, w platedata.Well) any { return w.ScientificName },
	func(_ platedata.Plate, w platedata.Well) any { return w.SampleID },
	func(_ platedata.Plate, w platedata.Well) any { return w.SourcePlate },
	func(_ platedata.Plate, w platedata.Well) any { return number(w.Concentration) },
	func(_ platedata.Plate, w platedata.Well) any { return number(w.TotalDNA) },
	func(_ platedata.Plate, w platedata.Well) any { return number(w.MeanYield) },
	func(_ platedata.Plate, w platedata.Well) any { return yesNo(w.SeqReturned) },
}

// Workbook builds the spreadsheet version of a report: coverage, the plates
// that pass the current filter, and their matching wells.
func Workbook(s *report.State, cov report.CoverageReport) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetCoverage); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetPlates, SheetWells} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	w := sheetWriter{f: f, bold: bold}
	w.header(SheetCoverage, coverageHeader)
	for _, row := range cov.Rows() {
		w.row(SheetCoverage, []any{row.Family, row.Genus, row.Total, row.Imaged, row.Percent})
	}

	layout := s.Layout()
	plateHeader := []string{"Local Plate Number"}
	for _, col := range layout.PlateColumns {
		plateHeader = append(plateHeader, col.Header)
	}
	w.header(SheetPlates, plateHeader)

	plates := s.FilteredPlates()
	for _, p := range plates {
		values := []any{number(p.LocalNo)}
		for _, col := range layout.PlateColumns {
			values = append(values, p.Field(col.Field))
		}
		w.row(SheetPlates, values)
	}

	w.header(SheetWells, wellHeader)
	for _, p := range plates {
		wells := s.MatchingWells(p)
		sort.SliceStable(wells, func(i, j int) bool { return wells[i].Well < wells[j].Well })
		for _, well := range wells {
			values := make([]any, 0, len(wellColumns))
			for _, col := range wellColumns {
				values = append(values, col(p, well))
			}
			w.row(SheetWells, values)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	f.SetActiveSheet(0)
	ok = true
	return f, nil
}

// Write builds the workbook and writes it as xlsx.
func Write(out io.Writer, s *report.State, cov report.CoverageReport) error {
	f, err := Workbook(s, cov)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f    *excelize.File
	bold int
	next map[string]int
	err  error
}

func (w *sheetWriter) header(sheet string, cols []string) {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	w.row(sheet, values)
	if w.err != nil {
		return
	}
	w.err = w.f.SetRowStyle(sheet, 1, 1, w.bold)
	if w.err == nil {
		last, _ := excelize.ColumnNumberToName(len(cols))
		w.err = w.f.SetColWidth(sheet, "A", last, 18)
	}
}

func (w *sheetWriter) row(sheet string, values []any) {
	if w.err != nil {
		return
	}
	if w.next == nil {
		w.next = map[string]int{}
	}
	w.next[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, w.next[sheet])
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

// number writes parseable measurements as numbers and keeps anything else
// as text.
func number(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return ""
}
