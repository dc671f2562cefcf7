package platedata

import (
	"strconv"
	"strings"
)

// Canonical field names shared by layouts, criteria and data sources.
const (
	FieldPlateID        = "plate_id"
	FieldLocalNo        = "local_no"
	FieldEntryDate      = "entry_date"
	FieldLocalID        = "local_id"
	FieldProtocol       = "protocol"
	FieldNotes          = "notes"
	FieldWell           = "well"
	FieldWellNo         = "well_no"
	FieldPicogreenID    = "picogreen_id"
	FieldSampleID       = "sample_id"
	FieldScientificName = "scientific_name"
	FieldFamily         = "family"
	FieldGenus          = "genus"
	FieldSourcePlate    = "source_plate"
	FieldConcentration  = "concentration"
	FieldTotalDNA       = "total_dna"
	FieldMeanYield      = "mean_yield"
	FieldSeqReturned    = "seq_returned"
)

// Plate is one sample plate as listed in the report.
type Plate struct {
	PlateID   string `json:"plate_id"`
	LocalNo   string `json:"local_no,omitempty"`
	EntryDate string `json:"entry_date"`
	LocalID   string `json:"local_id"`
	Protocol  string `json:"protocol"`
	Notes     string `json:"notes"`
}

// Field returns the plate value stored under a canonical field name.
func (p Plate) Field(name string) string {
	switch name {
	case FieldPlateID:
		return p.PlateID
	case FieldLocalNo:
		return p.LocalNo
	case FieldEntryDate:
		return p.EntryDate
	case FieldLocalID:
		return p.LocalID
	case FieldProtocol:
		return p.Protocol
	case FieldNotes:
		return p.Notes
	}
	return ""
}

// Well is a single well of a plate. Measurements keep their source text so a
// value that does not parse can still be shown as blank instead of dropped.
type Well struct {
	PlateID        string `json:"plate_id"`
	Well           string `json:"well"`
	WellNo         string `json:"well_no,omitempty"`
	PicogreenID    string `json:"picogreen_id,omitempty"`
	SampleID       string `json:"sample_id"`
	ScientificName string `json:"scientific_name"`
	Family         string `json:"family"`
	Genus          string `json:"genus,omitempty"`
	SourcePlate    string `json:"source_plate"`
	Concentration  string `json:"concentration"`
	TotalDNA       string `json:"total_dna"`
	MeanYield      string `json:"mean_yield,omitempty"`
	SeqReturned    bool   `json:"seq_returned"`
}

// Field returns the well value stored under a canonical field name.
func (w Well) Field(name string) string {
	switch name {
	case FieldPlateID:
		return w.PlateID
	case FieldWell:
		return w.Well
	case FieldWellNo:
		return w.WellNo
	case FieldPicogreenID:
		return w.PicogreenID
	case FieldSampleID:
		return w.SampleID
	case FieldScientificName:
		return w.ScientificName
	case FieldFamily:
		return w.Family
	case FieldGenus:
		return w.Genus
	case FieldSourcePlate:
		return w.SourcePlate
	case FieldConcentration:
		return w.Concentration
	case FieldTotalDNA:
		return w.TotalDNA
	case FieldMeanYield:
		return w.MeanYield
	case FieldSeqReturned:
		if w.SeqReturned {
			return "true"
		}
		return ""
	}
	return ""
}

// Flag reports whether the named field holds a truthy value.
func (w Well) Flag(name string) bool {
	if name == FieldSeqReturned {
		return w.SeqReturned
	}
	return Truthy(w.Field(name))
}

// Truthy follows the loose rules the report data was produced with: blank,
// zero and explicit false values are unset, anything else counts as set.
func Truthy(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f != 0
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}

// Dataset is the full input of one report: plates in source order and the
// wells of each plate keyed by plate id.
type Dataset struct {
	Plates []Plate           `json:"plates"`
	Wells  map[string][]Well `json:"wells"`
	Taxa   []Taxon           `json:"taxa,omitempty"`
}

// WellsFor returns the wells of a plate in source order.
func (d *Dataset) WellsFor(plateID string) []Well {
	if d == nil || d.Wells == nil {
		return nil
	}
	return d.Wells[plateID]
}

// WellCount returns the number of wells across all plates.
func (d *Dataset) WellCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, wells := range d.Wells {
		n += len(wells)
	}
	return n
}

// Taxon is one taxonomy entry used for family and genus coverage.
type Taxon struct {
	Family         string `json:"family"`
	Genus          string `json:"genus"`
	ScientificName string `json:"scientific_name"`
	Imaged         bool   `json:"imaged"`
}
