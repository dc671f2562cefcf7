package platedata

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Schema maps the field names used by one report variant onto canonical names.
// Variants of the report disagree on names for the same concept, so the data
// producer's spelling is translated on the way in and never trusted further.
type Schema struct {
	Aliases map[string]string `json:"aliases" yaml:"aliases"`
}

// DefaultSchema knows every spelling seen across report variants.
func DefaultSchema() Schema {
	return Schema{Aliases: map[string]string{
		"sci_name":            FieldScientificName,
		"rapid_concentration": FieldConcentration,
		"rapid_total_dna":     FieldTotalDNA,
		"rapid_plates":        FieldProtocol,
		"seqReturned":         FieldSeqReturned,
		"ng_microliter_mean":  FieldMeanYield,
	}}
}

// Canonical returns the canonical name for a source field name.
func (s Schema) Canonical(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := s.Aliases[name]; ok {
		return c
	}
	return name
}

// Merge returns a schema with extra aliases layered over s.
func (s Schema) Merge(extra map[string]string) Schema {
	out := Schema{Aliases: make(map[string]string, len(s.Aliases)+len(extra))}
	for k, v := range s.Aliases {
		out.Aliases[k] = v
	}
	for k, v := range extra {
		out.Aliases[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// Fields resolves a loosely typed record into canonical field values.
// When several source keys map to one field, a non-empty value beats an
// empty one, then the canonical spelling beats an alias, then the alias
// that sorts first wins.
func (s Schema) Fields(rec map[string]any) map[string]string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(rec))
	exact := make(map[string]bool, len(rec))
	for _, k := range keys {
		name := s.Canonical(k)
		val := stringify(rec[k])
		isExact := strings.TrimSpace(k) == name
		prev, seen := out[name]
		switch {
		case !seen:
		case prev == "" && val != "":
		case prev != "" && val == "":
			continue
		case isExact && !exact[name]:
		default:
			continue
		}
		out[name] = val
		exact[name] = isExact
	}
	return out
}

// PlateFromRecord builds a plate from a loosely typed record.
func (s Schema) PlateFromRecord(rec map[string]any) Plate {
	var p Plate
	for name, val := range s.Fields(rec) {
		switch name {
		case FieldPlateID:
			p.PlateID = val
		case FieldLocalNo:
			p.LocalNo = val
		case FieldEntryDate:
			p.EntryDate = val
		case FieldLocalID:
			p.LocalID = val
		case FieldProtocol:
			p.Protocol = val
		case FieldNotes:
			p.Notes = val
		}
	}
	return p
}

// WellFromRecord builds a well from a loosely typed record.
func (s Schema) WellFromRecord(plateID string, rec map[string]any) Well {
	w := Well{PlateID: plateID}
	for name, val := range s.Fields(rec) {
		switch name {
		case FieldPlateID:
			if val != "" {
				w.PlateID = val
			}
		case FieldWell:
			w.Well = val
		case FieldWellNo:
			w.WellNo = val
		case FieldPicogreenID:
			w.PicogreenID = val
		case FieldSampleID:
			w.SampleID = val
		case FieldScientificName:
			w.ScientificName = val
		case FieldFamily:
			w.Family = val
		case FieldGenus:
			w.Genus = val
		case FieldSourcePlate:
			w.SourcePlate = val
		case FieldConcentration:
			w.Concentration = val
		case FieldTotalDNA:
			w.TotalDNA = val
		case FieldMeanYield:
			w.MeanYield = val
		case FieldSeqReturned:
			w.SeqReturned = Truthy(val)
		}
	}
	return w
}

type rawDataset struct {
	Plates []map[string]any            `json:"plates"`
	Wells  map[string][]map[string]any `json:"wells"`
	Taxa   []map[string]any            `json:"taxa"`
}

// DecodeJSON reads a dataset in the shape the report template receives:
// an ordered plate list and a plate_id keyed map of ordered well lists.
func DecodeJSON(r io.Reader, schema Schema) (*Dataset, error) {
	var raw rawDataset
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	ds := &Dataset{
		Plates: make([]Plate, 0, len(raw.Plates)),
		Wells:  make(map[string][]Well, len(raw.Wells)),
	}
	for i, rec := range raw.Plates {
		p := schema.PlateFromRecord(rec)
		if p.PlateID == "" {
			return nil, fmt.Errorf("plate %d: missing plate_id", i)
		}
		ds.Plates = append(ds.Plates, p)
	}
	for plateID, recs := range raw.Wells {
		wells := make([]Well, 0, len(recs))
		for _, rec := range recs {
			wells = append(wells, schema.WellFromRecord(plateID, rec))
		}
		ds.Wells[plateID] = wells
	}
	for _, rec := range raw.Taxa {
		f := schema.Fields(rec)
		ds.Taxa = append(ds.Taxa, Taxon{
			Family:         f[FieldFamily],
			Genus:          f[FieldGenus],
			ScientificName: f[FieldScientificName],
			Imaged:         Truthy(f["imaged"]),
		})
	}
	return ds, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
