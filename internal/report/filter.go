package report

import (
	"strings"

	"go-sample-plates-report/internal/platedata"
)

// CriterionKind selects how a search control constrains a well.
type CriterionKind string

const (
	// Substring keeps wells whose field contains the control text, ignoring case.
	Substring CriterionKind = "substring"
	// Flag keeps wells whose field is truthy while the control is checked.
	Flag CriterionKind = "flag"
)

// Criterion binds one search control to one well field.
type Criterion struct {
	Control string        `json:"control" yaml:"control"`
	Label   string        `json:"label" yaml:"label"`
	Field   string        `json:"field" yaml:"field"`
	Kind    CriterionKind `json:"kind" yaml:"kind"`
}

// Criteria is a snapshot of the current search control values.
type Criteria struct {
	Text    map[string]string `json:"text,omitempty"`
	Checked map[string]bool   `json:"checked,omitempty"`
}

// NewCriteria returns an empty snapshot where no control is active.
func NewCriteria() Criteria {
	return Criteria{Text: map[string]string{}, Checked: map[string]bool{}}
}

// Clone returns an independent copy of the snapshot.
func (c Criteria) Clone() Criteria {
	out := NewCriteria()
	for k, v := range c.Text {
		out.Text[k] = v
	}
	for k, v := range c.Checked {
		out.Checked[k] = v
	}
	return out
}

// WithText returns a copy with one text control set.
func (c Criteria) WithText(control, value string) Criteria {
	out := c.Clone()
	out.Text[control] = value
	return out
}

// WithChecked returns a copy with one checkbox control set.
func (c Criteria) WithChecked(control string, checked bool) Criteria {
	out := c.Clone()
	out.Checked[control] = checked
	return out
}

// Cleared returns a copy with one control reset to its empty value.
func (c Criteria) Cleared(control string) Criteria {
	out := c.Clone()
	delete(out.Text, control)
	delete(out.Checked, control)
	return out
}

// Active reports whether any control currently constrains the wells.
func (c Criteria) Active(defs []Criterion) bool {
	for _, def := range defs {
		if c.active(def) {
			return true
		}
	}
	return false
}

func (c Criteria) active(def Criterion) bool {
	switch def.Kind {
	case Flag:
		return c.Checked[def.Control]
	default:
		return c.Text[def.Control] != ""
	}
}

// MatchesCriteria reports whether a well satisfies every active criterion.
// Unset controls impose no constraint.
func MatchesCriteria(well platedata.Well, defs []Criterion, c Criteria) bool {
	for _, def := range defs {
		if !c.active(def) {
			continue
		}
		switch def.Kind {
		case Flag:
			if !well.Flag(def.Field) {
				return false
			}
		default:
			needle := strings.ToLower(c.Text[def.Control])
			if !strings.Contains(strings.ToLower(well.Field(def.Field)), needle) {
				return false
			}
		}
	}
	return true
}

// FilterWells returns the wells of a plate that match, in plate order.
func FilterWells(ds *platedata.Dataset, plate platedata.Plate, defs []Criterion, c Criteria) []platedata.Well {
	wells := ds.WellsFor(plate.PlateID)
	out := make([]platedata.Well, 0, len(wells))
	for _, w := range wells {
		if MatchesCriteria(w, defs, c) {
			out = append(out, w)
		}
	}
	return out
}

// FilterPlates keeps plates with at least one matching well, in source order.
func FilterPlates(ds *platedata.Dataset, defs []Criterion, c Criteria) []platedata.Plate {
	if ds == nil {
		return nil
	}
	out := make([]platedata.Plate, 0, len(ds.Plates))
	for _, p := range ds.Plates {
		if len(FilterWells(ds, p, defs, c)) > 0 {
			out = append(out, p)
		}
	}
	return out
}
