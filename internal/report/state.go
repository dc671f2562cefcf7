package report

import (
	"fmt"

	"go-sample-plates-report/internal/platedata"
)

// State is everything needed to show one page of the report: the data, the
// active criteria, the plates they leave, and which of those is on screen.
// A State is not safe for concurrent use; callers serialize access.
type State struct {
	dataset  *platedata.Dataset
	layout   Layout
	criteria Criteria
	filtered []platedata.Plate
	page     int
	maxPage  int
}

// NewState filters the dataset with no active criteria and shows page 1.
func NewState(ds *platedata.Dataset, layout Layout) *State {
	if ds == nil {
		ds = &platedata.Dataset{}
	}
	s := &State{dataset: ds, layout: layout, criteria: NewCriteria()}
	s.refilter()
	s.ResetPager()
	return s
}

// Dataset returns the unfiltered data the state was built from.
func (s *State) Dataset() *platedata.Dataset { return s.dataset }

// Layout returns the report variant in use.
func (s *State) Layout() Layout { return s.layout }

// Criteria returns a copy of the active criteria.
func (s *State) Criteria() Criteria { return s.criteria.Clone() }

// FilteredPlates returns the plates that currently have matching wells.
func (s *State) FilteredPlates() []platedata.Plate {
	out := make([]platedata.Plate, len(s.filtered))
	copy(out, s.filtered)
	return out
}

// Page is the 1-based page on screen, or 0 when no plate matches.
func (s *State) Page() int { return s.page }

// MaxPage is the number of filtered plates.
func (s *State) MaxPage() int { return s.maxPage }

// MaxPageLabel is the text shown next to the pager input.
func (s *State) MaxPageLabel() string { return fmt.Sprintf("of %d", s.maxPage) }

// FilterChange applies new criteria and goes back to the first page.
func (s *State) FilterChange(c Criteria) {
	s.criteria = c.Clone()
	s.refilter()
	s.ResetPager()
}

// ResetPager recomputes the page count and forces page 1.
func (s *State) ResetPager() {
	s.maxPage = len(s.filtered)
	s.ChangePage(1)
}

// ChangePage moves to the requested page, clamped to [1, MaxPage].
func (s *State) ChangePage(requested int) int {
	s.page = clampPage(requested, s.maxPage)
	return s.page
}

func (s *State) First() int { return s.ChangePage(1) }
func (s *State) Previous() int { return s.ChangePage(s.page - 1) }
func (s *State) Next() int { return s.ChangePage(s.page + 1) }
func (s *State) Last() int { return s.ChangePage(s.maxPage) }

// CurrentPlate returns the plate on screen.
func (s *State) CurrentPlate() (platedata.Plate, bool) {
	return s.PlateAt(s.page)
}

// PlateAt returns the plate shown on a page, if that page exists.
func (s *State) PlateAt(page int) (platedata.Plate, bool) {
	if page < 1 || page > len(s.filtered) {
		return platedata.Plate{}, false
	}
	return s.filtered[page-1], true
}

// MatchingWells returns the wells of a plate that pass the active criteria.
func (s *State) MatchingWells(p platedata.Plate) []platedata.Well {
	return FilterWells(s.dataset, p, s.layout.Criteria, s.criteria)
}

func (s *State) refilter() {
	s.filtered = FilterPlates(s.dataset, s.layout.Criteria, s.criteria)
}

func clampPage(page, maxPage int) int {
	if maxPage <= 0 {
		return 0
	}
	if page < 1 {
		return 1
	}
	if page > maxPage {
		return maxPage
	}
	return page
}
