package report

import (
	"sort"

	"go-sample-plates-report/internal/platedata"
)

// TotalFamily labels the grand total row; it sorts after every family name.
const TotalFamily = "~Total~"

// CoverageRow counts taxa and imaged taxa for a family, a genus, or everything.
// Genus is empty on family and total rows.
type CoverageRow struct {
	Family  string  `json:"family"`
	Genus   string  `json:"genus"`
	Total   int     `json:"total"`
	Imaged  int     `json:"imaged"`
	Percent float64 `json:"percent"`
}

// GenusCoverage is one genus row with the taxa it counts.
type GenusCoverage struct {
	CoverageRow
	Taxa []platedata.Taxon `json:"taxa"`
}

// FamilyCoverage is one family row with its genera.
type FamilyCoverage struct {
	CoverageRow
	Genera []GenusCoverage `json:"genera"`
}

// CoverageReport groups taxa by family then genus, sorted by name.
type CoverageReport struct {
	Families []FamilyCoverage `json:"families"`
	Total    CoverageRow      `json:"total"`
}

// BuildCoverage tallies imaging coverage over the taxonomy.
func BuildCoverage(taxa []platedata.Taxon) CoverageReport {
	byFamily := map[string]map[string][]platedata.Taxon{}
	for _, t := range taxa {
		genera, ok := byFamily[t.Family]
		if !ok {
			genera = map[string][]platedata.Taxon{}
			byFamily[t.Family] = genera
		}
		genera[t.Genus] = append(genera[t.Genus], t)
	}

	families := make([]string, 0, len(byFamily))
	for f := range byFamily {
		families = append(families, f)
	}
	sort.Strings(families)

	out := CoverageReport{Total: CoverageRow{Family: TotalFamily}}
	for _, family := range families {
		fc := FamilyCoverage{CoverageRow: CoverageRow{Family: family}}
		genusNames := make([]string, 0, len(byFamily[family]))
		for g := range byFamily[family] {
			genusNames = append(genusNames, g)
		}
		sort.Strings(genusNames)

		for _, genus := range genusNames {
			members := byFamily[family][genus]
			sort.SliceStable(members, func(i, j int) bool {
				return members[i].ScientificName < members[j].ScientificName
			})
			gc := GenusCoverage{CoverageRow: CoverageRow{Family: family, Genus: genus}, Taxa: members}
			for _, t := range members {
				gc.Total++
				if t.Imaged {
					gc.Imaged++
				}
			}
			gc.Percent = percent(gc.Imaged, gc.Total)
			fc.Total += gc.Total
			fc.Imaged += gc.Imaged
			fc.Genera = append(fc.Genera, gc)
		}
		fc.Percent = percent(fc.Imaged, fc.Total)
		out.Total.Total += fc.Total
		out.Total.Imaged += fc.Imaged
		out.Families = append(out.Families, fc)
	}
	out.Total.Percent = percent(out.Total.Imaged, out.Total.Total)
	return out
}

// Rows flattens the report: each family row followed by its genus rows,
// then the total row.
func (c CoverageReport) Rows() []CoverageRow {
	rows := make([]CoverageRow, 0, len(c.Families)*2+1)
	for _, f := range c.Families {
		rows = append(rows, f.CoverageRow)
		for _, g := range f.Genera {
			rows = append(rows, g.CoverageRow)
		}
	}
	return append(rows, c.Total)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100.0
}
