package render

import (
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"

	"go-sample-plates-report/internal/report"
)

//go:embed assets/report.css
var stylesheet string

//go:embed assets/report.js
var script string

// Page is everything one report page is drawn from.
type Page struct {
	State       *report.State
	Coverage    report.CoverageReport
	Document    *report.Document
	LivePath    string
	GeneratedAt time.Time
}

// ReportPage is the interactive page: coverage plus the current plate with
// search controls and a pager. With LivePath set the embedded script drives
// the page over a websocket at that path.
func ReportPage(p Page) g.Node {
	doc := p.document()
	return page(p, doc,
		h.Div(
			h.ID("report"),
			g.If(p.LivePath != "", h.Data("live", p.LivePath)),
			coverageSection(p.Coverage, doc),
			samplesSection(p.State, doc),
		),
		h.Script(g.Raw(script)),
	)
}

// PrintPage renders every page of the filtered result, one plate per tbody,
// with every section opened.
func PrintPage(p Page) g.Node {
	doc := p.document()
	doc.OpenAll()

	s := p.State
	bodies := make([]g.Node, 0, s.MaxPage())
	for n := 1; n <= s.MaxPage(); n++ {
		bodies = append(bodies, BuildTable(report.BuildPageRows(s, n), h.Class("plate")))
	}

	return page(p, doc,
		h.Div(
			h.ID("report"),
			coverageSection(p.Coverage, doc),
			sectionHeader(report.SectionSamples, "Sample Plates", doc),
			h.Div(
				h.ID(report.SectionBodyID(report.SectionSamples)),
				classOf(doc, report.SectionBodyID(report.SectionSamples)),
				h.P(g.Text(criteriaSummary(s))),
				h.Table(h.Class("plates"), g.Group(bodies)),
			),
		),
	)
}

// Write renders a node to w.
func Write(w io.Writer, n g.Node) error {
	if err := n.Render(w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func (p Page) document() *report.Document {
	if p.Document != nil {
		return p.Document
	}
	return report.PageDocument(p.Coverage)
}

func page(p Page, doc *report.Document, body ...g.Node) g.Node {
	title := p.State.Layout().Title
	generated := p.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return c.HTML5(c.HTML5Props{
		Title:    title,
		Language: "en",
		Head:     []g.Node{h.StyleEl(g.Raw(stylesheet))},
		Body: []g.Node{
			h.H1(g.Text(title)),
			h.P(h.Class("generated"), g.Text("Generated "+generated.Format("2006-01-02 15:04"))),
			g.Group(body),
		},
	})
}

func classOf(doc *report.Document, id string) g.Node {
	cls := doc.ClassOf(id)
	if cls == "" {
		return nil
	}
	return h.Class(cls)
}

func sectionHeader(section, title string, doc *report.Document) g.Node {
	body := report.SectionBodyID(section)
	return h.H2(
		h.ID(report.SectionHeaderID(section)),
		h.Button(
			h.ID(report.SectionButtonID(section)),
			classOf(doc, report.SectionButtonID(section)),
			h.Data("selector", body),
		),
		g.Text(title),
	)
}

func coverageSection(cov report.CoverageReport, doc *report.Document) g.Node {
	rows := make([]g.Node, 0, len(cov.Families)*2+1)
	for fi, fam := range cov.Families {
		rows = append(rows, h.Tr(
			h.ID(report.FamilyRowID(fi)),
			classOf(doc, report.FamilyRowID(fi)),
			h.Td(
				h.Button(
					h.ID(report.FamilyButtonID(fi)),
					classOf(doc, report.FamilyButtonID(fi)),
					h.Data("family", fam.Family),
				),
				g.Text(fam.Family),
			),
			h.Td(),
			coverageCells(fam.CoverageRow),
		))
		for gi, gen := range fam.Genera {
			key := report.GenusKey(fam.Family, gen.Genus)
			rows = append(rows, h.Tr(
				h.ID(report.GenusRowID(fi, gi)),
				classOf(doc, report.GenusRowID(fi, gi)),
				h.Data("family", fam.Family),
				h.Td(),
				h.Td(
					h.Button(
						h.ID(report.GenusButtonID(fi, gi)),
						classOf(doc, report.GenusButtonID(fi, gi)),
						h.Data("family", fam.Family),
						h.Data("genus", key),
					),
					g.Text(gen.Genus),
				),
				coverageCells(gen.CoverageRow),
			))
			for ti, taxon := range gen.Taxa {
				imaged := ""
				if taxon.Imaged {
					imaged = "Yes"
				}
				rows = append(rows, h.Tr(
					h.ID(report.TaxonRowID(fi, gi, ti)),
					classOf(doc, report.TaxonRowID(fi, gi, ti)),
					h.Data("family", fam.Family),
					h.Data("genus", key),
					h.Td(),
					h.Td(h.Class("l"), g.Text(taxon.ScientificName)),
					h.Td(),
					h.Td(h.Class("r"), g.Text(imaged)),
					h.Td(),
				))
			}
		}
	}
	rows = append(rows, h.Tr(
		h.Class("total"),
		h.Td(g.Text(cov.Total.Family)),
		h.Td(),
		coverageCells(cov.Total),
	))

	body := report.SectionBodyID(report.SectionFamilies)
	return g.Group{
		sectionHeader(report.SectionFamilies, "Family Coverage", doc),
		h.Div(
			h.ID(body),
			classOf(doc, body),
			h.Table(
				h.Class("coverage"),
				h.THead(h.Tr(
					h.Th(g.Text("Family")),
					h.Th(g.Text("Genus")),
					h.Th(h.Class("r"), g.Text("Total")),
					h.Th(h.Class("r"), g.Text("Imaged")),
					h.Th(h.Class("r"), g.Text("Percent")),
				)),
				h.TBody(rows...),
			),
		),
	}
}

func coverageCells(row report.CoverageRow) g.Node {
	return g.Group{
		h.Td(h.Class("r"), g.Text(strconv.Itoa(row.Total))),
		h.Td(h.Class("r"), g.Text(strconv.Itoa(row.Imaged))),
		h.Td(h.Class("r"), g.Text(strconv.FormatFloat(row.Percent, 'f', 2, 64))),
	}
}

func samplesSection(s *report.State, doc *report.Document) g.Node {
	body := report.SectionBodyID(report.SectionSamples)
	criteria := s.Criteria()
	pageValue := ""
	if s.Page() > 0 {
		pageValue = strconv.Itoa(s.Page())
	}

	return g.Group{
		sectionHeader(report.SectionSamples, "Sample Plates", doc),
		h.Div(
			h.ID(body),
			classOf(doc, body),
			h.Div(
				h.Class("controls"),
				g.Map(s.Layout().Criteria, func(def report.Criterion) g.Node {
					return criterionControl(def, criteria)
				}),
			),
			h.Div(
				h.Class("pager"),
				pagerButton("first", "«"),
				pagerButton("previous", "‹"),
				h.Input(h.ID("page"), h.Type("number"), h.Value(pageValue)),
				h.Span(h.ID("max-page"), g.Text(s.MaxPageLabel())),
				pagerButton("next", "›"),
				pagerButton("last", "»"),
			),
			h.Table(
				h.Class("plates"),
				BuildTable(report.BuildTableRows(s), h.ID(TableBodyID)),
			),
		),
	}
}

func criterionControl(def report.Criterion, criteria report.Criteria) g.Node {
	label := def.Label
	if label == "" {
		label = def.Control
	}
	if def.Kind == report.Flag {
		return h.Label(
			h.Input(h.ID(def.Control), h.Type("checkbox"), g.If(criteria.Checked[def.Control], h.Checked())),
			g.Text(label),
		)
	}
	return h.Label(
		g.Text(label),
		h.Input(h.ID(def.Control), h.Type("search"), h.Value(criteria.Text[def.Control])),
		h.Button(h.Class("clear-btn"), h.Type("button"), h.Data("control", def.Control), g.Text("×")),
	)
}

func pagerButton(action, label string) g.Node {
	return h.Button(h.Type("button"), h.Data("action", action), g.Text(label))
}

func criteriaSummary(s *report.State) string {
	criteria := s.Criteria()
	var parts []string
	for _, def := range s.Layout().Criteria {
		label := def.Label
		if label == "" {
			label = def.Control
		}
		switch def.Kind {
		case report.Flag:
			if criteria.Checked[def.Control] {
				parts = append(parts, label)
			}
		default:
			if v := criteria.Text[def.Control]; v != "" {
				parts = append(parts, fmt.Sprintf("%s contains %q", label, v))
			}
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("All plates (%d)", s.MaxPage())
	}
	return fmt.Sprintf("%d plates where %s", s.MaxPage(), strings.Join(parts, ", "))
}
