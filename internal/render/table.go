package render

import (
	"strings"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"go-sample-plates-report/internal/report"
)

// TableBodyID is the id of the tbody the live page rebuilds.
const TableBodyID = "plate-rows"

// BuildTable turns row descriptions into a complete <tbody>. The body is
// always rebuilt from scratch; nothing is diffed against a previous render.
func BuildTable(rows []report.Row, attrs ...g.Node) g.Node {
	return h.TBody(
		g.Group(attrs),
		g.Map(rows, buildRow),
	)
}

func buildRow(row report.Row) g.Node {
	return h.Tr(
		g.If(row.Class != "", h.Class(row.Class)),
		g.Map(row.Cells, func(cell report.Cell) g.Node {
			return h.Td(
				g.If(cell.Class != "", h.Class(cell.Class)),
				g.Text(cell.Content),
			)
		}),
	)
}

// TableHTML renders the tbody for the given rows as a string.
func TableHTML(rows []report.Row) (string, error) {
	var b strings.Builder
	if err := BuildTable(rows, h.ID(TableBodyID)).Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}
