package knowledge

import (
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// RenderRow flattens a result row into "Name (Type) --[rel]--> Name (Type)".
// When path2 is present its first node is the last node of path1, so path1
// is rendered without it.
func RenderRow(row Row) string {
	parts := make([]string, 0, 2)

	if row.Path1 != nil {
		parts = append(parts, row.Path1.render(row.Path2 != nil))
	}
	if row.Path2 != nil {
		parts = append(parts, row.Path2.render(false))
	}

	return strings.Join(pie.Filter(parts, func(s string) bool { return s != "" }), " ")
}

// RenderRows renders every row and drops the empty ones.
func RenderRows(rows []Row) []string {
	lines := pie.Map(rows, RenderRow)
	return pie.Filter(lines, func(s string) bool { return s != "" })
}

func (p *Path) render(dropLast bool) string {
	count := len(p.Nodes)
	if dropLast && count > 0 {
		count--
	}

	description := make([]string, 0, count*2)
	for i := 0; i < count; i++ {
		node := p.Nodes[i]
		description = append(description, fmt.Sprintf("%s (%s)", node.Name, node.Type))

		if i < len(p.Edges) {
			description = append(description, fmt.Sprintf("--[%s]-->", p.Edges[i].Type))
		}
	}

	return strings.Join(description, " ")
}
