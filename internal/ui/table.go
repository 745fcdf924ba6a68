package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under headers with a single rule below the header.
func Table(styles Styles, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(styles.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header.PaddingRight(2)
			}
			return styles.Cell.PaddingRight(2)
		})
	return t.Render()
}

// KeyValues renders label/value pairs as an aligned two column block.
func KeyValues(styles Styles, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if w := lipgloss.Width(p[0]); w > width {
			width = w
		}
	}
	label := styles.Muted.Width(width + 2)
	out := ""
	for i, p := range pairs {
		if i > 0 {
			out += "\n"
		}
		out += label.Render(p[0]) + p[1]
	}
	return out
}
