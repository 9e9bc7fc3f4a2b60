package workbook

import "strings"

// grid is a dense, row-major view of one worksheet. Cells outside a row's
// recorded width read as empty, matching how spreadsheets treat them.
type grid struct {
	rows [][]string
}

func newGrid(rows [][]string) *grid {
	return &grid{rows: rows}
}

// skipRows drops the first n rows, the header banner above the station rows.
func (g *grid) skipRows(n int) *grid {
	if n >= len(g.rows) {
		return &grid{}
	}
	return &grid{rows: g.rows[n:]}
}

// dropEmptyColumns removes columns whose every cell is blank, so column
// indices line up with the published sheet layout.
func (g *grid) dropEmptyColumns() *grid {
	width := g.numCols()
	keep := make([]int, 0, width)
	for c := 0; c < width; c++ {
		for r := range g.rows {
			if strings.TrimSpace(g.cell(r, c)) != "" {
				keep = append(keep, c)
				break
			}
		}
	}

	out := make([][]string, len(g.rows))
	for r := range g.rows {
		row := make([]string, len(keep))
		for i, c := range keep {
			row[i] = g.cell(r, c)
		}
		out[r] = row
	}
	return &grid{rows: out}
}

// dropEmptyRows removes fully blank rows.
func (g *grid) dropEmptyRows() *grid {
	out := make([][]string, 0, len(g.rows))
	for _, row := range g.rows {
		blank := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	return &grid{rows: out}
}

func (g *grid) numRows() int {
	return len(g.rows)
}

func (g *grid) numCols() int {
	width := 0
	for _, row := range g.rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// cell returns the trimmed-width cell value, empty when out of range.
func (g *grid) cell(r, c int) string {
	if r < 0 || r >= len(g.rows) {
		return ""
	}
	row := g.rows[r]
	if c < 0 || c >= len(row) {
		return ""
	}
	return row[c]
}

// column materializes column c across all rows.
func (g *grid) column(c int) []string {
	out := make([]string, len(g.rows))
	for r := range g.rows {
		out[r] = g.cell(r, c)
	}
	return out
}

// isEmptyColumn reports whether every cell of column c is blank.
func (g *grid) isEmptyColumn(c int) bool {
	for r := range g.rows {
		if strings.TrimSpace(g.cell(r, c)) != "" {
			return false
		}
	}
	return true
}
