package domain

// Table is a raw exposure table: a header and string cells, as read from a
// CSV or spreadsheet. Rows may be shorter than the header.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the value at row i, column j, or "" when the row is short.
func (t Table) Cell(i, j int) string {
	if j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}
