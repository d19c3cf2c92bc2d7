package core

// Table is a named, header-first grid of cells, the unit every export and import works with.
type Table struct {
	Name   string // sheet name for spreadsheets
	Header []string
	Rows   [][]string
}

func NewTable(name string, header ...string) *Table {
	return &Table{Name: name, Header: header}
}

func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Records returns the rows as header -> cell maps. Missing trailing cells read as "".
func (t *Table) Records() []map[string]string {
	recs := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, col := range t.Header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
