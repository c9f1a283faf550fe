// Package frame holds the small in-memory table the prediction pipeline works on.
package frame

import (
	"encoding/json"
	"fmt"
)

// Cell is a single table value. Valid is false for missing values, the same
// way sql.NullString marks NULL.
type Cell struct {
	Value string
	Valid bool
}

// Str returns a valid cell holding s.
func Str(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Null returns a missing cell.
func Null() Cell {
	return Cell{}
}

// Table is an ordered set of named columns with row-major cells.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// New creates an empty table with the given columns.
func New(columns []string) (*Table, error) {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, name := range columns {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		t.index[name] = len(t.columns)
		t.columns = append(t.columns, name)
	}
	return t, nil
}

// MustNew is New for column lists known to be unique.
func MustNew(columns ...string) *Table {
	t, err := New(columns)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow adds one row. The row must have exactly one cell per column.
func (t *Table) AppendRow(cells []Cell) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.columns))
	}
	t.rows = append(t.rows, append([]Cell(nil), cells...))
	return nil
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Cell {
	return append([]Cell(nil), t.rows[i]...)
}

// Get returns the cell at row i in column name.
func (t *Table) Get(i int, name string) (Cell, bool) {
	j, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return Cell{}, false
	}
	return t.rows[i][j], true
}

// Column returns a copy of every cell in column name.
func (t *Table) Column(name string) ([]Cell, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	cells := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		cells[i] = row[j]
	}
	return cells, true
}

// SetColumn replaces column name with cells, or appends it as the last
// column when it does not exist yet.
func (t *Table) SetColumn(name string, cells []Cell) error {
	if len(cells) != len(t.rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", name, len(cells), len(t.rows))
	}
	j, ok := t.index[name]
	if !ok {
		t.index[name] = len(t.columns)
		t.columns = append(t.columns, name)
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], cells[i])
		}
		return nil
	}
	for i := range t.rows {
		t.rows[i][j] = cells[i]
	}
	return nil
}

// FillColumn sets every row of column name to c, adding the column if needed.
func (t *Table) FillColumn(name string, c Cell) {
	cells := make([]Cell, len(t.rows))
	for i := range cells {
		cells[i] = c
	}
	// lengths always match here
	_ = t.SetColumn(name, cells)
}

// Reindex returns a new table with exactly the given columns in that order.
// Columns absent from t are filled with missing cells; columns of t not
// listed are dropped. Row order is preserved.
func (t *Table) Reindex(columns []string) (*Table, error) {
	out, err := New(columns)
	if err != nil {
		return nil, err
	}
	src := make([]int, len(columns))
	for k, name := range columns {
		if j, ok := t.index[name]; ok {
			src[k] = j
		} else {
			src[k] = -1
		}
	}
	out.rows = make([][]Cell, len(t.rows))
	for i, row := range t.rows {
		projected := make([]Cell, len(columns))
		for k, j := range src {
			if j >= 0 {
				projected[k] = row[j]
			}
		}
		out.rows[i] = projected
	}
	return out, nil
}

// Head returns a copy holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.rows) {
		n = len(t.rows)
	}
	out := t.Clone()
	out.rows = out.rows[:n]
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: append([]string(nil), t.columns...),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]Cell, len(t.rows)),
	}
	for name, j := range t.index {
		out.index[name] = j
	}
	for i, row := range t.rows {
		out.rows[i] = append([]Cell(nil), row...)
	}
	return out
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...]]} with
// missing cells as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]*string, len(t.rows))
	for i, row := range t.rows {
		out := make([]*string, len(row))
		for j := range row {
			if row[j].Valid {
				v := row[j].Value
				out[j] = &v
			}
		}
		rows[i] = out
	}
	return json.Marshal(struct {
		Columns []string    `json:"columns"`
		Rows    [][]*string `json:"rows"`
	}{
		Columns: t.columns,
		Rows:    rows,
	})
}
