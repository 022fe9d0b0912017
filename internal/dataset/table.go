package dataset

// Field is a single cell. Null marks an absent value; Text is empty for absent cells.
type Field struct {
	Text string
	Null bool
}

// Present returns a non-null field holding s.
func Present(s string) Field { return Field{Text: s} }

// Absent returns a null field.
func Absent() Field { return Field{Null: true} }

// Row is one record aligned with Table.Columns.
type Row []Field

// Table is an ordered sequence of rows sharing a fixed column schema.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries the named column.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Value returns the field at (row, column name). Unknown columns read as absent.
func (t *Table) Value(row int, name string) Field {
	idx := t.Index(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return Absent()
	}
	return t.Rows[row][idx]
}

// Column returns a copy of every field of the named column, or nil if it is missing.
func (t *Table) Column(name string) []Field {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]Field, len(t.Rows))
	for i, r := range t.Rows {
		if idx < len(r) {
			out[i] = r[idx]
		} else {
			out[i] = Absent()
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// DropColumns returns a copy of the table without the named columns.
// Names that are not present are ignored.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]int, 0, len(t.Columns))
	out := &Table{Name: t.Name}
	for i, c := range t.Columns {
		if drop[c] {
			continue
		}
		keep = append(keep, i)
		out.Columns = append(out.Columns, c)
	}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(keep))
		for j, k := range keep {
			if k < len(r) {
				nr[j] = r[k]
			} else {
				nr[j] = Absent()
			}
		}
		out.Rows[i] = nr
	}
	return out
}

// SetColumn overwrites the named column in place, appending it when missing.
// len(values) must equal t.Len().
func (t *Table) SetColumn(name string, values []Field) {
	idx := t.Index(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
}

// Strings renders a row as plain text, absent cells as "".
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Text
	}
	return out
}
