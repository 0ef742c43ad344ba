package core

// Row is one decoded record. A row may be logically empty while still
// occupying its slot on disk; such rows are surfaced with Present=false and
// no column values rather than silently skipped, since callers legitimately
// want to detect gaps.
type Row struct {
	// Ordinal is the zero-based index of the row within its table, stable
	// and matching on-disk page order.
	Ordinal uint64
	// Present is false for vacated slots.
	Present bool
	// Fields maps column name to its decoded value. Nil for empty rows.
	Fields map[string]Value
}

// Field returns the decoded value for a column name.
func (r Row) Field(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}
