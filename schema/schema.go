// Package schema models the container's table directory: every table's name,
// its ordered column list and its declared row count. Names are
// author-assigned strings from the source system and are preserved
// byte-for-byte; case and punctuation carry meaning for downstream consumers
// (a table-part sibling is distinguished from its primary table only by a
// structural suffix).
package schema

import "github.com/INLOpen/onecd/core"

// Status reports whether a table's directory entry parsed cleanly.
type Status int

const (
	// StatusReady means the schema is complete and rows can be decoded.
	StatusReady Status = iota
	// StatusUnreadable means the directory entry was corrupted. The table is
	// kept in the listing (with whatever name was recovered) so that callers
	// see the gap instead of a silently shorter directory.
	StatusUnreadable
)

func (s Status) String() string {
	if s == StatusUnreadable {
		return "unreadable"
	}
	return "ready"
}

// ColumnSpec is one column definition: name, on-disk type tag and the
// declared length whose meaning depends on the tag (character count for text,
// byte count for raw binary, unused for fixed-size types).
type ColumnSpec struct {
	Name   string
	Type   core.FieldType
	Length int
}

// InlineSize returns the byte size of the column's inline portion.
func (c ColumnSpec) InlineSize() int {
	return c.Type.SizeOf(c.Length)
}

// TableSchema is one named table's immutable schema, created when the
// directory is parsed.
type TableSchema struct {
	Name     string
	RowCount uint64
	DataPage uint32 // first page of the table's row chain; 0 means no rows
	Columns  []ColumnSpec

	Ordinal int // position of the entry within the directory
	Status  Status
	Err     error // set when Status == StatusUnreadable
}

// RowSize returns the fixed on-disk size of one row slot: the presence byte
// followed by every column's inline portion.
func (t *TableSchema) RowSize() int {
	size := 1
	for _, col := range t.Columns {
		size += col.InlineSize()
	}
	return size
}

// Column looks up a column spec by name.
func (t *TableSchema) Column(name string) (ColumnSpec, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSpec{}, false
}
