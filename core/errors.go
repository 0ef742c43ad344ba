package core

import (
	"errors"
	"fmt"
)

// Fatal errors abort the whole decoder session; they only occur while the
// header or the table directory is being read. Everything after that stage is
// scoped to a single table or row and is recorded inline in the returned data.
var (
	// ErrBadSignature means the file does not start with the container magic.
	ErrBadSignature = errors.New("bad container signature")
	// ErrUnsupportedVersion means the header declares a format generation
	// this decoder does not understand.
	ErrUnsupportedVersion = errors.New("unsupported container version")
	// ErrTruncatedFile means the file is too small to hold what the header
	// (or a page read) promised.
	ErrTruncatedFile = errors.New("container file truncated")
	// ErrDirectoryUnreadable means the table directory chain itself could
	// not be read. Individual corrupted entries do not raise this.
	ErrDirectoryUnreadable = errors.New("table directory unreadable")

	// ErrTableNotFound is returned by schema lookups for unknown table names.
	ErrTableNotFound = errors.New("table not found")
	// ErrTableUnreadable is returned when a caller opens a table whose
	// directory entry was corrupted.
	ErrTableUnreadable = errors.New("table schema unreadable")

	// ErrBrokenChain means a BLOB chain revisited a page (a cycle) or pointed
	// outside the container; no meaningful payload can be recovered.
	ErrBrokenChain = errors.New("broken blob chain")

	// ErrOrdinalOutOfRange is returned by random row access past the table's
	// declared row count.
	ErrOrdinalOutOfRange = errors.New("row ordinal out of range")

	// ErrClosed is returned by operations on a closed container.
	ErrClosed = errors.New("container is closed")
)

// UnknownTagError reports a column type tag absent from the registry's closed
// set. It is row-scoped: the affected column decodes to an undecodable value
// and the rest of the row proceeds normally.
type UnknownTagError struct {
	Tag    FieldType
	Column string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown field type tag %q for column %q", string(e.Tag), e.Column)
}

// IsUnknownTagError checks if an error (or any error in its chain) reports an
// unrecognized type tag.
func IsUnknownTagError(err error) bool {
	var unknownTag *UnknownTagError
	return errors.As(err, &unknownTag)
}

// CorruptEntryError marks a single table-directory entry that could not be
// parsed. Directory parsing continues past it.
type CorruptEntryError struct {
	Ordinal int    // position of the entry within the directory
	Name    string // table name, if it was recovered before the failure
	Reason  error
}

func (e *CorruptEntryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("corrupted directory entry #%d (%s): %v", e.Ordinal, e.Name, e.Reason)
	}
	return fmt.Sprintf("corrupted directory entry #%d: %v", e.Ordinal, e.Reason)
}

func (e *CorruptEntryError) Unwrap() error { return e.Reason }
