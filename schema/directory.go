package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/onecd/core"
)

// Directory stream layout (little-endian), carried in a chained-page stream:
//
//	table count  u32
//	per table:   entry length u32, then the entry body:
//	  name length u16, name bytes (UTF-8)
//	  row count   u64
//	  first data page u32
//	  column count u16
//	  per column: name length u16, name bytes, tag length u8, tag bytes,
//	              declared length u16
//
// The per-entry length prefix is what makes corruption recoverable: a body
// that fails to parse is skipped wholesale and the next entry is framed by
// its own prefix.
const (
	maxNameLen     = 1024
	maxTagLen      = 8
	maxColumnCount = 4096
	maxEntrySize   = 1 << 20
)

// ParseDirectory decodes the table directory from its page-chain stream. A
// single corrupted entry yields a StatusUnreadable schema and parsing
// continues; only damage to the stream framing itself loses the remainder,
// in which case the already-parsed schemas are returned alongside the error.
func ParseDirectory(r io.Reader, logger *slog.Logger) ([]*TableSchema, error) {
	if logger == nil {
		logger = slog.Default().With("component", "directory")
	}

	var tableCount uint32
	if err := binary.Read(r, binary.LittleEndian, &tableCount); err != nil {
		return nil, fmt.Errorf("read table count: %w", err)
	}

	tables := make([]*TableSchema, 0, tableCount)
	for i := 0; i < int(tableCount); i++ {
		var entryLen uint32
		if err := binary.Read(r, binary.LittleEndian, &entryLen); err != nil {
			return tables, fmt.Errorf("read entry length for table #%d: %w", i, err)
		}
		if entryLen == 0 || entryLen > maxEntrySize {
			return tables, fmt.Errorf("implausible entry length %d for table #%d", entryLen, i)
		}
		body := make([]byte, entryLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return tables, fmt.Errorf("read entry body for table #%d: %w", i, err)
		}

		ts, err := parseEntry(body, i)
		if err != nil {
			name := ""
			if ts != nil {
				name = ts.Name
			}
			corrupt := &core.CorruptEntryError{Ordinal: i, Name: name, Reason: err}
			logger.Warn("skipping corrupted directory entry",
				"ordinal", i, "table", name, "error", err)
			tables = append(tables, &TableSchema{
				Name:    name,
				Ordinal: i,
				Status:  StatusUnreadable,
				Err:     corrupt,
			})
			continue
		}
		tables = append(tables, ts)

		for _, col := range ts.Columns {
			if !col.Type.Known() {
				logger.Warn("unrecognized field type tag, sizing by declared length",
					"table", ts.Name, "column", col.Name,
					"tag", string(col.Type), "declared_length", col.Length)
			}
		}
	}
	return tables, nil
}

// parseEntry decodes one directory entry body. On failure it returns the
// partially filled schema (for name recovery) together with the error.
func parseEntry(body []byte, ordinal int) (*TableSchema, error) {
	r := bytes.NewReader(body)
	ts := &TableSchema{Ordinal: ordinal, Status: StatusReady}

	name, err := readString(r, maxNameLen)
	if err != nil {
		return ts, fmt.Errorf("table name: %w", err)
	}
	if name == "" {
		return ts, fmt.Errorf("empty table name")
	}
	ts.Name = name

	if err := binary.Read(r, binary.LittleEndian, &ts.RowCount); err != nil {
		return ts, fmt.Errorf("row count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ts.DataPage); err != nil {
		return ts, fmt.Errorf("first data page: %w", err)
	}

	var colCount uint16
	if err := binary.Read(r, binary.LittleEndian, &colCount); err != nil {
		return ts, fmt.Errorf("column count: %w", err)
	}
	if colCount == 0 || int(colCount) > maxColumnCount {
		return ts, fmt.Errorf("implausible column count %d", colCount)
	}

	ts.Columns = make([]ColumnSpec, 0, colCount)
	for c := 0; c < int(colCount); c++ {
		colName, err := readString(r, maxNameLen)
		if err != nil {
			return ts, fmt.Errorf("column #%d name: %w", c, err)
		}
		if colName == "" {
			return ts, fmt.Errorf("column #%d has empty name", c)
		}

		var tagLen uint8
		if err := binary.Read(r, binary.LittleEndian, &tagLen); err != nil {
			return ts, fmt.Errorf("column %q tag length: %w", colName, err)
		}
		if tagLen == 0 || int(tagLen) > maxTagLen {
			return ts, fmt.Errorf("column %q has implausible tag length %d", colName, tagLen)
		}
		tag := make([]byte, tagLen)
		if _, err := io.ReadFull(r, tag); err != nil {
			return ts, fmt.Errorf("column %q tag: %w", colName, err)
		}

		var declared uint16
		if err := binary.Read(r, binary.LittleEndian, &declared); err != nil {
			return ts, fmt.Errorf("column %q declared length: %w", colName, err)
		}

		ts.Columns = append(ts.Columns, ColumnSpec{
			Name:   colName,
			Type:   core.FieldType(tag),
			Length: int(declared),
		})
	}
	return ts, nil
}

func readString(r io.Reader, max int) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int(n) > max {
		return "", fmt.Errorf("string length %d exceeds limit %d", n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
