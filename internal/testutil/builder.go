// Package testutil builds synthetic container files for tests. The library
// itself is strictly read-only; the encoding side of the format lives here,
// in test scope, as the fixtures' source of truth.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/schema"
	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
)

// Chain is a pre-built blob chain locator, produced by Builder.ChainBlob and
// passed as a row value for a BLOB-eligible column.
type Chain struct {
	StartPage  uint32
	Length     uint32
	Compressed bool
}

// Builder assembles a container image page by page.
type Builder struct {
	pageSize uint32
	pages    [][]byte // index is the page id; page 0 is the header page
	tables   []*TableBuilder
	rawDir   [][]byte // raw directory entry bodies, for corruption tests
}

// NewBuilder starts a container image with the given page size.
func NewBuilder(pageSize uint32) *Builder {
	b := &Builder{pageSize: pageSize}
	b.pages = append(b.pages, make([]byte, pageSize)) // reserve page 0
	return b
}

// PageSize returns the page size of the image under construction.
func (b *Builder) PageSize() uint32 { return b.pageSize }

func (b *Builder) allocPage() uint32 {
	b.pages = append(b.pages, make([]byte, b.pageSize))
	return uint32(len(b.pages) - 1)
}

// ChainBlob writes data as a chained-page payload, chunkSize bytes of payload
// per page (0 selects the page's full capacity), and returns its locator.
func (b *Builder) ChainBlob(data []byte, chunkSize int) Chain {
	capacity := int(b.pageSize) - core.PageChainHeaderSize
	if chunkSize <= 0 || chunkSize > capacity {
		chunkSize = capacity
	}

	var ids []uint32
	for off := 0; off == 0 || off < len(data); off += chunkSize {
		ids = append(ids, b.allocPage())
	}
	for i, id := range ids {
		from := i * chunkSize
		to := from + chunkSize
		if to > len(data) {
			to = len(data)
		}
		chunk := data[from:to]
		var next uint32
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		page := b.pages[id]
		binary.LittleEndian.PutUint32(page[0:4], next)
		binary.LittleEndian.PutUint16(page[4:6], uint16(len(chunk)))
		copy(page[core.PageChainHeaderSize:], chunk)
	}
	return Chain{StartPage: ids[0], Length: uint32(len(data))}
}

// ChainBlobDeflate deflates data and writes the compressed stream as a chain.
// The locator's length is the compressed byte count, matching the on-disk
// contract for compressed chains.
func (b *Builder) ChainBlobDeflate(t *testing.T, data []byte, chunkSize int) Chain {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("deflate blob: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close deflate: %v", err)
	}
	ch := b.ChainBlob(buf.Bytes(), chunkSize)
	ch.Compressed = true
	return ch
}

// AddTable registers a table and returns a builder for its rows.
func (b *Builder) AddTable(name string, cols []schema.ColumnSpec) *TableBuilder {
	tb := &TableBuilder{
		b:    b,
		name: name,
		cols: cols,
	}
	b.tables = append(b.tables, tb)
	return tb
}

// AddRawDirectoryEntry injects an arbitrary entry body into the directory,
// for exercising per-entry corruption handling.
func (b *Builder) AddRawDirectoryEntry(body []byte) {
	b.rawDir = append(b.rawDir, body)
}

// TableBuilder accumulates encoded rows for one table.
type TableBuilder struct {
	b    *Builder
	name string
	cols []schema.ColumnSpec
	rows [][]byte

	declaredOverride *uint64
}

// RowSize returns the encoded size of one row slot.
func (tb *TableBuilder) RowSize() int {
	size := 1
	for _, c := range tb.cols {
		size += c.InlineSize()
	}
	return size
}

// SetDeclaredRowCount overrides the row count written to the directory, to
// model tables whose physical pages fall short of their declaration.
func (tb *TableBuilder) SetDeclaredRowCount(n uint64) {
	tb.declaredOverride = &n
}

// AddEmptyRow appends a vacated slot.
func (tb *TableBuilder) AddEmptyRow() {
	tb.rows = append(tb.rows, make([]byte, tb.RowSize()))
}

// AddRow encodes one present row. vals must match the column list in order;
// see encodeColumn for the accepted Go types per tag.
func (tb *TableBuilder) AddRow(t *testing.T, vals ...any) {
	t.Helper()
	if len(vals) != len(tb.cols) {
		t.Fatalf("table %s: row has %d values, schema has %d columns", tb.name, len(vals), len(tb.cols))
	}
	row := make([]byte, 1, tb.RowSize())
	row[0] = 1
	for i, col := range tb.cols {
		enc, err := encodeColumn(col, vals[i])
		if err != nil {
			t.Fatalf("table %s column %s: %v", tb.name, col.Name, err)
		}
		row = append(row, enc...)
	}
	tb.rows = append(tb.rows, row)
}

func (tb *TableBuilder) declaredRowCount() uint64 {
	if tb.declaredOverride != nil {
		return *tb.declaredOverride
	}
	return uint64(len(tb.rows))
}

// writeDataPages lays the table's rows into chained pages and returns the
// first page id (0 when the table has no rows).
func (tb *TableBuilder) writeDataPages() uint32 {
	if len(tb.rows) == 0 {
		return 0
	}
	rowSize := tb.RowSize()
	perPage := (int(tb.b.pageSize) - core.PageChainHeaderSize) / rowSize
	if perPage < 1 {
		perPage = 1
	}

	var ids []uint32
	for off := 0; off < len(tb.rows); off += perPage {
		ids = append(ids, tb.b.allocPage())
	}
	for i, id := range ids {
		from := i * perPage
		to := from + perPage
		if to > len(tb.rows) {
			to = len(tb.rows)
		}
		var next uint32
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		page := tb.b.pages[id]
		binary.LittleEndian.PutUint32(page[0:4], next)
		binary.LittleEndian.PutUint16(page[4:6], uint16((to-from)*rowSize))
		at := core.PageChainHeaderSize
		for _, row := range tb.rows[from:to] {
			copy(page[at:], row)
			at += rowSize
		}
	}
	return ids[0]
}

// Build finalizes the image: data pages, then the directory chain, then the
// header, and returns the raw container bytes.
func (b *Builder) Build() []byte {
	dataPages := make([]uint32, len(b.tables))
	for i, tb := range b.tables {
		dataPages[i] = tb.writeDataPages()
	}

	var dir bytes.Buffer
	binary.Write(&dir, binary.LittleEndian, uint32(len(b.tables)+len(b.rawDir)))
	for i, tb := range b.tables {
		body := encodeDirectoryEntry(tb, dataPages[i])
		binary.Write(&dir, binary.LittleEndian, uint32(len(body)))
		dir.Write(body)
	}
	for _, body := range b.rawDir {
		binary.Write(&dir, binary.LittleEndian, uint32(len(body)))
		dir.Write(body)
	}
	dirPage := b.writeChain(dir.Bytes())

	header := b.pages[0]
	binary.LittleEndian.PutUint32(header[0:4], core.ContainerMagic)
	binary.LittleEndian.PutUint16(header[4:6], core.FormatVersion)
	binary.LittleEndian.PutUint32(header[6:10], b.pageSize)
	binary.LittleEndian.PutUint32(header[10:14], uint32(len(b.pages)))
	binary.LittleEndian.PutUint32(header[14:18], dirPage)

	return bytes.Join(b.pages, nil)
}

// WriteFile builds the image and writes it under t.TempDir.
func (b *Builder) WriteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.1cd")
	if err := os.WriteFile(path, b.Build(), 0o644); err != nil {
		t.Fatalf("write container: %v", err)
	}
	return path
}

func (b *Builder) writeChain(data []byte) uint32 {
	ch := b.ChainBlob(data, 0)
	return ch.StartPage
}

func encodeDirectoryEntry(tb *TableBuilder, dataPage uint32) []byte {
	var body bytes.Buffer
	writeString := func(s string) {
		binary.Write(&body, binary.LittleEndian, uint16(len(s)))
		body.WriteString(s)
	}
	writeString(tb.name)
	binary.Write(&body, binary.LittleEndian, tb.declaredRowCount())
	binary.Write(&body, binary.LittleEndian, dataPage)
	binary.Write(&body, binary.LittleEndian, uint16(len(tb.cols)))
	for _, col := range tb.cols {
		writeString(col.Name)
		body.WriteByte(byte(len(col.Type)))
		body.WriteString(string(col.Type))
		binary.Write(&body, binary.LittleEndian, uint16(col.Length))
	}
	return body.Bytes()
}

// encodeColumn encodes one value into a column's exact inline size.
// Accepted types: bool for L; []byte for B; int64 or string digits for N;
// string for NC/NVC; uuid.UUID for RV; uint64 for NT; time.Time for DT;
// []byte / string (inline) or Chain for I and T. A raw []byte of the exact
// inline size passes through verbatim for any tag, which is how tests plant
// malformed slots.
func encodeColumn(col schema.ColumnSpec, val any) ([]byte, error) {
	size := col.InlineSize()
	if raw, ok := val.(RawSlot); ok {
		if len(raw) != size {
			return nil, fmt.Errorf("raw slot is %d bytes, column needs %d", len(raw), size)
		}
		return []byte(raw), nil
	}
	out := make([]byte, size)

	switch col.Type {
	case core.FieldBool:
		v, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", val)
		}
		if v {
			out[0] = 1
		}

	case core.FieldBinary:
		v, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("want []byte, got %T", val)
		}
		copy(out, v)

	case core.FieldNumeric:
		digits, neg, err := numericDigits(val, col.Length)
		if err != nil {
			return nil, err
		}
		nibbles := make([]byte, 0, col.Length+2)
		sign := byte(1)
		if neg {
			sign = 0
		}
		nibbles = append(nibbles, sign)
		for _, d := range digits {
			nibbles = append(nibbles, byte(d-'0'))
		}
		for i, n := range nibbles {
			if i%2 == 0 {
				out[i/2] |= n << 4
			} else {
				out[i/2] |= n
			}
		}

	case core.FieldChar:
		v, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", val)
		}
		putUTF16(out, v, col.Length)

	case core.FieldVarChar:
		v, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", val)
		}
		units := utf16.Encode([]rune(v))
		if len(units) > col.Length {
			units = units[:col.Length]
		}
		binary.LittleEndian.PutUint16(out[0:2], uint16(len(units)))
		for i, u := range units {
			binary.LittleEndian.PutUint16(out[2+i*2:], u)
		}

	case core.FieldVersion:
		v, ok := val.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("want uuid.UUID, got %T", val)
		}
		copy(out, v[:])

	case core.FieldCounter:
		v, ok := val.(uint64)
		if !ok {
			return nil, fmt.Errorf("want uint64, got %T", val)
		}
		binary.LittleEndian.PutUint64(out, v)

	case core.FieldDateTime:
		v, ok := val.(time.Time)
		if !ok {
			return nil, fmt.Errorf("want time.Time, got %T", val)
		}
		copy(out, core.EncodePackedDateTime(v))

	case core.FieldImage, core.FieldText:
		switch v := val.(type) {
		case Chain:
			if size < core.BlobSlotMinSize {
				return nil, fmt.Errorf("slot of %d bytes cannot hold a chain locator", size)
			}
			out[0] = core.BlobModeChain
			if v.Compressed {
				out[0] = core.BlobModeChainDeflate
			}
			binary.LittleEndian.PutUint32(out[1:5], v.StartPage)
			binary.LittleEndian.PutUint32(out[5:9], v.Length)
		case []byte:
			return inlineBlobSlot(out, v)
		case string:
			return inlineBlobSlot(out, []byte(v))
		default:
			return nil, fmt.Errorf("want Chain, []byte or string, got %T", val)
		}

	default:
		return nil, fmt.Errorf("cannot encode tag %q (use RawSlot)", string(col.Type))
	}
	return out, nil
}

// RawSlot passes pre-encoded bytes through for any column, sized exactly to
// the inline slot.
type RawSlot []byte

func inlineBlobSlot(out, content []byte) ([]byte, error) {
	if len(content) > len(out)-3 {
		return nil, fmt.Errorf("inline blob of %d bytes exceeds slot capacity %d", len(content), len(out)-3)
	}
	out[0] = core.BlobModeInline
	binary.LittleEndian.PutUint16(out[1:3], uint16(len(content)))
	copy(out[3:], content)
	return out, nil
}

func putUTF16(out []byte, s string, chars int) {
	units := utf16.Encode([]rune(s))
	if len(units) > chars {
		units = units[:chars]
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
}

func numericDigits(val any, length int) (digits string, neg bool, err error) {
	switch v := val.(type) {
	case int64:
		if v < 0 {
			neg = true
			v = -v
		}
		digits = fmt.Sprintf("%0*d", length, v)
	case int:
		return numericDigits(int64(v), length)
	case string:
		digits = v
	default:
		return "", false, fmt.Errorf("want int64 or digit string, got %T", val)
	}
	if len(digits) > length {
		return "", false, fmt.Errorf("value %q wider than %d digits", digits, length)
	}
	for len(digits) < length {
		digits = "0" + digits
	}
	return digits, neg, nil
}
