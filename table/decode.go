package table

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/schema"
	"github.com/google/uuid"
)

// ReasonTruncatedRow marks columns lost to a row buffer shorter than the
// schema predicts.
const ReasonTruncatedRow = "TruncatedRow"

// DecodeRow decodes one row slot into a core.Row. It never fails: an empty
// marker yields a valid absent row, a short buffer yields the maximal prefix
// of decodable columns with the remainder marked undecodable, and an unknown
// column tag poisons only its own column.
func DecodeRow(ts *schema.TableSchema, ordinal uint64, raw []byte) core.Row {
	row := core.Row{Ordinal: ordinal}

	if len(raw) == 0 {
		// Not even the presence marker survived. Marking the row present
		// with every column truncated keeps corruption distinguishable from
		// a legitimately vacated slot.
		row.Present = true
		row.Fields = make(map[string]core.Value, len(ts.Columns))
		for _, col := range ts.Columns {
			row.Fields[col.Name] = truncatedValue(col, nil)
		}
		return row
	}

	if raw[0]&1 == 0 {
		// Vacated slot: expected steady-state data, not a fault. No column
		// bytes are read, even if the schema declares more than the buffer
		// holds.
		return row
	}
	row.Present = true
	row.Fields = make(map[string]core.Value, len(ts.Columns))

	offset := 1
	truncated := false
	for _, col := range ts.Columns {
		size := col.InlineSize()
		if truncated || offset+size > len(raw) {
			var rest []byte
			if !truncated && offset < len(raw) {
				rest = append([]byte(nil), raw[offset:]...)
			}
			row.Fields[col.Name] = truncatedValue(col, rest)
			truncated = true
			continue
		}
		row.Fields[col.Name] = decodeColumn(col, raw[offset:offset+size])
		offset += size
	}
	return row
}

func truncatedValue(col schema.ColumnSpec, rest []byte) core.Value {
	return core.UndecodableValue(core.Undecodable{
		Tag:    col.Type,
		Raw:    rest,
		Reason: ReasonTruncatedRow,
	})
}

// decodeColumn decodes one column's inline bytes per its type tag. buf is
// exactly the column's inline size.
func decodeColumn(col schema.ColumnSpec, buf []byte) core.Value {
	switch col.Type {
	case core.FieldBool:
		return core.BoolValue(buf[0] != 0)

	case core.FieldBinary:
		return core.BytesValue(append([]byte(nil), buf...))

	case core.FieldNumeric:
		d, err := core.DecodePackedDecimal(buf, col.Length)
		if err != nil {
			return undecodable(col, buf, err.Error())
		}
		return core.NumberValue(d)

	case core.FieldChar:
		return core.StringValue(decodeUTF16(buf, col.Length))

	case core.FieldVarChar:
		n := int(binary.LittleEndian.Uint16(buf[0:2]))
		if n > col.Length {
			// The prefix promises more characters than the slot holds; clamp
			// rather than read past the declared capacity.
			n = col.Length
		}
		return core.StringValue(decodeUTF16(buf[2:], n))

	case core.FieldVersion:
		id, err := uuid.FromBytes(buf[:16])
		if err != nil {
			return undecodable(col, buf, err.Error())
		}
		return core.IDValue(id)

	case core.FieldCounter:
		return core.CounterValue(binary.LittleEndian.Uint64(buf[:8]))

	case core.FieldDateTime:
		t, err := core.DecodePackedDateTime(buf)
		if err != nil {
			return undecodable(col, buf, err.Error())
		}
		return core.DateTimeValue(t)

	case core.FieldImage, core.FieldText:
		return decodeBlobSlot(col, buf)
	}

	// Unknown tag: the registry sized the slot by declared length, but no
	// decoding rule exists. The raw bytes and the offending tag travel with
	// the value so downstream triage loses nothing.
	err := &core.UnknownTagError{Tag: col.Type, Column: col.Name}
	return undecodable(col, buf, err.Error())
}

// decodeBlobSlot decodes the inline slot of a BLOB-eligible column: either
// the content itself or a locator for an out-of-row chain.
func decodeBlobSlot(col schema.ColumnSpec, buf []byte) core.Value {
	if len(buf) == 0 {
		return undecodable(col, buf, "blob slot has zero declared length")
	}
	mode := buf[0]
	switch mode {
	case core.BlobModeInline:
		if len(buf) < 3 {
			return undecodable(col, buf, "blob slot too small for inline header")
		}
		n := int(binary.LittleEndian.Uint16(buf[1:3]))
		if n > len(buf)-3 {
			n = len(buf) - 3
		}
		content := buf[3 : 3+n]
		if col.Type == core.FieldText {
			return core.StringValue(string(content))
		}
		return core.BytesValue(append([]byte(nil), content...))

	case core.BlobModeChain, core.BlobModeChainDeflate:
		if len(buf) < core.BlobSlotMinSize {
			return undecodable(col, buf, "blob slot too small for chain locator")
		}
		return core.BlobValue(core.BlobHandle{
			StartPage:  binary.LittleEndian.Uint32(buf[1:5]),
			Length:     uint64(binary.LittleEndian.Uint32(buf[5:9])),
			Compressed: mode == core.BlobModeChainDeflate,
		})
	}
	return undecodable(col, buf, "unrecognized blob slot mode")
}

func undecodable(col schema.ColumnSpec, buf []byte, reason string) core.Value {
	return core.UndecodableValue(core.Undecodable{
		Tag:    col.Type,
		Raw:    append([]byte(nil), buf...),
		Reason: reason,
	})
}

// decodeUTF16 decodes up to chars UTF-16LE code units from buf, dropping
// trailing NUL padding.
func decodeUTF16(buf []byte, chars int) string {
	if chars > len(buf)/2 {
		chars = len(buf) / 2
	}
	units := make([]uint16, chars)
	for i := 0; i < chars; i++ {
		units[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units))
}
