package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValueKind discriminates the variants a decoded column value can take.
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindBytes
	KindString
	KindID
	KindDateTime
	KindCounter
	KindBlob
	KindUndecodable
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindID:
		return "id"
	case KindDateTime:
		return "datetime"
	case KindCounter:
		return "counter"
	case KindBlob:
		return "blob"
	case KindUndecodable:
		return "undecodable"
	}
	return "invalid"
}

// BlobHandle is a lazy reference to chain-stored content. It carries the
// locator only; materializing the payload is a separate, explicit operation
// so that scanning a table's primary columns never pays BLOB I/O.
type BlobHandle struct {
	StartPage  uint32
	Length     uint64
	Compressed bool // payload chain is a raw DEFLATE stream
}

// Undecodable carries the raw bytes of a column that could not be decoded,
// together with the reason. It is a first-class value, never an error: one
// bad column must not sink the row it sits in.
type Undecodable struct {
	Tag    FieldType
	Raw    []byte
	Reason string
}

// Value holds one decoded column value. The data field holds the concrete Go
// representation for the kind (bool, Decimal, []byte, string, uuid.UUID,
// time.Time, uint64, BlobHandle or Undecodable).
type Value struct {
	kind ValueKind
	data any
}

func BoolValue(v bool) Value               { return Value{kind: KindBool, data: v} }
func NumberValue(v Decimal) Value          { return Value{kind: KindNumber, data: v} }
func BytesValue(v []byte) Value            { return Value{kind: KindBytes, data: v} }
func StringValue(v string) Value           { return Value{kind: KindString, data: v} }
func IDValue(v uuid.UUID) Value            { return Value{kind: KindID, data: v} }
func DateTimeValue(v time.Time) Value      { return Value{kind: KindDateTime, data: v} }
func CounterValue(v uint64) Value          { return Value{kind: KindCounter, data: v} }
func BlobValue(h BlobHandle) Value         { return Value{kind: KindBlob, data: h} }
func UndecodableValue(u Undecodable) Value { return Value{kind: KindUndecodable, data: u} }

// Kind returns the variant discriminator.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// Number returns the decimal payload.
func (v Value) Number() (Decimal, bool) {
	d, ok := v.data.(Decimal)
	return d, ok
}

// Bytes returns the raw binary payload.
func (v Value) Bytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	return b, ok
}

// String returns the text payload; for non-string kinds it falls back to a
// diagnostic rendering.
func (v Value) String() string {
	if s, ok := v.data.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v.data)
}

// Text returns the text payload with an explicit ok flag.
func (v Value) Text() (string, bool) {
	s, ok := v.data.(string)
	return s, ok
}

// ID returns the 16-byte identifier/version token.
func (v Value) ID() (uuid.UUID, bool) {
	id, ok := v.data.(uuid.UUID)
	return id, ok
}

// DateTime returns the packed date-time payload.
func (v Value) DateTime() (time.Time, bool) {
	t, ok := v.data.(time.Time)
	return t, ok
}

// Counter returns the 8-byte counter/timestamp token.
func (v Value) Counter() (uint64, bool) {
	c, ok := v.data.(uint64)
	return c, ok
}

// Blob returns the lazy chain locator.
func (v Value) Blob() (BlobHandle, bool) {
	h, ok := v.data.(BlobHandle)
	return h, ok
}

// Failure returns the undecodable marker, if this value is one.
func (v Value) Failure() (Undecodable, bool) {
	u, ok := v.data.(Undecodable)
	return u, ok
}

// MarshalJSON renders the value for line-oriented dump output. Every variant
// is wrapped in a small object naming its kind, so downstream consumers can
// tell an undecodable column from a legitimately empty one.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool, KindString, KindCounter:
		return json.Marshal(v.data)
	case KindNumber:
		return json.Marshal(v.data.(Decimal))
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.data.([]byte)))
	case KindID:
		return json.Marshal(v.data.(uuid.UUID).String())
	case KindDateTime:
		return json.Marshal(v.data.(time.Time).Format(time.RFC3339))
	case KindBlob:
		h := v.data.(BlobHandle)
		return json.Marshal(map[string]any{
			"blob":       true,
			"start_page": h.StartPage,
			"length":     h.Length,
			"compressed": h.Compressed,
		})
	case KindUndecodable:
		u := v.data.(Undecodable)
		return json.Marshal(map[string]any{
			"undecodable": true,
			"tag":         string(u.Tag),
			"reason":      u.Reason,
			"raw":         base64.StdEncoding.EncodeToString(u.Raw),
		})
	}
	return nil, fmt.Errorf("cannot marshal value of kind %d", v.kind)
}

// DecodePackedDateTime decodes the 7-byte BCD date-time layout
// (YYYYMMDDHHMMSS, two digits per byte) into a UTC time.
func DecodePackedDateTime(buf []byte) (time.Time, error) {
	if len(buf) < 7 {
		return time.Time{}, fmt.Errorf("packed date-time needs 7 bytes, have %d", len(buf))
	}
	digits := make([]int, 0, 14)
	for _, b := range buf[:7] {
		hi, lo := int(b>>4), int(b&0x0F)
		if hi > 9 || lo > 9 {
			return time.Time{}, fmt.Errorf("invalid BCD byte %#02x in date-time", b)
		}
		digits = append(digits, hi, lo)
	}
	num := func(from, n int) int {
		v := 0
		for _, d := range digits[from : from+n] {
			v = v*10 + d
		}
		return v
	}
	year := num(0, 4)
	month := num(4, 2)
	day := num(6, 2)
	hour := num(8, 2)
	minute := num(10, 2)
	sec := num(12, 2)
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("date-time fields out of range: %04d-%02d-%02d %02d:%02d:%02d",
			year, month, day, hour, minute, sec)
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), nil
}

// EncodePackedDateTime is the inverse of DecodePackedDateTime. It exists for
// fixture construction in tests.
func EncodePackedDateTime(t time.Time) []byte {
	t = t.UTC()
	digits := []int{
		t.Year() / 1000 % 10, t.Year() / 100 % 10, t.Year() / 10 % 10, t.Year() % 10,
		int(t.Month()) / 10, int(t.Month()) % 10,
		t.Day() / 10, t.Day() % 10,
		t.Hour() / 10, t.Hour() % 10,
		t.Minute() / 10, t.Minute() % 10,
		t.Second() / 10, t.Second() % 10,
	}
	buf := make([]byte, 7)
	for i := 0; i < 7; i++ {
		buf[i] = byte(digits[i*2])<<4 | byte(digits[i*2+1])
	}
	return buf
}
