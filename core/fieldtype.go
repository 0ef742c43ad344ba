package core

// FieldType is the short ASCII tag identifying a column's on-disk encoding.
// The set of tags is closed for a given format generation; tags outside it
// are preserved verbatim and handled as unknown rather than guessed at.
type FieldType string

const (
	// FieldBinary is fixed-capacity raw binary, declared length in bytes.
	FieldBinary FieldType = "B"
	// FieldBool is a one-byte boolean.
	FieldBool FieldType = "L"
	// FieldNumeric is a packed-decimal number; declared length counts digits,
	// two per byte, with a leading sign nibble.
	FieldNumeric FieldType = "N"
	// FieldChar is fixed-width UTF-16 text, declared length in characters.
	FieldChar FieldType = "NC"
	// FieldVarChar is UTF-16 text with a two-byte inline character count,
	// capacity of declared length characters.
	FieldVarChar FieldType = "NVC"
	// FieldVersion is the 16-byte reference/version token. Declared length
	// is ignored; the token size is canonical.
	FieldVersion FieldType = "RV"
	// FieldCounter is an 8-byte numeric timestamp/counter token.
	FieldCounter FieldType = "NT"
	// FieldDateTime is a 7-byte packed (BCD) date-time.
	FieldDateTime FieldType = "DT"
	// FieldImage is an out-of-row binary payload (BLOB-eligible).
	FieldImage FieldType = "I"
	// FieldText is an out-of-row text payload (BLOB-eligible).
	FieldText FieldType = "T"
)

// Known reports whether the tag belongs to the closed set this decoder
// understands. Unknown tags still get a best-effort size (see SizeOf) but
// their values decode as undecodable with the tag recorded.
func (t FieldType) Known() bool {
	switch t {
	case FieldBinary, FieldBool, FieldNumeric, FieldChar, FieldVarChar,
		FieldVersion, FieldCounter, FieldDateTime, FieldImage, FieldText:
		return true
	}
	return false
}

// BlobEligible reports whether the tag's payload may live out-of-row in a
// chain of auxiliary pages. The inline slot of such a column holds either the
// content itself or a chain locator.
func (t FieldType) BlobEligible() bool {
	return t == FieldImage || t == FieldText
}

// SizeOf returns the exact byte size of the inline portion of a column with
// this tag and declared length. It is a pure function and never fails: every
// known tag has a deterministic formula, and an unknown tag falls back to the
// declared length verbatim. Callers must check Known() and log a diagnostic
// before trusting the fallback; silently assuming a fixed size for an
// unrecognized tag is exactly the failure this registry exists to prevent.
func (t FieldType) SizeOf(declaredLength int) int {
	if declaredLength < 0 {
		declaredLength = 0
	}
	switch t {
	case FieldBool:
		return 1
	case FieldBinary:
		return declaredLength
	case FieldNumeric:
		// Two digits per byte, plus one byte carrying the sign nibble.
		return declaredLength/2 + 1
	case FieldChar:
		return declaredLength * 2
	case FieldVarChar:
		// Two-byte actual character count, then the full declared capacity.
		return declaredLength*2 + 2
	case FieldVersion:
		// Canonical token size; the declared length is not trusted here.
		return 16
	case FieldCounter:
		return 8
	case FieldDateTime:
		return 7
	case FieldImage, FieldText:
		return declaredLength
	default:
		return declaredLength
	}
}
