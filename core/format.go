package core

// This file centralizes constants related to the container file format,
// magic numbers, and page-level layout identifiers used across the decoder.

// --- Magic Numbers ---
const (
	// ContainerMagic identifies a 1CD-style container file ("1CDB").
	ContainerMagic uint32 = 0x31434442
)

// --- Format Versions ---
const (
	// FormatVersion is the container format generation this decoder understands.
	FormatVersion uint16 = 8
)

// --- Header Layout ---
const (
	// HeaderSize is the size of the fixed prologue at offset 0.
	// Layout (little-endian): magic u32, version u16, page size u32,
	// page count u32, directory page u32, 6 reserved bytes.
	HeaderSize = 24
)

// --- Page Layout ---
const (
	// PageChainHeaderSize is the per-page header of every chained page:
	// next page id (u32) followed by payload length (u16). Page 0 holds the
	// container header, so a next pointer of 0 terminates a chain.
	PageChainHeaderSize = 6

	// MinPageSize and MaxPageSize bound the page size declared in the header.
	MinPageSize = 512
	MaxPageSize = 64 * 1024
)

// --- Blob Slot Modes ---
// A BLOB-eligible column occupies its declared length inline. The first byte
// of that slot selects how the payload is stored.
const (
	// BlobModeInline: u16 content length follows, then the content itself.
	BlobModeInline uint8 = 0x00
	// BlobModeChain: u32 first chain page, u32 total payload length.
	BlobModeChain uint8 = 0x01
	// BlobModeChainDeflate: like BlobModeChain, but the accumulated chain
	// bytes are a raw DEFLATE stream holding the payload.
	BlobModeChainDeflate uint8 = 0x02
)

// BlobSlotMinSize is the smallest inline slot that can hold a chain locator
// (mode byte + first page + total length).
const BlobSlotMinSize = 9
