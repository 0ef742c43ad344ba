package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/onecd/core"
)

// Header is the container's fixed prologue at offset 0.
type Header struct {
	Magic         uint32
	Version       uint16
	PageSize      uint32
	PageCount     uint32
	DirectoryPage uint32
}

// parseHeader validates and decodes the prologue bytes. It fails closed:
// every downstream offset calculation depends on the page size, so a
// signature or version mismatch is a hard error, never a warning.
func parseHeader(raw []byte) (Header, error) {
	var h Header
	if len(raw) < core.HeaderSize {
		return h, fmt.Errorf("header needs %d bytes, have %d: %w", core.HeaderSize, len(raw), core.ErrTruncatedFile)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("parse header: %w", err)
	}
	if h.Magic != core.ContainerMagic {
		return h, fmt.Errorf("got magic %#08x, want %#08x: %w", h.Magic, core.ContainerMagic, core.ErrBadSignature)
	}
	if h.Version != core.FormatVersion {
		return h, fmt.Errorf("got version %d, want %d: %w", h.Version, core.FormatVersion, core.ErrUnsupportedVersion)
	}
	if h.PageSize < core.MinPageSize || h.PageSize > core.MaxPageSize || h.PageSize%512 != 0 {
		return h, fmt.Errorf("implausible page size %d: %w", h.PageSize, core.ErrUnsupportedVersion)
	}
	if h.DirectoryPage == 0 || h.DirectoryPage >= h.PageCount {
		return h, fmt.Errorf("directory page %d out of range (page count %d): %w",
			h.DirectoryPage, h.PageCount, core.ErrDirectoryUnreadable)
	}
	return h, nil
}
