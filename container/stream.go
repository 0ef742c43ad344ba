package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/onecd/core"
)

// chainReader is an io.Reader over a chained-page stream. Every chained page
// opens with {next page id u32, payload length u16}; page 0 holds the
// container header, so next == 0 terminates the chain. A revisited page id is
// a cycle and surfaces as ErrBrokenChain instead of looping forever.
type chainReader struct {
	c       *Container
	next    uint32
	payload []byte
	visited map[uint32]struct{}
	err     error
}

func (c *Container) openChain(start uint32) *chainReader {
	return &chainReader{
		c:       c,
		next:    start,
		visited: make(map[uint32]struct{}),
	}
}

func (r *chainReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	for len(r.payload) == 0 {
		if r.next == 0 {
			r.err = io.EOF
			return 0, r.err
		}
		if err := r.advance(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n := copy(p, r.payload)
	r.payload = r.payload[n:]
	return n, nil
}

// advance loads the page r.next points at and exposes its payload.
func (r *chainReader) advance() error {
	id := r.next
	if _, seen := r.visited[id]; seen {
		return fmt.Errorf("page %d revisited: %w", id, core.ErrBrokenChain)
	}
	r.visited[id] = struct{}{}

	page, err := r.c.ReadPage(id)
	if err != nil {
		return fmt.Errorf("chain page %d: %w", id, err)
	}
	next := binary.LittleEndian.Uint32(page[0:4])
	payloadLen := int(binary.LittleEndian.Uint16(page[4:6]))
	if payloadLen > len(page)-core.PageChainHeaderSize {
		return fmt.Errorf("chain page %d declares payload %d beyond page size: %w",
			id, payloadLen, core.ErrBrokenChain)
	}
	r.next = next
	r.payload = page[core.PageChainHeaderSize : core.PageChainHeaderSize+payloadLen]
	return nil
}
