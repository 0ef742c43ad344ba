package table

import (
	"context"
	"fmt"

	"github.com/INLOpen/onecd/core"
)

// Iterator is a forward iterator over a table's rows in ordinal order.
// Iteration is restartable at the table level: a fresh Iterator re-reads
// pages from the container rather than caching the table in memory.
//
// Usage follows the usual pattern:
//
//	it := tbl.Iterator(ctx)
//	defer it.Close()
//	for it.Next() {
//	    row := it.At()
//	    ...
//	}
//	if err := it.Error(); err != nil { ... }
type Iterator struct {
	t   *Table
	ctx context.Context

	pageIdx   int
	page      []byte
	rowInPage int

	ordinal uint64
	row     core.Row
	valid   bool
	err     error
	closed  bool
}

// Iterator starts a fresh sweep over the table. The context is checked
// between rows so a caller can abandon a scan of a very large table without
// finishing it.
func (t *Table) Iterator(ctx context.Context) *Iterator {
	if ctx == nil {
		ctx = context.Background()
	}
	it := &Iterator{t: t, ctx: ctx}
	if err := t.loadPageList(); err != nil {
		it.err = err
	}
	return it
}

// Next advances to the next row. It returns false at the end of the table,
// on a failed page read, or once the context is done; Error disambiguates.
func (it *Iterator) Next() bool {
	it.valid = false
	if it.closed || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.ordinal >= it.t.Len() {
		return false
	}

	// Ordinals past the physical page capacity still yield rows, marked
	// truncated, so that a sweep always produces exactly Len rows.
	if it.ordinal >= it.t.capacity {
		it.row = DecodeRow(it.t.schema, it.ordinal, nil)
		it.ordinal++
		it.valid = true
		return true
	}

	for it.pageIdx < len(it.t.pages) && it.rowInPage >= it.t.pages[it.pageIdx].rows {
		it.pageIdx++
		it.rowInPage = 0
		it.page = nil
	}
	pg := it.t.pages[it.pageIdx]
	if it.page == nil {
		page, err := it.t.c.ReadPage(pg.id)
		if err != nil {
			it.err = fmt.Errorf("table %q page %d: %w", it.t.schema.Name, pg.id, err)
			return false
		}
		it.page = page
	}

	slot := core.PageChainHeaderSize + it.rowInPage*it.t.rowSize
	raw := it.page[slot : slot+it.t.rowSize]
	it.row = DecodeRow(it.t.schema, it.ordinal, raw)
	it.ordinal++
	it.rowInPage++
	it.valid = true
	return true
}

// At returns the current row. Only valid after a true Next.
func (it *Iterator) At() core.Row { return it.row }

// Error returns the first failure encountered, or the context's error if the
// scan was abandoned.
func (it *Iterator) Error() error { return it.err }

// Close releases the iterator. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.closed = true
	it.page = nil
	return nil
}
