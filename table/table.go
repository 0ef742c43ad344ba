// Package table is the caller-facing access surface over one table: random
// access by ordinal, restartable forward iteration and a presence bitmap,
// all hiding page boundaries. Row ordinal order is stable and matches
// on-disk page order; no caching layer is allowed to reorder it.
package table

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/INLOpen/onecd/container"
	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/schema"
	"github.com/RoaringBitmap/roaring/roaring64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options holds optional collaborators for a table accessor.
type Options struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

// pageInfo records one data page's position in the table's row space. The
// page list is tiny (ids and counts only) and is built lazily on first
// access; page contents are always re-read from the container.
type pageInfo struct {
	id           uint32
	rows         int
	startOrdinal uint64
}

// Table provides read access to one table's rows. It is safe for concurrent
// readers; all underlying reads are positional.
type Table struct {
	c      *container.Container
	schema *schema.TableSchema

	rowSize int
	logger  *slog.Logger
	tracer  trace.Tracer

	pagesOnce sync.Once
	pages     []pageInfo
	pagesErr  error
	capacity  uint64 // rows physically present across all pages
}

// Open builds an accessor for one ready table.
func Open(c *container.Container, ts *schema.TableSchema, opts Options) (*Table, error) {
	if ts.Status != schema.StatusReady {
		return nil, fmt.Errorf("table %q: %w", ts.Name, core.ErrTableUnreadable)
	}
	rowSize := ts.RowSize()
	if rowSize <= 1 && len(ts.Columns) > 0 {
		return nil, fmt.Errorf("table %q has zero-width rows: %w", ts.Name, core.ErrTableUnreadable)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		c:       c,
		schema:  ts,
		rowSize: rowSize,
		logger:  logger.With("table", ts.Name),
		tracer:  opts.Tracer,
	}, nil
}

// Schema returns the table's immutable schema.
func (t *Table) Schema() *schema.TableSchema { return t.schema }

// Len returns the declared row count. Every ordinal in [0, Len) is
// addressable by Get and yielded exactly once by an iterator.
func (t *Table) Len() uint64 { return t.schema.RowCount }

// Get decodes the row at the given ordinal. Rows whose bytes fell off the
// end of a truncated table decode with every column marked truncated rather
// than failing, so a full-table sweep completes with annotated gaps.
func (t *Table) Get(ordinal uint64) (core.Row, error) {
	if ordinal >= t.schema.RowCount {
		return core.Row{}, fmt.Errorf("ordinal %d, table %q has %d rows: %w",
			ordinal, t.schema.Name, t.schema.RowCount, core.ErrOrdinalOutOfRange)
	}
	if err := t.loadPageList(); err != nil {
		return core.Row{}, err
	}
	if ordinal >= t.capacity {
		return DecodeRow(t.schema, ordinal, nil), nil
	}

	idx := sort.Search(len(t.pages), func(i int) bool {
		return t.pages[i].startOrdinal+uint64(t.pages[i].rows) > ordinal
	})
	pg := t.pages[idx]
	page, err := t.c.ReadPage(pg.id)
	if err != nil {
		return core.Row{}, fmt.Errorf("table %q page %d: %w", t.schema.Name, pg.id, err)
	}
	slot := int(ordinal-pg.startOrdinal) * t.rowSize
	raw := page[core.PageChainHeaderSize+slot : core.PageChainHeaderSize+slot+t.rowSize]
	return DecodeRow(t.schema, ordinal, raw), nil
}

// PresenceMap sweeps the table and returns a bitmap of occupied ordinals.
// The zero bits inside [0, Len) are the vacated slots.
func (t *Table) PresenceMap(ctx context.Context) (*roaring64.Bitmap, error) {
	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, "Table.PresenceMap")
		span.SetAttributes(attribute.String("table.name", t.schema.Name))
		defer span.End()
	}

	bm := roaring64.New()
	it := t.Iterator(ctx)
	defer it.Close()
	for it.Next() {
		row := it.At()
		if row.Present {
			bm.Add(row.Ordinal)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return bm, nil
}

// loadPageList walks the table's data-page chain once, recording page ids
// and per-page row counts. Contents are not retained.
func (t *Table) loadPageList() error {
	t.pagesOnce.Do(func() {
		if t.schema.DataPage == 0 {
			return
		}
		visited := make(map[uint32]struct{})
		next := t.schema.DataPage
		var ordinal uint64
		for next != 0 {
			if _, seen := visited[next]; seen {
				t.pagesErr = fmt.Errorf("table %q data chain revisits page %d: %w",
					t.schema.Name, next, core.ErrBrokenChain)
				return
			}
			visited[next] = struct{}{}

			hdr, payloadLen, err := t.readChainHeader(next)
			if err != nil {
				t.pagesErr = err
				return
			}
			rows := payloadLen / t.rowSize
			t.pages = append(t.pages, pageInfo{id: next, rows: rows, startOrdinal: ordinal})
			ordinal += uint64(rows)
			next = hdr
		}
		t.capacity = ordinal
		if t.capacity < t.schema.RowCount {
			t.logger.Warn("table holds fewer row slots than its declared count",
				"declared", t.schema.RowCount, "physical", t.capacity)
		}
	})
	return t.pagesErr
}

func (t *Table) readChainHeader(id uint32) (next uint32, payloadLen int, err error) {
	var hdr [core.PageChainHeaderSize]byte
	off := int64(id) * int64(t.c.PageSize())
	if _, err := t.c.ReadAt(hdr[:], off); err != nil {
		return 0, 0, fmt.Errorf("table %q chain header at page %d: %w", t.schema.Name, id, err)
	}
	next = uint32(hdr[0]) | uint32(hdr[1])<<8 | uint32(hdr[2])<<16 | uint32(hdr[3])<<24
	payloadLen = int(hdr[4]) | int(hdr[5])<<8
	if max := int(t.c.PageSize()) - core.PageChainHeaderSize; payloadLen > max {
		return 0, 0, fmt.Errorf("table %q page %d declares payload %d beyond page size: %w",
			t.schema.Name, id, payloadLen, core.ErrBrokenChain)
	}
	return next, payloadLen, nil
}
