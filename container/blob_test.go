package container_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/INLOpen/onecd/container"
	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/internal/testutil"
	"github.com/INLOpen/onecd/schema"
	"github.com/INLOpen/onecd/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobColumns() []schema.ColumnSpec {
	return []schema.ColumnSpec{
		{Name: "_BINARYDATA", Type: core.FieldImage, Length: 16},
	}
}

// blobPayload is deterministic but non-repeating, so an offset mistake in
// chain reassembly cannot cancel out.
func blobPayload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i/251)
	}
	return out
}

func openBlobRow(t *testing.T, path string) (*container.Container, core.BlobHandle) {
	t.Helper()
	c, err := container.Open(container.OpenOptions{FilePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ts, err := c.Schema("_ATTACHMENTS")
	require.NoError(t, err)
	tbl, err := table.Open(c, ts, table.Options{})
	require.NoError(t, err)
	row, err := tbl.Get(0)
	require.NoError(t, err)
	v, ok := row.Field("_BINARYDATA")
	require.True(t, ok)
	h, ok := v.Blob()
	require.True(t, ok, "chain-stored payload must decode to a lazy handle, got %s", v.Kind())
	return c, h
}

func TestResolveBlobSpanningPages(t *testing.T) {
	b := testutil.NewBuilder(1024)
	// 3x the page size, so reassembly must cross at least three chain pages.
	payload := blobPayload(3 * 1024)
	ch := b.ChainBlob(payload, 0)
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, h := openBlobRow(t, b.WriteFile(t))
	assert.Equal(t, uint64(len(payload)), h.Length)

	data, err := c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, data.Truncated)
	assert.True(t, bytes.Equal(payload, data.Bytes), "payload must reconstruct byte-for-byte")

	// Second resolution of the same handle is served from the cache.
	_, err = c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.Greater(t, c.BlobCacheHitRate(), 0.0)
}

func TestResolveBlobShortChainReturnsPartial(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := blobPayload(500)
	ch := b.ChainBlob(payload, 0)
	ch.Length += 300 // declare more than the chain holds
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, h := openBlobRow(t, b.WriteFile(t))
	data, err := c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, data.Truncated)
	assert.Equal(t, payload, data.Bytes)
	assert.Less(t, uint64(len(data.Bytes)), h.Length)
}

func TestResolveBlobCycleIsBrokenChain(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := blobPayload(4 * 1024)
	ch := b.ChainBlob(payload, 0)
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	img := b.Build()
	// Chain pages are allocated consecutively from the start page. Point the
	// second page back at the first to close a loop.
	secondPage := int64(ch.StartPage+1) * 1024
	binary.LittleEndian.PutUint32(img[secondPage:secondPage+4], ch.StartPage)
	path := writeImage(t, img)

	c, h := openBlobRow(t, path)
	done := make(chan error, 1)
	go func() {
		_, err := c.ResolveBlob(context.Background(), h)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrBrokenChain)
	case <-time.After(5 * time.Second):
		t.Fatal("cycle detection did not terminate")
	}
}

func TestResolveBlobDeflateChain(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := bytes.Repeat([]byte("accounts payable "), 400)
	ch := b.ChainBlobDeflate(t, payload, 0)
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, h := openBlobRow(t, b.WriteFile(t))
	require.True(t, h.Compressed)

	data, err := c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, data.Truncated)
	assert.Equal(t, payload, data.Bytes)
}

func TestResolveBlobHugeDeclaredLength(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := blobPayload(500)
	ch := b.ChainBlob(payload, 0)
	ch.Length = 1<<32 - 1 // hostile locator: ~4 GiB declared, one page stored
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, h := openBlobRow(t, b.WriteFile(t))
	data, err := c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, data.Truncated)
	assert.Equal(t, payload, data.Bytes)
}

func TestResolveBlobBadDeflateMarksCorrupt(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := blobPayload(500)
	ch := b.ChainBlob(payload, 0)
	ch.Compressed = true // chain bytes are not a DEFLATE stream
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, h := openBlobRow(t, b.WriteFile(t))
	require.True(t, h.Compressed)

	data, err := c.ResolveBlob(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, data.Corrupt)
	assert.False(t, data.Truncated, "corrupt payload is not a short chain")
	assert.Equal(t, payload, data.Bytes, "raw bytes are kept for triage")
}

func TestResolveBlobCacheKeyedByLocator(t *testing.T) {
	b := testutil.NewBuilder(1024)
	payload := bytes.Repeat([]byte("general ledger "), 300)
	ch := b.ChainBlobDeflate(t, payload, 0)
	// A second row views the same chain pages as an uncompressed payload.
	raw := testutil.Chain{StartPage: ch.StartPage, Length: ch.Length}
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)
	tb.AddRow(t, raw)

	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)
	defer c.Close()

	ts, err := c.Schema("_ATTACHMENTS")
	require.NoError(t, err)
	tbl, err := table.Open(c, ts, table.Options{})
	require.NoError(t, err)

	handleAt := func(ordinal uint64) core.BlobHandle {
		row, err := tbl.Get(ordinal)
		require.NoError(t, err)
		v, ok := row.Field("_BINARYDATA")
		require.True(t, ok)
		h, ok := v.Blob()
		require.True(t, ok)
		return h
	}
	hRaw, hDeflate := handleAt(1), handleAt(0)
	require.Equal(t, hDeflate.StartPage, hRaw.StartPage)

	// Resolving the raw view first must not poison the compressed handle.
	rawData, err := c.ResolveBlob(context.Background(), hRaw)
	require.NoError(t, err)
	inflated, err := c.ResolveBlob(context.Background(), hDeflate)
	require.NoError(t, err)
	assert.Equal(t, payload, inflated.Bytes)
	assert.NotEqual(t, inflated.Bytes, rawData.Bytes)
}

func TestResolveBlobBadStartPage(t *testing.T) {
	b := testutil.NewBuilder(1024)
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, testutil.Chain{StartPage: 9999, Length: 10})

	c, h := openBlobRow(t, b.WriteFile(t))
	_, err := c.ResolveBlob(context.Background(), h)
	assert.ErrorIs(t, err, core.ErrBrokenChain)
}

func TestResolveBlobLazy(t *testing.T) {
	b := testutil.NewBuilder(1024)
	ch := b.ChainBlob(blobPayload(2048), 0)
	tb := b.AddTable("_ATTACHMENTS", blobColumns())
	tb.AddRow(t, ch)

	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)
	defer c.Close()

	ts, err := c.Schema("_ATTACHMENTS")
	require.NoError(t, err)
	tbl, err := table.Open(c, ts, table.Options{})
	require.NoError(t, err)

	// A plain scan must not touch the chain: the handle carries the locator
	// and nothing else.
	it := tbl.Iterator(context.Background())
	defer it.Close()
	for it.Next() {
		v, _ := it.At().Field("_BINARYDATA")
		assert.Equal(t, core.KindBlob, v.Kind())
	}
	require.NoError(t, it.Error())
	assert.Equal(t, 0.0, c.BlobCacheHitRate(), "no chain resolution happened")
}
