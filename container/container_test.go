package container_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/INLOpen/onecd/container"
	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/internal/testutil"
	"github.com/INLOpen/onecd/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docColumns() []schema.ColumnSpec {
	return []schema.ColumnSpec{
		{Name: "_POSTED", Type: core.FieldBool},
		{Name: "_NUMBER", Type: core.FieldVarChar, Length: 11},
	}
}

func TestOpenListsTables(t *testing.T) {
	b := testutil.NewBuilder(4096)
	doc := b.AddTable("_DOCUMENT1", docColumns())
	doc.AddRow(t, true, "A-001")
	b.AddTable("_REFERENCE5", []schema.ColumnSpec{
		{Name: "_CODE", Type: core.FieldChar, Length: 9},
	})

	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, uint32(4096), c.PageSize())

	tables := c.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "_DOCUMENT1", tables[0].Name)
	assert.Equal(t, "_REFERENCE5", tables[1].Name)

	ts, err := c.Schema("_DOCUMENT1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ts.RowCount)

	_, err = c.Schema("_MISSING")
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestOpenRejectsBadSignature(t *testing.T) {
	b := testutil.NewBuilder(4096)
	b.AddTable("T", docColumns())
	img := b.Build()
	binary.LittleEndian.PutUint32(img[0:4], 0xDEADBEEF)
	path := writeImage(t, img)

	_, err := container.Open(container.OpenOptions{FilePath: path})
	assert.ErrorIs(t, err, core.ErrBadSignature)
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	b := testutil.NewBuilder(4096)
	b.AddTable("T", docColumns())
	img := b.Build()
	binary.LittleEndian.PutUint16(img[4:6], core.FormatVersion+1)
	path := writeImage(t, img)

	_, err := container.Open(container.OpenOptions{FilePath: path})
	assert.ErrorIs(t, err, core.ErrUnsupportedVersion)
}

func TestOpenRejectsTruncatedPrologue(t *testing.T) {
	path := writeImage(t, []byte{0x42, 0x44})
	_, err := container.Open(container.OpenOptions{FilePath: path})
	assert.ErrorIs(t, err, core.ErrTruncatedFile)
}

func TestOpenRejectsImplausiblePageSize(t *testing.T) {
	b := testutil.NewBuilder(4096)
	b.AddTable("T", docColumns())
	img := b.Build()
	binary.LittleEndian.PutUint32(img[6:10], 100) // not a sane page size
	path := writeImage(t, img)

	_, err := container.Open(container.OpenOptions{FilePath: path})
	assert.ErrorIs(t, err, core.ErrUnsupportedVersion)
}

func TestOpenKeepsGoodTablesPastCorruptedEntry(t *testing.T) {
	b := testutil.NewBuilder(4096)
	good := b.AddTable("GOOD", docColumns())
	good.AddRow(t, false, "B-002")
	// Name parses, body ends before the row count.
	b.AddRawDirectoryEntry([]byte{0x03, 0x00, 'B', 'A', 'D'})

	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)
	defer c.Close()

	tables := c.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, schema.StatusReady, tables[0].Status)
	assert.Equal(t, schema.StatusUnreadable, tables[1].Status)

	_, err = c.Schema("BAD")
	assert.ErrorIs(t, err, core.ErrTableUnreadable)
	_, err = c.Schema("GOOD")
	assert.NoError(t, err)
}

func TestReadPageBounds(t *testing.T) {
	b := testutil.NewBuilder(4096)
	b.AddTable("T", docColumns())
	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ReadPage(c.PageCount())
	assert.Error(t, err)
}

func TestClosedContainer(t *testing.T) {
	b := testutil.NewBuilder(4096)
	b.AddTable("T", docColumns())
	c, err := container.Open(container.OpenOptions{FilePath: b.WriteFile(t)})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "double close is harmless")

	_, err = c.ReadPage(1)
	assert.ErrorIs(t, err, core.ErrClosed)
}

func writeImage(t *testing.T, img []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.1cd")
	require.NoError(t, os.WriteFile(path, img, 0o644))
	return path
}
