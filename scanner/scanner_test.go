package scanner

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerSet(markers ...string) [][]byte {
	out := make([][]byte, len(markers))
	for i, m := range markers {
		out[i] = []byte(m)
	}
	return out
}

func TestScanFindsAllOccurrences(t *testing.T) {
	data := []byte("...._DOCUMENT1....junk...._REFERENCE5.._DOCUMENT1..")
	r := bytes.NewReader(data)

	findings, err := Scan(context.Background(), r, 0, int64(len(data)),
		markerSet("_DOCUMENT1", "_REFERENCE5"), Options{ContextBytes: 4})
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, "_DOCUMENT1", findings[0].Marker)
	assert.Equal(t, int64(4), findings[0].Offset)
	assert.Equal(t, "_REFERENCE5", findings[1].Marker)
	assert.Equal(t, int64(26), findings[1].Offset)
	assert.Equal(t, "_DOCUMENT1", findings[2].Marker)
	assert.Equal(t, int64(39), findings[2].Offset)

	// Context spans the marker plus four bytes either side, clipped at the
	// window edges.
	assert.Equal(t, []byte("...._DOCUMENT1...."), findings[0].Context)
}

func TestScanRespectsWindow(t *testing.T) {
	data := []byte("AAAA....AAAA....AAAA")
	r := bytes.NewReader(data)

	findings, err := Scan(context.Background(), r, 8, 6, markerSet("AAAA"), Options{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, int64(8), findings[0].Offset)
}

func TestScanAcrossChunkBoundary(t *testing.T) {
	// Plant a marker straddling the chunk boundary so only the overlap can
	// catch it.
	data := make([]byte, chunkSize+64)
	marker := []byte("MARKER")
	at := chunkSize - 3
	copy(data[at:], marker)
	copy(data[10:], marker)

	findings, err := Scan(context.Background(), bytes.NewReader(data), 0, int64(len(data)),
		markerSet("MARKER"), Options{})
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, int64(10), findings[0].Offset)
	assert.Equal(t, int64(at), findings[1].Offset)
}

func TestScanOverlappingOccurrences(t *testing.T) {
	data := []byte("aaaa")
	findings, err := Scan(context.Background(), bytes.NewReader(data), 0, 4,
		markerSet("aa"), Options{})
	require.NoError(t, err)
	assert.Len(t, findings, 3, "every starting position counts")
}

func TestScanNoMarkersNoWindow(t *testing.T) {
	findings, err := Scan(context.Background(), bytes.NewReader([]byte("data")), 0, 4, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = Scan(context.Background(), bytes.NewReader([]byte("data")), 0, 0,
		markerSet("da"), Options{})
	require.NoError(t, err)
	assert.Empty(t, findings)

	// Empty markers are dropped rather than matching everywhere.
	findings, err = Scan(context.Background(), bytes.NewReader([]byte("data")), 0, 4,
		markerSet(""), Options{})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestScanNegativeWindowRejected(t *testing.T) {
	_, err := Scan(context.Background(), bytes.NewReader(nil), -1, 4, markerSet("x"), Options{})
	assert.Error(t, err)
}

func TestScanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := make([]byte, 128)
	_, err := Scan(ctx, bytes.NewReader(data), 0, int64(len(data)), markerSet("x"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
