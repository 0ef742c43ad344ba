// Package scanner is the degraded-mode recovery path: a schema-agnostic
// multi-marker byte search over raw windows of a container. It is invoked
// when structured decoding cannot proceed at all (unknown container version,
// directory corruption) and exists for manual or heuristic triage of its
// findings. It is a diagnostic tool, never an alternative decoder, and is
// deliberately kept out of the structured decode path.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// DefaultContextBytes is how much surrounding context each finding carries
// on either side of the marker when the caller does not say otherwise.
const DefaultContextBytes = 32

// chunkSize is the read granularity of a scan. Each chunk overlaps the next
// by enough bytes that no marker occurrence straddling a boundary is lost.
const chunkSize = 1 << 20

// Finding is one marker occurrence: which marker, its absolute file offset,
// and a window of surrounding bytes.
type Finding struct {
	Marker  string
	Offset  int64
	Context []byte
}

// Options tunes a scan.
type Options struct {
	// ContextBytes is the context captured on each side of a hit.
	// Zero selects DefaultContextBytes.
	ContextBytes int
}

// Scan searches window [offset, offset+length) of r for every occurrence of
// every marker, in offset order. There is no success/failure notion beyond
// "found N occurrences"; the only errors are I/O errors and cancellation.
func Scan(ctx context.Context, r io.ReaderAt, offset, length int64, markers [][]byte, opts Options) ([]Finding, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("negative scan window [%d, +%d)", offset, length)
	}
	contextBytes := opts.ContextBytes
	if contextBytes <= 0 {
		contextBytes = DefaultContextBytes
	}

	maxMarker := 0
	clean := make([][]byte, 0, len(markers))
	for _, m := range markers {
		if len(m) == 0 {
			continue
		}
		clean = append(clean, m)
		if len(m) > maxMarker {
			maxMarker = len(m)
		}
	}
	if len(clean) == 0 || length == 0 {
		return nil, nil
	}

	var findings []Finding
	// Overlap consecutive chunks by maxMarker-1 bytes so straddling
	// occurrences appear in exactly one chunk's scan range.
	overlap := int64(maxMarker - 1)
	for chunkStart := offset; chunkStart < offset+length; chunkStart += chunkSize {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		readLen := int64(chunkSize) + overlap
		if chunkStart+readLen > offset+length {
			readLen = offset + length - chunkStart
		}
		buf := make([]byte, readLen)
		n, err := r.ReadAt(buf, chunkStart)
		if err != nil && !errors.Is(err, io.EOF) {
			return findings, fmt.Errorf("scan read at %d: %w", chunkStart, err)
		}
		buf = buf[:n]

		// Hits inside the overlap belong to the next chunk's leading bytes;
		// only the first chunkSize starting positions count here.
		limit := len(buf)
		if int64(limit) > chunkSize {
			limit = chunkSize
		}
		for _, m := range clean {
			findings = appendHits(findings, r, buf, chunkStart, limit, m, contextBytes)
		}
		if n < len(buf) || int64(n) < readLen {
			break
		}
	}

	sortFindings(findings)
	return findings, nil
}

func appendHits(findings []Finding, r io.ReaderAt, buf []byte, base int64, limit int, marker []byte, contextBytes int) []Finding {
	from := 0
	for from < limit {
		i := bytes.Index(buf[from:], marker)
		if i < 0 {
			break
		}
		at := from + i
		if at >= limit {
			break
		}
		abs := base + int64(at)
		findings = append(findings, Finding{
			Marker:  string(marker),
			Offset:  abs,
			Context: captureContext(r, abs, len(marker), contextBytes),
		})
		from = at + 1
	}
	return findings
}

// captureContext reads the bytes around a hit straight from the source, so
// context is complete even when the hit sits at a chunk edge.
func captureContext(r io.ReaderAt, hit int64, markerLen, contextBytes int) []byte {
	start := hit - int64(contextBytes)
	if start < 0 {
		start = 0
	}
	end := hit + int64(markerLen) + int64(contextBytes)
	buf := make([]byte, end-start)
	n, err := r.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	return buf[:n]
}

func sortFindings(f []Finding) {
	// Findings from different markers interleave; order by offset, then
	// marker for determinism.
	sort.Slice(f, func(i, j int) bool {
		if f[i].Offset != f[j].Offset {
			return f[i].Offset < f[j].Offset
		}
		return f[i].Marker < f[j].Marker
	})
}
