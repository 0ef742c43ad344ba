package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/INLOpen/onecd/core"
	"github.com/klauspost/compress/flate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BlobData is the materialized content of a chain-stored payload. Truncated
// is set when the chain ended before the declared length was reached; the
// accumulated prefix is returned rather than discarded, since partial
// recovery beats total data loss. Corrupt is set when the chain itself was
// complete but its DEFLATE stream would not inflate; Bytes then holds the
// raw compressed payload for triage.
type BlobData struct {
	Bytes     []byte
	Truncated bool
	Corrupt   bool
}

// ResolveBlob follows a BLOB chain and materializes its payload. Resolution
// is lazy and cached per locator: scanning a table's primary columns never
// calls this, and resolving the same handle twice costs one chain walk.
// A chain cycle returns ErrBrokenChain; a short chain returns the partial
// bytes with Truncated set.
func (c *Container) ResolveBlob(ctx context.Context, h core.BlobHandle) (BlobData, error) {
	if c.closed.Load() {
		return BlobData{}, core.ErrClosed
	}
	var span trace.Span
	if c.tracer != nil {
		_, span = c.tracer.Start(ctx, "Container.ResolveBlob")
		span.SetAttributes(
			attribute.Int64("blob.start_page", int64(h.StartPage)),
			attribute.Int64("blob.length", int64(h.Length)),
			attribute.Bool("blob.compressed", h.Compressed),
		)
		defer span.End()
	}

	if cached, ok := c.blobCache.Get(h); ok {
		return cached, nil
	}

	data, err := c.followChain(h)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return BlobData{}, err
	}

	if h.Compressed && !data.Truncated {
		inflated, err := inflate(data.Bytes)
		if err != nil {
			// The chain itself was intact; a bad DEFLATE stream still hands
			// the caller the raw bytes for triage.
			c.logger.Warn("blob chain inflation failed, returning raw bytes",
				"start_page", h.StartPage, "error", err)
			data.Corrupt = true
		} else {
			data.Bytes = inflated
		}
	}

	c.blobCache.Put(h, data)
	return data, nil
}

// followChain accumulates the payload one page-sized read at a time. The
// declared length comes from an untrusted row slot, so it bounds the loop but
// never sizes an allocation up front.
func (c *Container) followChain(h core.BlobHandle) (BlobData, error) {
	if h.StartPage == 0 || h.StartPage >= c.header.PageCount {
		return BlobData{}, fmt.Errorf("chain start page %d out of range: %w",
			h.StartPage, core.ErrBrokenChain)
	}

	chain := c.openChain(h.StartPage)
	buf := make([]byte, 0, min(h.Length, uint64(c.header.PageSize)))
	scratch := make([]byte, c.header.PageSize)
	remaining := h.Length
	for remaining > 0 {
		want := min(remaining, uint64(len(scratch)))
		n, err := io.ReadFull(chain, scratch[:want])
		buf = append(buf, scratch[:n]...)
		remaining -= uint64(n)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			// Premature chain end: declared length not reached. Keep the prefix.
			c.logger.Warn("blob chain ended before declared length",
				"start_page", h.StartPage, "declared", h.Length, "got", len(buf))
			return BlobData{Bytes: buf, Truncated: true}, nil
		default:
			return BlobData{}, fmt.Errorf("resolve blob at page %d: %w", h.StartPage, err)
		}
	}
	return BlobData{Bytes: buf}, nil
}

func inflate(compressed []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("inflate blob payload: %w", err)
	}
	return out, nil
}
