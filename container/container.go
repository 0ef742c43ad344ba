// Package container opens a 1CD-style datastore file read-only, validates
// its prologue, loads the table directory and serves positional page reads
// to the row and BLOB decoding layers. A Container is a pure projection of
// the file's bytes: nothing is mutated after Open returns.
package container

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/INLOpen/onecd/cache"
	"github.com/INLOpen/onecd/core"
	"github.com/INLOpen/onecd/schema"
	"github.com/INLOpen/onecd/sys"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBlobCacheCapacity bounds the resolved-BLOB cache when the caller
// does not size it explicitly.
const DefaultBlobCacheCapacity = 128

// OpenOptions holds all parameters for opening a container.
type OpenOptions struct {
	FilePath string
	Logger   *slog.Logger
	Tracer   trace.Tracer
	// BlobCacheCapacity is the number of resolved BLOB payloads kept in
	// memory. Zero selects the default; a negative value disables caching.
	BlobCacheCapacity int
}

// Container is an open, read-only decoder session over one datastore file.
// It is safe for concurrent use across tables: all reads are positional.
type Container struct {
	file     sys.FileHandle
	filePath string
	fileSize int64
	header   Header

	tables []*schema.TableSchema
	byName map[string]*schema.TableSchema

	blobCache cache.Interface[core.BlobHandle, BlobData]
	tracer    trace.Tracer
	logger    *slog.Logger

	closed atomic.Bool
}

// Open validates the container prologue and loads the table directory.
// Signature and version mismatches fail closed with no partial Container;
// individual corrupted directory entries do not (they surface as
// StatusUnreadable schemas in Tables).
func Open(opts OpenOptions) (c *Container, err error) {
	var span trace.Span
	if opts.Tracer != nil {
		_, span = opts.Tracer.Start(context.Background(), "Container.Open")
		span.SetAttributes(attribute.String("container.filepath", opts.FilePath))
		defer span.End()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "container")
	} else {
		opts.Logger = opts.Logger.With("container", opts.FilePath)
	}

	file, err := sys.Open(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", opts.FilePath, err)
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	headerBytes := make([]byte, core.HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(file, 0, core.HeaderSize), headerBytes); err != nil {
		return nil, fmt.Errorf("read container header from %s: %w", opts.FilePath, errors.Join(core.ErrTruncatedFile, err))
	}
	header, err := parseHeader(headerBytes)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("container %s: %w", opts.FilePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container %s: %w", opts.FilePath, err)
	}
	fileSize := stat.Size()
	if want := int64(header.PageCount) * int64(header.PageSize); fileSize < want {
		opts.Logger.Warn("container file shorter than its declared page count",
			"file_size", fileSize, "declared_size", want)
	}

	capacity := opts.BlobCacheCapacity
	if capacity == 0 {
		capacity = DefaultBlobCacheCapacity
	}
	blobCache := cache.NewLRUCache[core.BlobHandle, BlobData](capacity, nil)
	blobCache.SetMetrics(new(expvar.Int), new(expvar.Int))

	c = &Container{
		file:      file,
		filePath:  opts.FilePath,
		fileSize:  fileSize,
		header:    header,
		byName:    make(map[string]*schema.TableSchema),
		blobCache: blobCache,
		tracer:    opts.Tracer,
		logger:    opts.Logger,
	}

	if err := c.loadDirectory(); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("container %s: %w", opts.FilePath, err)
	}
	if span != nil {
		span.SetAttributes(attribute.Int("container.tables", len(c.tables)))
	}
	return c, nil
}

// loadDirectory walks the directory page chain and parses the table entries.
// Losing the whole chain is fatal; losing the tail of a damaged stream keeps
// the entries parsed so far, with a warning.
func (c *Container) loadDirectory() error {
	stream := c.openChain(c.header.DirectoryPage)
	tables, err := schema.ParseDirectory(stream, c.logger)
	if err != nil {
		if len(tables) == 0 {
			return fmt.Errorf("%w: %v", core.ErrDirectoryUnreadable, err)
		}
		c.logger.Warn("directory stream damaged, keeping recovered entries",
			"recovered", len(tables), "error", err)
	}
	c.tables = tables
	for _, t := range tables {
		if t.Name != "" {
			c.byName[t.Name] = t
		}
	}
	return nil
}

// Tables returns every directory entry in directory order, including
// unreadable ones.
func (c *Container) Tables() []*schema.TableSchema {
	out := make([]*schema.TableSchema, len(c.tables))
	copy(out, c.tables)
	return out
}

// Schema looks up one table by its exact name.
func (c *Container) Schema(name string) (*schema.TableSchema, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, core.ErrTableNotFound)
	}
	if t.Status == schema.StatusUnreadable {
		return nil, fmt.Errorf("table %q: %w: %v", name, core.ErrTableUnreadable, t.Err)
	}
	return t, nil
}

// PageSize returns the page size declared in the header.
func (c *Container) PageSize() uint32 { return c.header.PageSize }

// PageCount returns the total page count declared in the header.
func (c *Container) PageCount() uint32 { return c.header.PageCount }

// Path returns the file path the container was opened from.
func (c *Container) Path() string { return c.filePath }

// Size returns the file size in bytes.
func (c *Container) Size() int64 { return c.fileSize }

// ReaderAt exposes the raw byte surface, for the fallback pattern scanner.
func (c *Container) ReaderAt() io.ReaderAt { return c.file }

// BlobCacheHitRate reports the resolved-BLOB cache hit rate.
func (c *Container) BlobCacheHitRate() float64 { return c.blobCache.GetHitRate() }

// ReadPage reads one whole page by id into a fresh buffer.
func (c *Container) ReadPage(id uint32) ([]byte, error) {
	if c.closed.Load() {
		return nil, core.ErrClosed
	}
	if id >= c.header.PageCount {
		return nil, fmt.Errorf("page %d out of range (page count %d): %w",
			id, c.header.PageCount, core.ErrTruncatedFile)
	}
	buf := make([]byte, c.header.PageSize)
	off := int64(id) * int64(c.header.PageSize)
	if _, err := c.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read page %d at offset %d: %w", id, off, errors.Join(core.ErrTruncatedFile, err))
	}
	return buf, nil
}

// ReadAt performs a positional read of an arbitrary byte range.
func (c *Container) ReadAt(p []byte, off int64) (int, error) {
	if c.closed.Load() {
		return 0, core.ErrClosed
	}
	return c.file.ReadAt(p, off)
}

// Close releases the underlying file handle and drops the BLOB cache.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.blobCache.Clear()
	return c.file.Close()
}
