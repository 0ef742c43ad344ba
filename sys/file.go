package sys

import (
	"io"
	"os"
)

// FileHandle is the read-only surface the decoder needs from an open
// container file. All reads are positional so that concurrent table scans
// can share one handle without a cursor to corrupt.
type FileHandle interface {
	io.ReaderAt
	io.Closer

	Stat() (os.FileInfo, error)
	Name() string
}

// OpenHandler opens a container file for reading.
type OpenHandler func(name string) (FileHandle, error)

// Open is the package-level opener. Tests may swap it (via SetOpener) to
// serve in-memory containers without touching the filesystem.
var Open OpenHandler = defaultOpen

func defaultOpen(name string) (FileHandle, error) {
	return os.Open(name)
}

// SetOpener replaces the opener and returns the previous one, so tests can
// restore it.
func SetOpener(h OpenHandler) OpenHandler {
	prev := Open
	Open = h
	return prev
}
