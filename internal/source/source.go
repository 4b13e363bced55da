// Package source provides the pluggable byte providers the demuxer reads
// through: a path-backed file source and a descriptor-backed source,
// selected by URI scheme at open time. The decode layer only ever touches
// the Source interface, so backends can be swapped without touching the
// pipeline.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// fdScheme names an already-open file descriptor owned by the caller,
// e.g. "fd://42". The descriptor is never closed by this package.
const fdScheme = "fd://"

// ErrInvalidURI reports a source URI that names no usable backend.
var ErrInvalidURI = errors.New("source: invalid uri")

// Source is a seekable byte provider over an open media resource.
type Source interface {
	// Read fills p with up to len(p) bytes, returning io.EOF at end of data.
	Read(p []byte) (int, error)
	// Seek repositions the read offset using standard whence semantics and
	// returns the new offset.
	Seek(offset int64, whence int) (int64, error)
	// Size returns the total size in bytes, or 0 when unknown.
	Size() int64
	// Close releases the source. Descriptor-backed sources leave the
	// underlying descriptor open for the caller.
	Close() error
}

// Open selects a Source implementation from the URI scheme: "fd://<n>" maps
// to a descriptor-backed source, anything else is treated as a file path.
func Open(uri string) (Source, error) {
	if rest, ok := strings.CutPrefix(uri, fdScheme); ok {
		fd, err := strconv.Atoi(rest)
		if err != nil || fd < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
		}
		return newFDSource(fd), nil
	}
	return newFileSource(uri)
}

type fileSource struct {
	f    *os.File
	size int64
}

func newFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	return &fileSource{f: f, size: size}, nil
}

func (s *fileSource) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

func (s *fileSource) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) Close() error { return s.f.Close() }

// fdSource reads from a raw descriptor owned by the caller. It uses raw
// syscalls instead of wrapping the descriptor in an *os.File so that
// nothing in this process can ever close it.
type fdSource struct {
	fd   int
	size int64
}

func newFDSource(fd int) *fdSource {
	s := &fdSource{fd: fd}
	// Best-effort size probe; non-seekable descriptors keep size 0.
	if cur, err := syscall.Seek(fd, 0, io.SeekCurrent); err == nil {
		if end, err := syscall.Seek(fd, 0, io.SeekEnd); err == nil {
			s.size = end
		}
		_, _ = syscall.Seek(fd, cur, io.SeekStart)
	}
	return s
}

func (s *fdSource) Read(p []byte) (int, error) {
	n, err := syscall.Read(s.fd, p)
	if err != nil {
		return 0, fmt.Errorf("source: read fd %d: %w", s.fd, err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *fdSource) Seek(offset int64, whence int) (int64, error) {
	pos, err := syscall.Seek(s.fd, offset, whence)
	if err != nil {
		return 0, fmt.Errorf("source: seek fd %d: %w", s.fd, err)
	}
	return pos, nil
}

func (s *fdSource) Size() int64 { return s.size }

// Close is a no-op: the descriptor belongs to the caller.
func (s *fdSource) Close() error { return nil }
