package viewer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File is an opaque byte-bearing handle with a name and a size.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// OSFile is a file on disk. Its size is taken when it is opened with
// OpenFile.
type OSFile struct {
	Path string
	size int64
}

// OpenFile stats path and returns a handle to it.
func OpenFile(path string) (*OSFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &OSFile{Path: path, size: fi.Size()}, nil
}

// Name returns the base name of the path.
func (f *OSFile) Name() string { return filepath.Base(f.Path) }

// Size returns the size recorded by OpenFile.
func (f *OSFile) Size() int64 { return f.size }

// Open opens the file for reading.
func (f *OSFile) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// BytesFile is an in-memory file.
type BytesFile struct {
	FileName string
	Data     []byte
}

// Name implements File.
func (f BytesFile) Name() string { return f.FileName }

// Size implements File.
func (f BytesFile) Size() int64 { return int64(len(f.Data)) }

// Open implements File.
func (f BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}
