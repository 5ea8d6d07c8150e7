package ingest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is one loadable bhavcopy file presented to the pipeline. The
// name, not the content, decides exchange and trading date, so Name
// must return the bare filename without directories.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource serves a CSV file from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Open() (io.ReadCloser, error) { return os.Open(s.Path) }

// BytesSource serves in-memory content.
type BytesSource struct {
	Filename string
	Data     []byte
}

func (s BytesSource) Name() string { return s.Filename }

func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
