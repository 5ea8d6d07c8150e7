// Package archive unpacks uploaded ZIP archives into an ephemeral
// workspace, enforcing the size and path constraints that keep a
// hostile archive from touching anything outside it.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
)

const workspacePrefix = "bhavload-"

// Extractor unpacks ZIP content under configured size limits.
type Extractor struct {
	maxArchiveSize int64
	maxFileSize    int64
	logger         *slog.Logger
}

// NewExtractor creates an extractor. A nil logger falls back to
// slog.Default().
func NewExtractor(maxArchiveSize, maxFileSize int64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		maxArchiveSize: maxArchiveSize,
		maxFileSize:    maxFileSize,
		logger:         logger,
	}
}

// Entry is one qualifying CSV file unpacked into the workspace. Entries
// can be reopened any number of times until the extraction is closed.
type Entry struct {
	name string
	size int64
	path string
}

// Name returns the entry's base filename as it appeared in the archive.
func (e Entry) Name() string { return e.name }

// Size returns the unpacked size in bytes.
func (e Entry) Size() int64 { return e.size }

// Open returns the unpacked content for reading.
func (e Entry) Open() (io.ReadCloser, error) {
	return os.Open(e.path)
}

// Rejection records a CSV entry refused before unpacking, currently
// always because its declared size exceeds the per-file limit.
type Rejection struct {
	Name   string
	Reason *apperrors.AppError
}

// Item is one position in the archive manifest: either an unpacked
// entry or a per-entry rejection, never both.
type Item struct {
	Entry    *Entry
	Rejected *Rejection
}

// Extraction owns the workspace directory holding the unpacked entries.
// Close releases it; the caller must call Close on every path.
type Extraction struct {
	dir   string
	items []Item
}

// Items returns the manifest in archive order, extracted entries and
// rejections interleaved as they appeared.
func (x *Extraction) Items() []Item { return x.items }

// Entries returns the unpacked CSV entries in archive order.
func (x *Extraction) Entries() []Entry {
	var out []Entry
	for _, it := range x.items {
		if it.Entry != nil {
			out = append(out, *it.Entry)
		}
	}
	return out
}

// Rejected returns per-entry rejections in archive order.
func (x *Extraction) Rejected() []Rejection {
	var out []Rejection
	for _, it := range x.items {
		if it.Rejected != nil {
			out = append(out, *it.Rejected)
		}
	}
	return out
}

// Close removes the workspace and everything in it. Safe to call more
// than once.
func (x *Extraction) Close() error {
	if x.dir == "" {
		return nil
	}
	dir := x.dir
	x.dir = ""
	return os.RemoveAll(dir)
}

// Extract unpacks the qualifying CSV entries of a ZIP archive.
//
// Archive-level rejections: ARCHIVE_TOO_LARGE when the input exceeds the
// archive limit, CORRUPT_ARCHIVE when the bytes are not readable ZIP,
// PATH_TRAVERSAL when any entry resolves outside the workspace, and
// EMPTY_ARCHIVE when no CSV entry is found at all. Directory entries,
// entries nested in subdirectories, hidden files and non-CSV names are
// skipped. A CSV entry declaring a size over the per-file limit is
// refused without decompression and reported via Rejected.
func (e *Extractor) Extract(data []byte) (*Extraction, error) {
	if int64(len(data)) > e.maxArchiveSize {
		return nil, apperrors.NewArchiveTooLarge(int64(len(data)), e.maxArchiveSize)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Under GODEBUG=zipinsecurepath=0 NewReader flags suspicious entry
		// names but still returns a usable reader; the per-entry check
		// below produces the precise rejection.
		if !errors.Is(err, zip.ErrInsecurePath) {
			return nil, apperrors.NewCorruptArchive(err)
		}
	}

	dir, err := os.MkdirTemp("", workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction workspace: %w", err)
	}

	x := &Extraction{dir: dir}
	done := false
	defer func() {
		if !done {
			x.Close()
		}
	}()

	for i, f := range reader.File {
		if err := checkEntryPath(dir, f.Name); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}

		name := strings.Trim(f.Name, "/")
		if strings.ContainsRune(name, '/') || strings.ContainsRune(name, '\\') {
			e.logger.Debug("skipping nested archive entry", "entry", f.Name)
			continue
		}
		if strings.HasPrefix(name, ".") {
			e.logger.Debug("skipping hidden archive entry", "entry", f.Name)
			continue
		}
		if !strings.HasSuffix(strings.ToLower(name), ".csv") {
			e.logger.Debug("skipping non-CSV archive entry", "entry", f.Name)
			continue
		}

		if f.UncompressedSize64 > uint64(e.maxFileSize) {
			e.logger.Warn("archive entry exceeds per-file limit",
				"entry", name,
				"declared_size", f.UncompressedSize64,
				"limit", e.maxFileSize)
			x.items = append(x.items, Item{Rejected: &Rejection{
				Name:   name,
				Reason: apperrors.NewFileTooLarge(name, int64(f.UncompressedSize64), e.maxFileSize),
			}})
			continue
		}

		// Index prefix keeps duplicate entry names from clobbering each
		// other and preserves archive order on disk.
		dst := filepath.Join(dir, fmt.Sprintf("%04d_%s", i, name))
		size, err := e.unpackEntry(f, dst)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeFileTooLarge {
				e.logger.Warn("archive entry lied about its size",
					"entry", name,
					"declared_size", f.UncompressedSize64,
					"limit", e.maxFileSize)
				x.items = append(x.items, Item{Rejected: &Rejection{
					Name:   name,
					Reason: apperrors.NewFileTooLarge(name, size, e.maxFileSize),
				}})
				continue
			}
			return nil, apperrors.NewCorruptArchive(err).WithContext("entry", name)
		}

		x.items = append(x.items, Item{Entry: &Entry{name: name, size: size, path: dst}})
	}

	if len(x.items) == 0 {
		return nil, apperrors.NewEmptyArchive()
	}

	done = true
	return x, nil
}

// unpackEntry copies one entry to dst, bounding the copy so a forged
// size header cannot expand past the per-file limit.
func (e *Extractor) unpackEntry(f *zip.File, dst string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, io.LimitReader(rc, e.maxFileSize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return written, err
	}
	if written > e.maxFileSize {
		os.Remove(dst)
		return written, apperrors.NewFileTooLarge(f.Name, written, e.maxFileSize)
	}
	return written, nil
}

// checkEntryPath rejects entry names that would resolve outside root.
func checkEntryPath(root, name string) error {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) {
		return apperrors.NewPathTraversal(name)
	}
	rootClean := filepath.Clean(root)
	dst := filepath.Join(rootClean, cleaned)
	if dst != rootClean && !strings.HasPrefix(dst, rootClean+string(os.PathSeparator)) {
		return apperrors.NewPathTraversal(name)
	}
	return nil
}
