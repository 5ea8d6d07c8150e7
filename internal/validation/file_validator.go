package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileValidator runs the pre-flight checks on paths handed to the
// loader before any ingestion starts, including the size ceilings, so
// an oversized input is refused before a single byte of it is read.
type FileValidator struct {
	maxArchiveSize int64
	maxCSVSize     int64
	logger         *slog.Logger
}

// NewFileValidator creates a new file validator enforcing the given
// size ceilings. A nil logger falls back to slog.Default().
func NewFileValidator(maxArchiveSize, maxCSVSize int64, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		maxArchiveSize: maxArchiveSize,
		maxCSVSize:     maxCSVSize,
		logger:         logger,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	_, err := v.statFile(path)
	return err
}

// statFile resolves path to a readable regular file.
func (v *FileValidator) statFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return nil, fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	// Check if file is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return info, nil
}

// ValidateInputFile checks a loader argument: an existing readable file
// whose extension is .csv or .zip and whose on-disk size fits the
// ceiling for that kind. The size gate uses the stat result, so nothing
// of the content is read first.
func (v *FileValidator) ValidateInputFile(path string) error {
	info, err := v.statFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".zip" {
		v.logger.Error("File is not a CSV or ZIP file",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("file %s is not a CSV or ZIP file (extension: %s)", path, ext)
	}

	limit := v.maxCSVSize
	if ext == ".zip" {
		limit = v.maxArchiveSize
	}
	if info.Size() > limit {
		v.logger.Error("File exceeds the size limit",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("limit", limit))
		return fmt.Errorf("file %s is %d bytes, limit is %d", path, info.Size(), limit)
	}

	return nil
}

// IsArchive reports whether path names a ZIP archive, by extension.
func IsArchive(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".zip"
}
