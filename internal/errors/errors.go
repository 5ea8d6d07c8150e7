package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies the reason an input was rejected. Codes are stable and
// machine readable; callers branch on them, messages are for humans.
type Code string

// Archive-level codes. Any of these aborts the whole batch before a single
// file is processed.
const (
	CodeArchiveTooLarge Code = "ARCHIVE_TOO_LARGE"
	CodeEmptyArchive    Code = "EMPTY_ARCHIVE"
	CodeCorruptArchive  Code = "CORRUPT_ARCHIVE"
	CodePathTraversal   Code = "PATH_TRAVERSAL"
)

// File-level codes. These fail one file; the batch continues.
const (
	CodeInvalidFilename     Code = "INVALID_FILENAME"
	CodeUnsupportedExchange Code = "UNSUPPORTED_EXCHANGE"
	CodeInvalidDate         Code = "INVALID_DATE"
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeMissingColumns      Code = "MISSING_COLUMNS"
	CodeNoValidRows         Code = "NO_VALID_ROWS"
	CodePersistenceFailure  Code = "PERSISTENCE_FAILURE"
)

// Ambient codes for the layers around the pipeline.
const (
	CodeConfig  Code = "CONFIG_ERROR"
	CodeStorage Code = "STORAGE_ERROR"
)

// AppError is the application error type carried across package
// boundaries. It pairs a stable Code with a message and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Detail renders the message and cause without the code prefix, for
// surfaces that report the code separately.
func (e *AppError) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an AppError with the given code
func New(code Code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// CodeOf extracts the Code from err, unwrapping as needed. It returns the
// empty Code when err carries no AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Helper constructors, one per rejection reason.

// NewArchiveTooLarge rejects an archive whose size exceeds the limit
func NewArchiveTooLarge(size, limit int64) *AppError {
	return New(CodeArchiveTooLarge, fmt.Sprintf("archive is %d bytes, limit is %d", size, limit), nil)
}

// NewEmptyArchive rejects an archive containing no loadable CSV entries
func NewEmptyArchive() *AppError {
	return New(CodeEmptyArchive, "no CSV files found in ZIP archive", nil)
}

// NewCorruptArchive rejects bytes that are not a readable ZIP
func NewCorruptArchive(cause error) *AppError {
	return New(CodeCorruptArchive, "archive is not a readable ZIP file", cause)
}

// NewPathTraversal rejects an archive containing an entry that escapes the
// extraction root
func NewPathTraversal(entry string) *AppError {
	return New(CodePathTraversal, fmt.Sprintf("entry %q escapes the extraction directory", entry), nil)
}

// NewInvalidFilename rejects a file whose name is not YYYYMMDD_EXCHANGE.csv
func NewInvalidFilename(name string) *AppError {
	return New(CodeInvalidFilename, fmt.Sprintf("filename %q does not match YYYYMMDD_EXCHANGE.csv", name), nil)
}

// NewUnsupportedExchange rejects a file naming an exchange outside the registry
func NewUnsupportedExchange(token string, supported []string) *AppError {
	return New(CodeUnsupportedExchange,
		fmt.Sprintf("exchange %q is not supported (supported: %s)", token, strings.Join(supported, ", ")), nil)
}

// NewInvalidDate rejects a filename date that is not a real calendar date
func NewInvalidDate(raw string, cause error) *AppError {
	return New(CodeInvalidDate, fmt.Sprintf("filename date %q is not a valid calendar date", raw), cause)
}

// NewFileTooLarge rejects a CSV file or archive entry over the per-file limit
func NewFileTooLarge(name string, size, limit int64) *AppError {
	return New(CodeFileTooLarge, fmt.Sprintf("file %q is %d bytes, limit is %d", name, size, limit), nil)
}

// NewMissingColumns rejects a file whose header lacks required columns
func NewMissingColumns(missing []string) *AppError {
	return New(CodeMissingColumns, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
}

// NewNoValidRows rejects a file that produced no persistable rows
func NewNoValidRows(rowErrors int) *AppError {
	return New(CodeNoValidRows, fmt.Sprintf("no valid data rows found (%d rows rejected)", rowErrors), nil)
}

// NewPersistenceFailure wraps a storage error that rolled the file back
func NewPersistenceFailure(cause error) *AppError {
	return New(CodePersistenceFailure, "failed to persist file", cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return New(CodeConfig, message, cause)
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *AppError {
	return New(CodeStorage, message, cause)
}
