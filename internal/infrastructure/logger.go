package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/anuradhakorde/candlestick-patterns/internal/config"
)

var (
	// globalLogger holds the application-wide logger instance
	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
	// globalLogRotator holds the rotating file sink for cleanup
	globalLogRotator *lumberjack.Logger
	rotatorMu        sync.Mutex
)

// contextKey is a type for context keys
type contextKey string

// BatchIDContextKey is the key for storing the batch id in context
const BatchIDContextKey contextKey = "batch_id"

// InitializeLogger creates and configures the global slog logger
// instance. This should be called once during application startup.
// Output is always JSON; file output rotates via lumberjack.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	globalLoggerOnce.Do(func() {
		globalLogger, err = createLogger(cfg)
		if globalLogger != nil {
			slog.SetDefault(globalLogger)
		}
	})
	return globalLogger, err
}

// GetLogger returns the global logger instance.
// If not initialized, returns the default slog logger.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// createLogger creates a new slog logger based on configuration
func createLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Level),
	}

	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "file":
		rotator, err := openLogRotator(cfg)
		if err != nil {
			return nil, err
		}
		globalLogRotator = rotator
		output = rotator
	case "both":
		rotator, err := openLogRotator(cfg)
		if err != nil {
			return nil, err
		}
		globalLogRotator = rotator
		output = io.MultiWriter(os.Stdout, rotator)
	default:
		output = os.Stdout
	}

	handler := slog.NewJSONHandler(output, opts)

	// Wrap handler to inject batch_id from context
	return slog.New(&batchHandler{Handler: handler}), nil
}

// batchHandler wraps a slog.Handler to automatically inject the batch id
// from context
type batchHandler struct {
	slog.Handler
}

// Handle adds batch_id to the record if present in context
func (h *batchHandler) Handle(ctx context.Context, r slog.Record) error {
	if batchID := GetBatchID(ctx); batchID != "" {
		r.AddAttrs(slog.String("batch_id", batchID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new Handler with additional attributes
func (h *batchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name
func (h *batchHandler) WithGroup(name string) slog.Handler {
	return &batchHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBatchID adds a batch id to the context
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDContextKey, batchID)
}

// GetBatchID retrieves the batch id from context
func GetBatchID(ctx context.Context) string {
	if batchID, ok := ctx.Value(BatchIDContextKey).(string); ok {
		return batchID
	}
	return ""
}

// LoggerFromContext extracts or creates a logger from context.
// This is a helper for components that need context-aware logging.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if batchID := GetBatchID(ctx); batchID != "" {
		return logger.With("batch_id", batchID)
	}
	return logger
}

// MustInitializeLogger is like InitializeLogger but panics on error.
// Use this in main() where errors are fatal.
func MustInitializeLogger(cfg config.LoggingConfig) *slog.Logger {
	logger, err := InitializeLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}

// CloseLogRotator closes the rotating file sink if open.
// This should be called during graceful shutdown or in tests.
func CloseLogRotator() error {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()

	if globalLogRotator != nil {
		err := globalLogRotator.Close()
		globalLogRotator = nil
		return err
	}
	return nil
}

// ResetLoggerForTesting resets the global logger state.
// This should only be called in tests.
func ResetLoggerForTesting() {
	CloseLogRotator()
	globalLogger = nil
	globalLoggerOnce = sync.Once{}
}

// openLogRotator builds the rotating file sink for the configured path
func openLogRotator(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path is required for output %q", cfg.Output)
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, nil
}
