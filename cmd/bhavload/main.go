package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anuradhakorde/candlestick-patterns/internal/archive"
	"github.com/anuradhakorde/candlestick-patterns/internal/config"
	"github.com/anuradhakorde/candlestick-patterns/internal/infrastructure"
	"github.com/anuradhakorde/candlestick-patterns/internal/ingest"
	"github.com/anuradhakorde/candlestick-patterns/internal/storage"
	"github.com/anuradhakorde/candlestick-patterns/internal/validation"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	dsn := flag.String("dsn", "", "postgres DSN, overrides configuration")
	dryRun := flag.Bool("dry-run", false, "parse and validate without touching the database")
	migrate := flag.Bool("migrate", false, "create or update the database schema before loading")
	jsonOut := flag.Bool("json", false, "print each batch summary as JSON")
	quiet := flag.Bool("quiet", false, "suppress per-file progress output")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bhavload [flags] file.csv|archive.zip ...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		fmt.Fprintf(os.Stderr, "bhavload: %v\n", err)
		os.Exit(1)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogRotator()

	logger.Info("Starting bhavcopy load",
		slog.Int("files", len(args)),
		slog.Bool("dry_run", *dryRun),
		slog.Bool("migrate", *migrate))

	// Pre-flight: every argument must be a readable CSV or ZIP file
	// inside the configured size ceilings before anything touches the
	// database.
	validator := validation.NewFileValidator(cfg.Limits.MaxArchiveSize, cfg.Limits.MaxCSVSize, logger)
	for _, path := range args {
		if err := validator.ValidateInputFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "bhavload: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg, *dryRun, *migrate, logger)
	if err != nil {
		logger.Error("Storage initialization failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "bhavload: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	extractor := archive.NewExtractor(cfg.Limits.MaxArchiveSize, cfg.Limits.MaxCSVSize, logger)
	ingestor := ingest.NewIngestor(store, ingest.NewParser(logger), cfg.Limits.MaxCSVSize, logger)
	orchestrator := ingest.NewOrchestrator(extractor, ingestor, logger)

	// Each argument runs as its own batch. Failed files inside a batch
	// are reported in the summary and do not fail the command; an
	// archive rejected as a whole does.
	exitCode := 0
	for i, path := range args {
		if !*quiet && !*jsonOut {
			fmt.Printf("Loading %d of %d: %s\n", i+1, len(args), filepath.Base(path))
		}

		summary, err := runBatch(ctx, orchestrator, path, cfg.Limits.MaxArchiveSize)
		if err != nil {
			logger.Error("Batch failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "bhavload: %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		report(summary, *jsonOut, *quiet)
	}

	os.Exit(exitCode)
}

// runBatch ingests one command-line argument: a ZIP archive or a single
// CSV file. Archive reads are capped at maxArchiveSize+1 bytes so a
// file that grew past the pre-flight check is still never buffered
// whole; the extractor rejects the truncated data as oversized.
func runBatch(ctx context.Context, o *ingest.Orchestrator, path string, maxArchiveSize int64) (*domain.BatchSummary, error) {
	if validation.IsArchive(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxArchiveSize+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive %s: %w", path, err)
		}
		return o.IngestArchive(ctx, data)
	}
	return o.IngestFiles(ctx, []ingest.Source{ingest.FileSource{Path: path}})
}

// openStore picks the storage backend: Postgres normally, the in-memory
// store under -dry-run so a load can be rehearsed without a database.
func openStore(ctx context.Context, cfg *config.Config, dryRun, migrate bool, logger *slog.Logger) (storage.Store, func(), error) {
	if dryRun {
		logger.Info("Dry-run mode: using in-memory storage, the database will not be touched")
		return storage.NewMemoryStore(), func() {}, nil
	}

	store, err := storage.NewPostgresStore(cfg.Database.ResolveDSN(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	if migrate {
		logger.Info("Running schema migration")
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close database connection", slog.String("error", err.Error()))
		}
	}
	return store, cleanup, nil
}

func report(summary *domain.BatchSummary, asJSON, quiet bool) {
	if asJSON {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "bhavload: failed to render summary: %v\n", err)
			return
		}
		fmt.Println(string(out))
		return
	}

	if !quiet {
		for _, r := range summary.Results {
			if r.Failed() {
				fmt.Printf("  FAILED  %s [%s] %s\n", r.Filename, r.Failure.Code, r.Failure.Message)
				continue
			}
			fmt.Printf("  ok      %s: %d candles created, %d skipped, %d stocks created, %d updated\n",
				r.Filename,
				r.Counts.CandlesCreated, r.Counts.CandlesSkipped,
				r.Counts.StocksCreated, r.Counts.StocksUpdated)
			if len(r.Warnings) > 0 {
				fmt.Printf("          %d warning(s), see log for details\n", len(r.Warnings))
			}
		}
	}

	fmt.Printf("Batch %s: %d/%d files succeeded, %d candles created, %d skipped\n",
		summary.BatchID,
		summary.Succeeded, summary.TotalFiles,
		summary.Totals.CandlesCreated, summary.Totals.CandlesSkipped)
}
