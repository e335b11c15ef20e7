package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"

	"github.com/joseph-ayodele/inspection-extractor/internal/app"
	"github.com/joseph-ayodele/inspection-extractor/internal/async"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/export"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/ingest"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type fileResult struct {
	path    string
	out     *pipeline.Outcome
	err     error
	xlsx    string
	summary export.Summary
}

func main() {
	var (
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir    = flag.String("dir", "", "directory to scan for PDFs and images")
		outDir = flag.String("out", "", "directory for XLSX output (defaults to each source's directory)")
		force  = flag.Bool("force", false, "re-extract files already processed")
	)
	flag.Parse()

	paths := flag.Args()
	if *dir == "" && len(paths) == 0 {
		printError("Error: pass files as arguments or --dir\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: config: %v\n", err)
		os.Exit(2)
	}
	if *outDir == "" {
		*outDir = cfg.Export.OutDir
	}
	logger := app.NewLogger(os.Stderr, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *dir != "" {
		found, stats, err := ingest.ScanDirectory(*dir, true)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("scan complete", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped, "errors", stats.Errors)
		paths = append(paths, found...)
	}

	paths, outputs := planOutputs(paths, *outDir, logger)

	db, err := app.OpenDatabase(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Cleanup()

	source, closer, err := app.NewPageSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize OCR", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	validator, err := extract.NewRecordValidator(nil)
	if err != nil {
		logger.Error("record schema failed to compile", "error", err)
		os.Exit(1)
	}
	proc := pipeline.NewProcessor(logger, source, nil, validator, db.Runs, db.Records)
	exporter := export.NewService(db.Runs, db.Records, nil, logger)
	opts := export.Options{SheetName: cfg.Export.SheetName}

	var (
		mu      sync.Mutex
		results []fileResult
	)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(len(paths)+1),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithResultFunc(func(job async.Job, out *pipeline.Outcome, err error) {
			r := fileResult{path: job.Path, out: out, err: err}
			if err == nil {
				r.xlsx, r.summary, r.err = writeWorkbook(exporter, out.Document, outputs[job.Path], opts)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)
	for _, p := range paths {
		if err := queue.Enqueue(ctx, async.Job{Path: p, Force: *force}); err != nil {
			logger.Error("enqueue failed", "path", p, "error", err)
		}
	}
	queue.Shutdown(context.Background())

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })
	processed, failures, dedup := 0, 0, 0
	for _, r := range results {
		if r.err != nil {
			failures++
			fmt.Printf("FAIL %s: %v\n", r.path, r.err)
			continue
		}
		processed++
		if r.out.Deduplicated {
			dedup++
		}
		fmt.Printf("OK   %s -> %s (pages=%d rows=%d columns=%d cells=%d)\n",
			r.path, r.xlsx, r.out.Pages, r.summary.Rows, r.summary.Columns, r.summary.Cells)
	}

	logger.Info("batch processing complete",
		"files", len(paths),
		"processed", processed,
		"deduplicated", dedup,
		"failures", failures)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files: %d\n", len(paths))
	fmt.Printf("- Processed: %d (reused %d)\n", processed, dedup)
	fmt.Printf("- Failures: %d\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func writeWorkbook(exp *export.Service, doc extract.Document, path string, opts export.Options) (string, export.Summary, error) {
	data, sum, err := exp.WriteXLSX(doc, opts)
	if err != nil {
		return "", sum, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", sum, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", sum, err
	}
	return path, sum, nil
}
