package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/inspection-extractor/internal/app"
	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
)

func main() {
	fields := flag.Bool("fields", false, "also print the record extracted from each page")
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-fields] <file.pdf|image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()

	source, closer, err := app.NewPageSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("ocr init failed", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	start := time.Now()
	res, err := source.ExtractPages(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	assembler := extract.NewAssembler(nil, logger)
	for _, p := range res.Pages {
		fmt.Printf("===== page %d =====\n", p.Index+1)
		if p.Err != nil {
			fmt.Printf("(error: %v)\n", p.Err)
			continue
		}
		fmt.Println(p.Text)
		if *fields {
			rec := assembler.Assemble(p.Text)
			for _, col := range catalog.Default().Columns() {
				if v, ok := rec[col]; ok {
					fmt.Printf("  %s = %q\n", col, v)
				}
			}
		}
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", len(res.Pages),
		"language", res.Language,
		"warnings", len(res.Warnings),
		"duration_ms", dur.Milliseconds(),
	)
}
