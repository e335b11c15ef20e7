// Package app wires configuration into the concrete database and OCR
// components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/ocr"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

// Database is an opened, migrated store plus its repositories.
type Database struct {
	DB      *repository.DB
	Runs    repository.RunRepository
	Records repository.RecordRepository

	logger *slog.Logger
}

func (d *Database) Cleanup() {
	d.DB.Close(d.logger)
}

// OpenDatabase opens the configured store, or a private in-memory SQLite when
// inmem is set, and applies the schema.
func OpenDatabase(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*Database, error) {
	rc := repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	if inmem {
		rc.DSN = ""
	}
	db, err := repository.Open(ctx, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Database{
		DB:      db,
		Runs:    repository.NewRunRepository(db, logger),
		Records: repository.NewRecordRepository(db, logger),
		logger:  logger,
	}, nil
}

// NewPageSource builds the OCR engine named by cfg.OCR.Engine. The returned
// closer releases engine resources and is never nil.
func NewPageSource(ctx context.Context, cfg *common.Config, logger *slog.Logger) (extract.PageSource, io.Closer, error) {
	switch cfg.OCR.Engine {
	case "documentai":
		d, err := ocr.NewDocumentAIExtractor(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.OCR.DocAIProjectID,
			Location:    cfg.OCR.DocAILocation,
			ProcessorID: cfg.OCR.DocAIProcessorID,
			FoldWidth:   cfg.OCR.FoldWidth,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case "", "tesseract":
		e, err := ocr.NewExtractor(ocr.Config{
			Pdftoppm:        cfg.OCR.Pdftoppm,
			Tesseract:       cfg.OCR.Tesseract,
			TesseractLang:   cfg.OCR.Lang,
			DPI:             cfg.OCR.DPI,
			MaxPages:        cfg.OCR.MaxPages,
			TessdataDir:     cfg.OCR.TessdataDir,
			PSM:             cfg.OCR.PSM,
			PreferTextLayer: cfg.OCR.PreferTextLayer,
			FoldWidth:       cfg.OCR.FoldWidth,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return e, nopCloser{}, nil
	default:
		return nil, nil, common.NewAppError("UNKNOWN_OCR_ENGINE", fmt.Sprintf("unknown OCR engine %q", cfg.OCR.Engine), common.ErrInvalidInput)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns a JSON logger at the configured level and installs it as
// the default.
func NewLogger(w io.Writer, cfg *common.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
