package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/entity"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

// Outcome is what one ProcessFile call produced.
type Outcome struct {
	RunID        uuid.UUID
	ContentHash  string
	Document     extract.Document
	PageIndexes  []int // source page of each record in Document
	Pages        int
	SourceType   string
	Method       string
	Warnings     []string
	Deduplicated bool
}

// Processor coordinates OCR (page text) then field extraction, and records
// each run when repositories are configured.
type Processor struct {
	logger    *slog.Logger
	source    extract.PageSource
	assembler *extract.Assembler
	validator *extract.RecordValidator
	runs      repository.RunRepository
	records   repository.RecordRepository
}

// NewProcessor builds a Processor. runs and records may both be nil, in which
// case nothing is persisted and no deduplication happens.
func NewProcessor(
	logger *slog.Logger,
	source extract.PageSource,
	assembler *extract.Assembler,
	validator *extract.RecordValidator,
	runs repository.RunRepository,
	records repository.RecordRepository,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if assembler == nil {
		assembler = extract.NewAssembler(nil, logger)
	}
	return &Processor{
		logger:    logger,
		source:    source,
		assembler: assembler,
		validator: validator,
		runs:      runs,
		records:   records,
	}
}

func (p *Processor) persistent() bool { return p.runs != nil && p.records != nil }

// ProcessFile extracts one file. Unless force is set, a file whose content
// already has a successful run returns that run's stored records.
func (p *Processor) ProcessFile(ctx context.Context, path string, force bool) (*Outcome, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.MapExtToFormat(ext) == "" {
		return nil, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported extension: %q", ext), common.ErrInvalidInput)
	}
	if p.source == nil {
		return nil, common.NewAppError("OCR_UNAVAILABLE", "no page source configured", common.ErrOCRUnavailable)
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, common.NewAppError("READ_FAILED", "read source file", err)
	}

	if p.persistent() && !force {
		if out, ok := p.lookupDuplicate(ctx, hash); ok {
			return out, nil
		}
	}

	var runID uuid.UUID
	if p.persistent() {
		run, err := p.runs.Start(ctx, entity.NewRun{
			SourcePath:  path,
			Filename:    filepath.Base(path),
			ContentHash: hash,
			Status:      constants.RunStatusRunning,
		})
		if err != nil {
			return nil, err
		}
		runID = run.ID
		ctx = common.WithRunID(ctx, runID.String())
	}

	out, err := p.extract(ctx, path)
	if err != nil {
		p.logger.Error("processor.extract.failed", "path", path, "run_id", runID, "err", err)
		p.fail(ctx, runID, err)
		return nil, err
	}
	out.RunID = runID
	out.ContentHash = hash

	if p.persistent() {
		stored := make([]entity.StoredRecord, len(out.Document))
		for i, rec := range out.Document {
			stored[i] = entity.StoredRecord{RunID: runID, Seq: i, PageIndex: out.PageIndexes[i], Fields: rec}
		}
		if err := p.records.SaveRecords(ctx, runID, stored); err != nil {
			p.fail(ctx, runID, err)
			return nil, err
		}
		if err := p.runs.Finish(ctx, runID, entity.RunResult{
			SourceType: out.SourceType,
			Method:     out.Method,
			Pages:      out.Pages,
			Records:    len(out.Document),
			Warnings:   out.Warnings,
		}); err != nil {
			p.logger.Error("processor.finish.failed", "run_id", runID, "err", err)
			p.fail(ctx, runID, err)
			return nil, err
		}
	}

	p.logger.Info("processor.ok",
		"path", path,
		"run_id", runID,
		"method", out.Method,
		"pages", out.Pages,
		"records", len(out.Document),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) extract(ctx context.Context, path string) (*Outcome, error) {
	res, err := p.source.ExtractPages(ctx, path)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, pg := range res.Pages {
		if pg.Err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(res.Pages) {
		p.logger.Warn("ocr failed on every page", "path", path, "pages", failed)
	}

	doc, from := p.assembler.ExtractIndexed(res.Pages)
	if p.validator != nil {
		if err := p.validator.ValidateDocument(doc); err != nil {
			return nil, common.NewAppError("INVALID_RECORD", "extracted document failed validation", fmt.Errorf("%w: %v", common.ErrValidation, err))
		}
	}
	return &Outcome{
		Document:    doc,
		PageIndexes: from,
		Pages:       len(res.Pages),
		SourceType:  res.SourceType,
		Method:      res.Method,
		Warnings:    res.Warnings,
	}, nil
}

func (p *Processor) lookupDuplicate(ctx context.Context, hash string) (*Outcome, bool) {
	run, err := p.runs.GetLatestByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			p.logger.Warn("dedup lookup failed; processing anyway", "hash", hash, "err", err)
		}
		return nil, false
	}
	doc, from, err := p.loadDocument(ctx, run.ID)
	if err != nil {
		p.logger.Warn("dedup records unreadable; processing anyway", "run_id", run.ID, "err", err)
		return nil, false
	}
	p.logger.Info("processor.dedup", "hash", hash, "run_id", run.ID)
	return &Outcome{
		RunID:        run.ID,
		ContentHash:  hash,
		Document:     doc,
		PageIndexes:  from,
		Pages:        run.Pages,
		SourceType:   run.SourceType,
		Method:       run.Method,
		Warnings:     run.Warnings,
		Deduplicated: true,
	}, true
}

func (p *Processor) fail(ctx context.Context, runID uuid.UUID, cause error) {
	if !p.persistent() || runID == uuid.Nil {
		return
	}
	// The caller's context may be what failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.runs.Fail(ctx, runID, cause.Error()); err != nil {
		p.logger.Error("mark run failed", "run_id", runID, "err", err)
	}
}

// ExtractTexts runs field extraction over already-recognized page texts.
func (p *Processor) ExtractTexts(texts []string) (extract.Document, error) {
	pages := make([]extract.Page, len(texts))
	for i, t := range texts {
		pages[i] = extract.Page{Index: i, Text: t}
	}
	doc := p.assembler.Extract(pages)
	if p.validator != nil {
		if err := p.validator.ValidateDocument(doc); err != nil {
			return nil, common.NewAppError("INVALID_RECORD", "extracted document failed validation", fmt.Errorf("%w: %v", common.ErrValidation, err))
		}
	}
	return doc, nil
}

// LoadRun returns a stored run and its records.
func (p *Processor) LoadRun(ctx context.Context, runID uuid.UUID) (*entity.Run, extract.Document, error) {
	if !p.persistent() {
		return nil, nil, common.NewAppError("NOT_FOUND", "run storage is not configured", common.ErrNotFound)
	}
	run, err := p.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	doc, _, err := p.loadDocument(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, doc, nil
}

func (p *Processor) loadDocument(ctx context.Context, runID uuid.UUID) (extract.Document, []int, error) {
	stored, err := p.records.ListRecords(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	doc := make(extract.Document, len(stored))
	from := make([]int, len(stored))
	for i, r := range stored {
		doc[i] = extract.PageRecord(r.Fields)
		from[i] = r.PageIndex
	}
	return doc, from, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
