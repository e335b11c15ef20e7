package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-extractor/internal/catalog"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

// DefaultSheetName is the worksheet name used when Options leaves it empty.
const DefaultSheetName = "検査データ"

type Options struct {
	SheetName string
}

// Summary reports the shape of an exported sheet, excluding the header row.
type Summary struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
	Cells   int `json:"cells"`
}

// Service turns documents (fresh or stored) into XLSX bytes.
type Service struct {
	runs    repository.RunRepository
	records repository.RecordRepository
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewService wires the exporter. Repositories may be nil when only WriteXLSX is used.
func NewService(runs repository.RunRepository, records repository.RecordRepository, c *catalog.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = catalog.Default()
	}
	return &Service{runs: runs, records: records, catalog: c, logger: logger}
}

// Columns is the union of keys present in doc, in catalog output order.
// Keys the catalog does not know are appended in sorted order.
func Columns(c *catalog.Catalog, doc extract.Document) []string {
	present := map[string]struct{}{}
	for _, rec := range doc {
		for k := range rec {
			present[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(present))
	for _, col := range c.Columns() {
		if _, ok := present[col]; ok {
			cols = append(cols, col)
			delete(present, col)
		}
	}
	extra := make([]string, 0, len(present))
	for k := range present {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// WriteXLSX writes one row per record under a header of the present columns.
// Cells for keys a record lacks stay empty.
func (s *Service) WriteXLSX(doc extract.Document, opts Options) ([]byte, Summary, error) {
	start := time.Now()
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, Summary{}, fmt.Errorf("sheet name %q: %w", sheet, err)
	}

	cols := Columns(s.catalog, doc)
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, Summary{}, err
	}
	for i, h := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, Summary{}, err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, Summary{}, fmt.Errorf("header %q: %w", h, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, header); err != nil {
			return nil, Summary{}, fmt.Errorf("header style: %w", err)
		}
	}

	for r, rec := range doc {
		for c, col := range cols {
			v, ok := rec[col]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, Summary{}, err
			}
			// Stored as text so values like "07" or "1e3" keep their form.
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return nil, Summary{}, err
			}
		}
	}

	if len(cols) > 0 {
		last, err := excelize.ColumnNumberToName(len(cols))
		if err != nil {
			return nil, Summary{}, err
		}
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return nil, Summary{}, fmt.Errorf("column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, Summary{}, fmt.Errorf("freeze header: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("xlsx write: %w", err)
	}

	sum := Summary{Rows: len(doc), Columns: len(cols), Cells: len(doc) * len(cols)}
	s.logger.Info("export.xlsx.ok",
		"sheet", sheet,
		"rows", sum.Rows,
		"columns", sum.Columns,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), sum, nil
}

// ExportRunXLSX loads a stored run and renders it. The returned name is the
// suggested download filename.
func (s *Service) ExportRunXLSX(ctx context.Context, runID uuid.UUID, opts Options) ([]byte, string, Summary, error) {
	if s.runs == nil || s.records == nil {
		return nil, "", Summary{}, fmt.Errorf("export service has no repositories")
	}
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, "", Summary{}, err
	}
	stored, err := s.records.ListRecords(ctx, runID)
	if err != nil {
		return nil, "", Summary{}, fmt.Errorf("query records: %w", err)
	}
	doc := make(extract.Document, 0, len(stored))
	for _, r := range stored {
		doc = append(doc, extract.PageRecord(r.Fields))
	}
	data, sum, err := s.WriteXLSX(doc, opts)
	if err != nil {
		return nil, "", Summary{}, err
	}
	return data, DefaultFilename(run.Filename), sum, nil
}

// DefaultFilename derives the download name from the source file name.
func DefaultFilename(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return DefaultSheetName + ".xlsx"
	}
	return DefaultSheetName + "_" + base + ".xlsx"
}
