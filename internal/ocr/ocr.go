package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Pdfinfo   string // binary name or absolute path; if empty -> "pdfinfo"
	Tesseract string // binary name or absolute path; resolved when empty

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for PDF pages, default 216
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// PreferTextLayer uses the embedded PDF text when every page has one.
	PreferTextLayer bool
	FoldWidth       bool
}

// Recognizer turns one page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// embeddedRecognizer is registered by builds that link tesseract in-process.
var embeddedRecognizer func(cfg Config) Recognizer

// Extractor renders documents page by page and runs them through tesseract.
type Extractor struct {
	cfg        Config
	runner     Runner
	recognizer Recognizer
	logger     *slog.Logger

	pageCount func(ctx context.Context, path string) (int, error)
	textLayer func(path string) ([]string, error)
}

var _ extract.PageSource = (*Extractor)(nil)

func withDefaults(cfg Config) Config {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 216
	}
	return cfg
}

// NewExtractor builds an Extractor backed by the local tesseract and poppler
// binaries. It fails with common.ErrOCRUnavailable when tesseract cannot be found.
func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)
	e := NewExtractorWithRunner(cfg, ExecRunner{Logger: logger}, logger)
	if embeddedRecognizer != nil {
		e.recognizer = embeddedRecognizer(cfg)
		logger.Info("using embedded tesseract", "lang", cfg.TesseractLang)
		return e, nil
	}
	bin, err := ResolveTesseract(cfg.Tesseract)
	if err != nil {
		return nil, err
	}
	e.cfg.Tesseract = bin
	e.recognizer = &cliRecognizer{cfg: e.cfg, runner: e.runner}
	logger.Info("using tesseract binary", "path", bin, "lang", cfg.TesseractLang)
	return e, nil
}

// NewExtractorWithRunner skips binary resolution; tests pass a stub runner.
func NewExtractorWithRunner(cfg Config, r Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	e := &Extractor{
		cfg:        cfg,
		runner:     r,
		recognizer: &cliRecognizer{cfg: cfg, runner: r},
		logger:     logger,
		textLayer:  pdfTextLayer,
	}
	e.pageCount = e.countPages
	return e
}

// ExtractPages picks a strategy based on file extension.
func (e *Extractor) ExtractPages(ctx context.Context, path string) (extract.PagesResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	var (
		res extract.PagesResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path, ext)
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return extract.PagesResult{}, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported extension: %q", ext), common.ErrInvalidInput)
	}
	res.Duration = time.Since(start)
	res.Language = e.cfg.TesseractLang
	for i := range res.Pages {
		if res.Pages[i].Err == nil {
			res.Pages[i].Text = Normalize(res.Pages[i].Text, e.cfg.FoldWidth)
		}
	}
	if err == nil {
		e.logger.Info("ocr extraction done",
			"path", path,
			"method", res.Method,
			"pages", len(res.Pages),
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res, err
}

// cliRecognizer shells out to `tesseract <img> stdout`.
type cliRecognizer struct {
	cfg    Config
	runner Runner
}

func (c *cliRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", c.cfg.TesseractLang}
	if c.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", c.cfg.PSM))
	}
	if c.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", c.cfg.OEM))
	}
	if c.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.cfg.TessdataDir)
	}
	out, errb, err := c.runner.Run(ctx, c.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
