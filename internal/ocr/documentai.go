package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
)

// DocumentAIConfig points at a Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID       string
	Location        string // e.g. "us" or "eu"
	ProcessorID     string
	CredentialsFile string // falls back to GOOGLE_APPLICATION_CREDENTIALS
	FoldWidth       bool
}

type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error)

// DocumentAIExtractor sends the whole file to Document AI and splits the
// response into pages using each page layout's text anchor.
type DocumentAIExtractor struct {
	cfg     DocumentAIConfig
	process processFunc
	close   func() error
	logger  *slog.Logger
}

var _ extract.PageSource = (*DocumentAIExtractor)(nil)

func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig, logger *slog.Logger) (*DocumentAIExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, common.NewAppError("OCR_UNAVAILABLE", "create document ai client", fmt.Errorf("%w: %v", common.ErrOCRUnavailable, err))
	}
	return &DocumentAIExtractor{
		cfg: cfg,
		process: func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
			resp, err := client.ProcessDocument(ctx, req)
			if err != nil {
				return nil, err
			}
			return resp.GetDocument(), nil
		},
		close:  client.Close,
		logger: logger,
	}, nil
}

func (d *DocumentAIExtractor) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func (d *DocumentAIExtractor) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID)
}

func (d *DocumentAIExtractor) ExtractPages(ctx context.Context, path string) (extract.PagesResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	res := extract.PagesResult{SourceType: constants.MapExtToFormat(ext), Method: "documentai"}

	mime := mimeTypeForExt(ext)
	if mime == "" {
		return res, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported extension: %q", ext), common.ErrInvalidInput)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mime,
			},
		},
		SkipHumanReview: true,
	}
	doc, err := d.process(ctx, req)
	if err != nil {
		d.logger.Error("document ai request failed", "path", path, "error", err)
		return res, fmt.Errorf("process document: %w", err)
	}

	for i, text := range pageTexts(doc) {
		res.Pages = append(res.Pages, extract.Page{Index: i, Text: Normalize(text, d.cfg.FoldWidth)})
	}
	if len(res.Pages) == 0 {
		res.Warnings = append(res.Warnings, "document ai returned no pages")
	}
	res.Language = detectedLanguage(doc)
	res.Duration = time.Since(start)
	d.logger.Info("document ai extraction done", "path", path, "pages", len(res.Pages), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// pageTexts slices doc.Text by each page's layout anchor. Anchor indexes are
// rune offsets into the full text.
func pageTexts(doc *documentaipb.Document) []string {
	if doc == nil {
		return nil
	}
	runes := []rune(doc.GetText())
	out := make([]string, 0, len(doc.GetPages()))
	for _, p := range doc.GetPages() {
		anchor := p.GetLayout().GetTextAnchor()
		var b strings.Builder
		for _, seg := range anchor.GetTextSegments() {
			start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
			if end > len(runes) {
				end = len(runes)
			}
			if start < 0 {
				start = 0
			}
			if start > end {
				start = end
			}
			b.WriteString(string(runes[start:end]))
		}
		out = append(out, b.String())
	}
	return out
}

func detectedLanguage(doc *documentaipb.Document) string {
	for _, p := range doc.GetPages() {
		for _, l := range p.GetDetectedLanguages() {
			if l.GetLanguageCode() != "" {
				return l.GetLanguageCode()
			}
		}
	}
	return ""
}

func mimeTypeForExt(ext string) string {
	switch constants.NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	}
	return ""
}
