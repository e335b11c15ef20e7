package extract

import (
	"context"
	"time"
)

// Page is the OCR outcome for one source page. Err is set when recognition
// failed; such a page is treated as having no text.
type Page struct {
	Index int
	Text  string
	Err   error
}

// PageSource turns a document on disk into per-page OCR text, in page order.
type PageSource interface {
	ExtractPages(ctx context.Context, path string) (PagesResult, error)
}

// PagesResult summarizes a PageSource call.
type PagesResult struct {
	Pages      []Page
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "documentai"
	Language   string
	Duration   time.Duration
	Warnings   []string
}
