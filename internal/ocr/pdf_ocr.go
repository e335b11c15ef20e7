package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
)

var rePdfinfoPages = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

func (e *Extractor) extractPDF(ctx context.Context, path string) (extract.PagesResult, error) {
	res := extract.PagesResult{SourceType: constants.PDF}

	if e.cfg.PreferTextLayer {
		if texts, err := e.textLayer(path); err == nil && allNonBlank(texts) {
			texts = e.limitPages(texts)
			res.Method = "pdf-text"
			for i, t := range texts {
				res.Pages = append(res.Pages, extract.Page{Index: i, Text: t})
			}
			return res, nil
		} else if err != nil {
			res.Warnings = append(res.Warnings, "text layer: "+err.Error())
		}
	}

	n, err := e.pageCount(ctx, path)
	if err != nil {
		return res, common.NewAppError("PDF_OPEN_FAILED", "cannot read pdf page count", err)
	}
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("page limit %d applied to %d pages", e.cfg.MaxPages, n))
		n = e.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp("", "inspection-pp-*")
	if err != nil {
		return res, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	res.Method = "pdf-ocr"
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page := extract.Page{Index: i}
		page.Text, page.Err = e.ocrPDFPage(ctx, path, tmpDir, i+1)
		if page.Err != nil {
			e.logger.Warn("page ocr failed", "path", path, "page", i+1, "error", page.Err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i+1, page.Err))
		}
		res.Pages = append(res.Pages, page)
	}
	return res, nil
}

// ocrPDFPage renders a single 1-based page to PNG and recognizes it.
func (e *Extractor) ocrPDFPage(ctx context.Context, path, tmpDir string, pageNo int) (string, error) {
	prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", pageNo))
	num := strconv.Itoa(pageNo)
	// pdftoppm -r <dpi> -png -f N -l N -singlefile <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", num, "-l", num, "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}
	img := prefix + ".png"
	if _, err := os.Stat(img); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	defer os.Remove(img)
	return e.recognizer.Recognize(ctx, img)
}

// countPages asks the PDF parser first and falls back to pdfinfo for files
// it cannot open.
func (e *Extractor) countPages(ctx context.Context, path string) (int, error) {
	if n, err := pdfPageCount(path); err == nil && n > 0 {
		return n, nil
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdfinfo, path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w: %s", err, truncate(string(errb), 512))
	}
	m := rePdfinfoPages.FindSubmatch(out)
	if m == nil {
		return 0, errors.New("pdfinfo: no page count in output")
	}
	return strconv.Atoi(string(m[1]))
}

func pdfPageCount(path string) (int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// pdfTextLayer returns the embedded text of every page, "" for pages without one.
func pdfTextLayer(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := reader.NumPage()
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func allNonBlank(texts []string) bool {
	if len(texts) == 0 {
		return false
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return false
		}
	}
	return true
}

func (e *Extractor) limitPages(texts []string) []string {
	if e.cfg.MaxPages > 0 && len(texts) > e.cfg.MaxPages {
		return texts[:e.cfg.MaxPages]
	}
	return texts
}
