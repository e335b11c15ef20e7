package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
)

// extractImage treats an image file as a single-page document.
func (e *Extractor) extractImage(ctx context.Context, path, ext string) (extract.PagesResult, error) {
	res := extract.PagesResult{SourceType: constants.IMAGE, Method: "image-ocr"}

	src := path
	if constants.NeedsPNGConversion(ext) {
		out, cleanup, err := convertToPNG(path, ext)
		if err != nil {
			e.logger.Error("image conversion failed", "path", path, "error", err)
			return res, err
		}
		defer cleanup()
		src = out
	}

	page := extract.Page{Index: 0}
	page.Text, page.Err = e.recognizer.Recognize(ctx, src)
	if page.Err != nil {
		e.logger.Warn("image ocr failed", "path", path, "error", page.Err)
		res.Warnings = append(res.Warnings, page.Err.Error())
	}
	res.Pages = []extract.Page{page}
	return res, nil
}

// convertToPNG decodes TIFF or BMP input and writes a temporary PNG.
// Only the first frame of a multi-page TIFF is read.
func convertToPNG(path, ext string) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var img image.Image
	switch constants.NormalizeExt(ext) {
	case "tif", "tiff":
		img, err = tiff.Decode(f)
	case "bmp":
		img, err = bmp.Decode(f)
	default:
		return "", nil, fmt.Errorf("no decoder for %q", ext)
	}
	if err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", ext, err)
	}

	tmpDir, err := os.MkdirTemp("", "inspection-img-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")
	w, err := os.Create(out)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if err := png.Encode(w, img); err != nil {
		w.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode png: %w", err)
	}
	if err := w.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return out, cleanup, nil
}
