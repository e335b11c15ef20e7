package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// FileTypes holds the allowed source formats for an extraction run.
var FileTypes = []string{PDF, IMAGE}

// AllowedExtensions holds the extensions accepted for inspection report ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF or IMAGE for a supported extension, "" otherwise.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "tif", "tiff", "bmp":
		return IMAGE
	default:
		return ""
	}
}

// NeedsPNGConversion reports image formats tesseract may not read natively.
func NeedsPNGConversion(ext string) bool {
	switch NormalizeExt(ext) {
	case "tif", "tiff", "bmp":
		return true
	}
	return false
}
