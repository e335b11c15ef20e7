package ocr

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
)

// Swapped in tests.
var (
	lookPath = exec.LookPath
	statFile = os.Stat
	getenv   = os.Getenv
)

// windowsInstallPaths lists where the common Windows installers put tesseract.
func windowsInstallPaths() []string {
	paths := []string{
		`C:\Program Files\Tesseract-OCR\tesseract.exe`,
		`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
	}
	if user := getenv("USERNAME"); user != "" {
		paths = append(paths, filepath.Join(`C:\Users`, user, `AppData\Local\Programs\Tesseract-OCR\tesseract.exe`))
	}
	return paths
}

// ResolveTesseract finds a usable tesseract binary. An explicitly configured
// path wins, then PATH, then the well-known Windows install locations.
func ResolveTesseract(configured string) (string, error) {
	if configured != "" {
		if p, err := lookPath(configured); err == nil {
			return p, nil
		}
		return "", common.NewAppError("OCR_UNAVAILABLE", fmt.Sprintf("configured tesseract %q not found", configured), common.ErrOCRUnavailable)
	}
	if p, err := lookPath("tesseract"); err == nil {
		return p, nil
	}
	for _, p := range windowsInstallPaths() {
		if st, err := statFile(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", common.NewAppError("OCR_UNAVAILABLE", "tesseract not found on PATH or in default install locations", common.ErrOCRUnavailable)
}
