package ocr

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
)

func swapLookups(t *testing.T, look func(string) (string, error), stat func(string) (os.FileInfo, error)) {
	t.Helper()
	origLook, origStat, origEnv := lookPath, statFile, getenv
	lookPath, statFile = look, stat
	getenv = func(k string) string {
		if k == "USERNAME" {
			return "inspector"
		}
		return ""
	}
	t.Cleanup(func() { lookPath, statFile, getenv = origLook, origStat, origEnv })
}

func notFound(string) (string, error)    { return "", errors.New("not found") }
func noFile(string) (os.FileInfo, error) { return nil, fs.ErrNotExist }
func onPath(p string) (string, error)    { return "/usr/bin/" + p, nil }

func TestResolveTesseractOnPath(t *testing.T) {
	swapLookups(t, onPath, noFile)
	got, err := ResolveTesseract("")
	if err != nil || got != "/usr/bin/tesseract" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveTesseractConfiguredMissing(t *testing.T) {
	swapLookups(t, notFound, noFile)
	_, err := ResolveTesseract("/opt/tess/bin/tesseract")
	if !errors.Is(err, common.ErrOCRUnavailable) {
		t.Fatalf("want ErrOCRUnavailable, got %v", err)
	}
}

func TestResolveTesseractWindowsFallback(t *testing.T) {
	self, err := os.Stat(os.Args[0])
	if err != nil {
		t.Skip("cannot stat test binary")
	}
	var probed []string
	swapLookups(t, notFound, func(p string) (os.FileInfo, error) {
		probed = append(probed, p)
		if len(probed) == 3 {
			return self, nil
		}
		return nil, fs.ErrNotExist
	})
	got, err := ResolveTesseract("")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != probed[2] || len(probed) != 3 {
		t.Fatalf("got %q after probing %v", got, probed)
	}
}

func TestResolveTesseractNowhere(t *testing.T) {
	swapLookups(t, notFound, noFile)
	if _, err := ResolveTesseract(""); !errors.Is(err, common.ErrOCRUnavailable) {
		t.Fatalf("want ErrOCRUnavailable, got %v", err)
	}
}
