package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/export"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

type staticSource struct{ pages []extract.Page }

func (s staticSource) ExtractPages(context.Context, string) (extract.PagesResult, error) {
	return extract.PagesResult{Pages: s.pages, SourceType: constants.PDF, Method: "pdf-ocr"}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "api.db")}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close(quiet()) })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	validator, err := extract.NewRecordValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	runs := repository.NewRunRepository(db, quiet())
	records := repository.NewRecordRepository(db, quiet())
	src := staticSource{pages: []extract.Page{
		{Index: 0, Text: "ShipNo. A-1\nUpper 200 um"},
		{Index: 1, Text: "ShipNo. A-2\nLower 150"},
	}}
	proc := pipeline.NewProcessor(quiet(), src, nil, validator, runs, records)
	exp := export.NewService(runs, records, nil, quiet())
	return NewServer(proc, exp, quiet(), Config{MaxUploadBytes: maxUpload})
}

func upload(t *testing.T, name string, body []byte, query string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(body)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/extract"+query, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestExtractReturnsWorkbook(t *testing.T) {
	s := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, upload(t, "report.pdf", []byte("%PDF-1.4"), ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Run-ID") == "" {
		t.Fatal("missing X-Run-ID")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "UTF-8''") || !strings.Contains(cd, "report.xlsx") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.DefaultSheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
}

func TestExtractJSONThenRunEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, upload(t, "report.pdf", []byte("%PDF-1.4"), "?format=json"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 2 || resp.Records[0]["Upper"] != "200" || resp.Records[1]["Lower"] != "150" {
		t.Fatalf("records = %v", resp.Records)
	}
	if resp.Deduplicated {
		t.Fatal("first upload should not be deduplicated")
	}

	// Same bytes again should come back from the stored run.
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, upload(t, "again.pdf", []byte("%PDF-1.4"), "?format=json"))
	var again extractResponse
	json.Unmarshal(rec.Body.Bytes(), &again)
	if !again.Deduplicated || again.RunID != resp.RunID {
		t.Fatalf("second upload = %+v", again)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"OK"`) {
		t.Fatalf("get run = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/xlsx", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("run xlsx = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRunErrors(t *testing.T) {
	s := newTestServer(t, 0)
	cases := map[string]int{
		"/api/runs/not-a-uuid":                           http.StatusBadRequest,
		"/api/runs/00000000-0000-0000-0000-000000000001": http.StatusNotFound,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestExtractRejectsBadUploads(t *testing.T) {
	s := newTestServer(t, 16)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, upload(t, "notes.txt", []byte("x"), ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported ext = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, upload(t, "big.pdf", bytes.Repeat([]byte("a"), 64), ""))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader("plain"))
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no multipart = %d", rec.Code)
	}
}

func TestExtractText(t *testing.T) {
	s := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	body := `{"pages":["Weather fine/cloud\nDew Point 12.5 C",""]}`
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/extract/text", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Records extract.Document `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Records) != 1 || out.Records[0]["Weather_1"] != "晴" {
		t.Fatalf("records = %v", out.Records)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/extract/text", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		`C:\scans\report.pdf`: "report.pdf",
		"../../etc/x.pdf":     "x.pdf",
		"":                    "unnamed",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
