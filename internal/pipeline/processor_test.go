package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/entity"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

type fakeSource struct {
	calls atomic.Int32
	pages []extract.Page
	err   error
}

func (f *fakeSource) ExtractPages(context.Context, string) (extract.PagesResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return extract.PagesResult{}, f.err
	}
	return extract.PagesResult{Pages: f.pages, SourceType: constants.PDF, Method: "pdf-ocr", Warnings: []string{"w"}}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newPersistentProcessor(t *testing.T, src extract.PageSource) (*Processor, repository.RunRepository) {
	t.Helper()
	runs, records, validator := openStores(t)
	return NewProcessor(quiet(), src, extract.NewAssembler(nil, quiet()), validator, runs, records), runs
}

func openStores(t *testing.T) (repository.RunRepository, repository.RecordRepository, *extract.RecordValidator) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "p.db")}, quiet())
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
	return repository.NewRunRepository(db, quiet()), repository.NewRecordRepository(db, quiet()), validator
}

var samplePages = []extract.Page{
	{Index: 0, Text: "ShipNo. A-1\nWeather fine/rain"},
	{Index: 1, Err: errors.New("tesseract crashed")},
	{Index: 2, Text: "cover sheet"},
	{Index: 3, Text: "Place Dock 7"},
}

func TestProcessFilePersistsAndDedups(t *testing.T) {
	src := &fakeSource{pages: samplePages}
	p, runs := newPersistentProcessor(t, src)
	path := writeInput(t, "report.pdf", "pdf bytes")
	ctx := context.Background()

	out, err := p.ProcessFile(ctx, path, false)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	want := extract.Document{
		{"ShipNo.": "A-1", "Weather_1": "晴", "Weather_2": "雨"},
		{"Place": "Dock 7"},
	}
	if !reflect.DeepEqual(out.Document, want) {
		t.Fatalf("Document = %v, want %v", out.Document, want)
	}
	if !reflect.DeepEqual(out.PageIndexes, []int{0, 3}) || out.Pages != 4 || out.Deduplicated {
		t.Fatalf("outcome = %+v", out)
	}

	run, err := runs.GetByID(ctx, out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != constants.RunStatusOK || run.Records != 2 || run.Pages != 4 || run.ContentHash != out.ContentHash {
		t.Fatalf("run = %+v", run)
	}

	again, err := p.ProcessFile(ctx, path, false)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Deduplicated || again.RunID != out.RunID || !reflect.DeepEqual(again.Document, want) {
		t.Fatalf("dedup outcome = %+v", again)
	}
	if !reflect.DeepEqual(again.PageIndexes, []int{0, 3}) {
		t.Fatalf("dedup page indexes = %v", again.PageIndexes)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("dedup should skip OCR, got %d calls", src.calls.Load())
	}

	forced, err := p.ProcessFile(ctx, path, true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Deduplicated || forced.RunID == out.RunID || src.calls.Load() != 2 {
		t.Fatalf("force should reprocess, got %+v", forced)
	}

	gotRun, doc, err := p.LoadRun(ctx, forced.RunID)
	if err != nil || gotRun.ID != forced.RunID || !reflect.DeepEqual(doc, want) {
		t.Fatalf("LoadRun() = %+v, %v, %v", gotRun, doc, err)
	}
}

func TestProcessFileOCRFailureMarksRun(t *testing.T) {
	src := &fakeSource{err: common.NewAppError("PDF_OPEN_FAILED", "cannot read pdf page count", errors.New("eof"))}
	p, runs := newPersistentProcessor(t, src)
	ctx := context.Background()

	if _, err := p.ProcessFile(ctx, writeInput(t, "broken.pdf", "x"), false); err == nil {
		t.Fatal("expected error")
	}
	list, err := runs.ListRuns(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("runs = %v, %v", list, err)
	}
	if list[0].Status != constants.RunStatusFailed || list[0].ErrorMessage == nil {
		t.Fatalf("run = %+v", list[0])
	}
}

// finishFails lets a run start but refuses to finish it.
type finishFails struct {
	repository.RunRepository
}

func (finishFails) Finish(context.Context, uuid.UUID, entity.RunResult) error {
	return common.NewAppError("DB_WRITE_FAILED", "finish run", common.ErrDatabase)
}

func TestProcessFileFinishFailureMarksRun(t *testing.T) {
	runs, records, validator := openStores(t)
	p := NewProcessor(quiet(), &fakeSource{pages: samplePages}, nil, validator, finishFails{runs}, records)
	ctx := context.Background()

	if _, err := p.ProcessFile(ctx, writeInput(t, "report.pdf", "pdf bytes"), false); !errors.Is(err, common.ErrDatabase) {
		t.Fatalf("ProcessFile() error = %v, want ErrDatabase", err)
	}
	list, err := runs.ListRuns(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("runs = %v, %v", list, err)
	}
	if list[0].Status != constants.RunStatusFailed || list[0].ErrorMessage == nil {
		t.Fatalf("run left as %+v", list[0])
	}
}

func TestProcessFileWithoutStorage(t *testing.T) {
	p := NewProcessor(quiet(), &fakeSource{pages: samplePages}, nil, nil, nil, nil)
	out, err := p.ProcessFile(context.Background(), writeInput(t, "scan.png", "img"), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Document) != 2 || out.ContentHash == "" {
		t.Fatalf("outcome = %+v", out)
	}
	if _, _, err := p.LoadRun(context.Background(), out.RunID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("LoadRun without storage: %v", err)
	}
}

func TestProcessFileRejectsUnsupported(t *testing.T) {
	p := NewProcessor(quiet(), &fakeSource{}, nil, nil, nil, nil)
	_, err := p.ProcessFile(context.Background(), writeInput(t, "notes.txt", "x"), false)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestExtractTexts(t *testing.T) {
	validator, err := extract.NewRecordValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	p := NewProcessor(quiet(), nil, nil, validator, nil, nil)
	doc, err := p.ExtractTexts([]string{"", "Dust ISO8502-3 class 2", "junk"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, extract.Document{{"Dust": "ISO8502-3"}}) {
		t.Fatalf("doc = %v", doc)
	}
}
