package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
)

func TestOpenDatabaseInMemory(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Database.DSN = "postgres://ignored"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := OpenDatabase(context.Background(), cfg, true, logger)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Cleanup()

	runs, err := db.Runs.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 0 {
		t.Fatalf("ListRuns() = %v, %v", runs, err)
	}
}

func TestNewPageSourceUnknownEngine(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.OCR.Engine = "abacus"
	_, _, err := NewPageSource(context.Background(), cfg, slog.Default())
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}
