package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPlanOutputsDropsRepeatedInputs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.png")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inputs, outputs := planOutputs([]string{a, b, a, filepath.Join(dir, ".", "b.png")}, "", logger)
	if !reflect.DeepEqual(inputs, []string{a, b}) {
		t.Fatalf("inputs = %v", inputs)
	}
	want := map[string]string{
		a: filepath.Join(dir, "検査データ_a.xlsx"),
		b: filepath.Join(dir, "検査データ_b.xlsx"),
	}
	if !reflect.DeepEqual(outputs, want) {
		t.Fatalf("outputs = %v, want %v", outputs, want)
	}
}

func TestPlanOutputsSuffixesCollidingNames(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	in := []string{
		filepath.Join(root, "north", "report.pdf"),
		filepath.Join(root, "south", "report.pdf"),
		filepath.Join(root, "east", "report.png"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inputs, outputs := planOutputs(in, out, logger)
	if len(inputs) != 3 {
		t.Fatalf("inputs = %v", inputs)
	}
	want := []string{
		filepath.Join(out, "検査データ_report.xlsx"),
		filepath.Join(out, "検査データ_report_2.xlsx"),
		filepath.Join(out, "検査データ_report_3.xlsx"),
	}
	for i, p := range in {
		if outputs[p] != want[i] {
			t.Errorf("outputs[%s] = %s, want %s", p, outputs[p], want[i])
		}
	}
}
