package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/inspection-extractor/internal/export"
)

// planOutputs drops repeated inputs (same file named twice, or passed as an
// argument and also found under --dir) and assigns each remaining input its
// own workbook path. Inputs whose default names collide in outDir get a
// numeric suffix instead of overwriting each other.
func planOutputs(inputs []string, outDir string, logger *slog.Logger) ([]string, map[string]string) {
	seen := make(map[string]struct{}, len(inputs))
	taken := make(map[string]string, len(inputs))
	var unique []string
	outputs := make(map[string]string, len(inputs))

	for _, in := range inputs {
		key := in
		if abs, err := filepath.Abs(in); err == nil {
			key = abs
		}
		if _, dup := seen[key]; dup {
			logger.Warn("skipping repeated input", "path", in)
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, in)

		dir := outDir
		if dir == "" {
			dir = filepath.Dir(in)
		}
		name := export.DefaultFilename(in)
		out := filepath.Join(dir, name)
		for n := 2; ; n++ {
			prev, clash := taken[out]
			if !clash {
				break
			}
			if n == 2 {
				logger.Warn("output name collision", "path", in, "other", prev, "output", out)
			}
			out = filepath.Join(dir, fmt.Sprintf("%s_%d.xlsx", strings.TrimSuffix(name, ".xlsx"), n))
		}
		taken[out] = in
		outputs[in] = out
	}
	return unique, outputs
}
