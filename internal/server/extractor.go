package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/inspection-extractor/internal/common"
	"github.com/joseph-ayodele/inspection-extractor/internal/entity"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
)

type ExtractorService struct {
	proc   *pipeline.Processor
	logger *slog.Logger
}

var _ ExtractorServer = (*ExtractorService)(nil)

func NewExtractorService(proc *pipeline.Processor, logger *slog.Logger) *ExtractorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorService{proc: proc, logger: logger}
}

func (s *ExtractorService) ExtractText(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pagesVal, ok := req.GetFields()["pages"]
	if !ok || pagesVal.GetListValue() == nil {
		return nil, common.InvalidArgumentError("pages must be a list of strings")
	}
	var texts []string
	for i, v := range pagesVal.GetListValue().GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, common.InvalidArgumentErrorf("pages[%d] must be a string", i)
		}
		texts = append(texts, sv.StringValue)
	}
	doc, err := s.proc.ExtractTexts(texts)
	if err != nil {
		s.logger.Error("extract text failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"records": documentToList(doc)})
}

func (s *ExtractorService) ExtractFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(req.GetFields()["path"].GetStringValue())
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	force := req.GetFields()["force"].GetBoolValue()

	out, err := s.proc.ProcessFile(ctx, path, force)
	if err != nil {
		s.logger.Error("extract file failed", "path", path, "error", err)
		return nil, common.ToStatus(err)
	}
	warnings := make([]any, len(out.Warnings))
	for i, w := range out.Warnings {
		warnings[i] = w
	}
	return toStruct(map[string]any{
		"run_id":       runIDString(out.RunID),
		"deduplicated": out.Deduplicated,
		"pages":        out.Pages,
		"method":       out.Method,
		"records":      documentToList(out.Document),
		"warnings":     warnings,
	})
}

func (s *ExtractorService) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := strings.TrimSpace(req.GetFields()["run_id"].GetStringValue())
	runID, err := uuid.Parse(raw)
	if err != nil {
		return nil, common.InvalidArgumentError("run_id must be a UUID")
	}
	run, doc, err := s.proc.LoadRun(ctx, runID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{
		"run":     runToMap(run),
		"records": documentToList(doc),
	})
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return st, nil
}

func documentToList(doc extract.Document) []any {
	out := make([]any, len(doc))
	for i, rec := range doc {
		m := make(map[string]any, len(rec))
		for k, v := range rec {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

func runToMap(run *entity.Run) map[string]any {
	m := map[string]any{
		"id":           run.ID.String(),
		"filename":     run.Filename,
		"content_hash": run.ContentHash,
		"source_type":  run.SourceType,
		"method":       run.Method,
		"status":       string(run.Status),
		"pages":        run.Pages,
		"records":      run.Records,
		"started_at":   run.StartedAt.Format(time.RFC3339Nano),
	}
	if run.FinishedAt != nil {
		m["finished_at"] = run.FinishedAt.Format(time.RFC3339Nano)
	}
	if run.ErrorMessage != nil {
		m["error_message"] = *run.ErrorMessage
	}
	return m
}

func runIDString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
