package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/inspection-extractor/constants"
	"github.com/joseph-ayodele/inspection-extractor/internal/extract"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
	"github.com/joseph-ayodele/inspection-extractor/internal/repository"
)

type staticSource struct{ pages []extract.Page }

func (s staticSource) ExtractPages(context.Context, string) (extract.PagesResult, error) {
	return extract.PagesResult{Pages: s.pages, SourceType: constants.PDF, Method: "pdf-ocr"}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "s.db")}, quiet())
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
	src := staticSource{pages: []extract.Page{{Index: 0, Text: "ShipNo. A-1\nUpper 200 um"}}}
	proc := pipeline.NewProcessor(quiet(), src, nil, validator,
		repository.NewRunRepository(db, quiet()), repository.NewRecordRepository(db, quiet()))

	gs, _ := NewGRPCServer(NewExtractorService(proc, quiet()), quiet())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestExtractTextOverGRPC(t *testing.T) {
	conn := dial(t)
	out := new(structpb.Struct)
	in := mustStruct(t, map[string]any{"pages": []any{"Weather fine/cloud\nDew Point 12.5 C", "nothing"}})
	if err := conn.Invoke(context.Background(), FullMethod("ExtractText"), in, out); err != nil {
		t.Fatalf("ExtractText error = %v", err)
	}
	recs := out.AsMap()["records"].([]any)
	if len(recs) != 1 {
		t.Fatalf("records = %v", recs)
	}
	rec := recs[0].(map[string]any)
	if rec["Weather_1"] != "晴" || rec["Weather_2"] != "曇" || rec["Dew Point"] != "12.5" {
		t.Fatalf("record = %v", rec)
	}

	bad := mustStruct(t, map[string]any{"pages": []any{1.0}})
	err := conn.Invoke(context.Background(), FullMethod("ExtractText"), bad, out)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestExtractFileAndGetRunOverGRPC(t *testing.T) {
	conn := dial(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "r.pdf")
	if err := os.WriteFile(path, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod("ExtractFile"), mustStruct(t, map[string]any{"path": path}), out); err != nil {
		t.Fatalf("ExtractFile error = %v", err)
	}
	runID := out.AsMap()["run_id"].(string)
	if runID == "" || out.AsMap()["deduplicated"] != false {
		t.Fatalf("ExtractFile = %v", out.AsMap())
	}

	got := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod("GetRun"), mustStruct(t, map[string]any{"run_id": runID}), got); err != nil {
		t.Fatalf("GetRun error = %v", err)
	}
	m := got.AsMap()
	run := m["run"].(map[string]any)
	if run["status"] != "OK" || run["filename"] != "r.pdf" {
		t.Fatalf("run = %v", run)
	}
	rec := m["records"].([]any)[0].(map[string]any)
	if rec["ShipNo."] != "A-1" || rec["Upper"] != "200" {
		t.Fatalf("record = %v", rec)
	}

	err := conn.Invoke(ctx, FullMethod("GetRun"), mustStruct(t, map[string]any{"run_id": "00000000-0000-0000-0000-000000000001"}), got)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
	err = conn.Invoke(ctx, FullMethod("ExtractFile"), mustStruct(t, map[string]any{}), got)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestHealthServing(t *testing.T) {
	conn := dial(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: extractorServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}
