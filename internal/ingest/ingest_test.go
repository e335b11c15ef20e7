package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/inspection-extractor/internal/async"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PNG", "notes.txt", "sub/c.tiff", ".hidden/d.pdf", ".e.jpg"} {
		touch(t, filepath.Join(root, name))
	}

	files, stats, err := ScanDirectory(root, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.tiff"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	if stats.Matched != 3 || stats.Scanned != 4 {
		t.Fatalf("stats = %+v", stats)
	}

	all, _, err := ScanDirectory(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("without skipHidden got %v", all)
	}

	if _, _, err := ScanDirectory(filepath.Join(root, "missing"), false); err == nil {
		t.Fatal("expected error for missing root")
	}
	if _, _, err := ScanDirectory(" ", false); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestStartWatcherInitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "existing.pdf"))
	touch(t, filepath.Join(root, "ignored.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    50 * time.Millisecond,
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}

	next := func() string {
		t.Helper()
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}

	if got := next(); got != filepath.Join(root, "existing.pdf") {
		t.Fatalf("initial event = %q", got)
	}

	fresh := filepath.Join(root, "fresh.png")
	touch(t, fresh)
	if got := next(); got != fresh {
		t.Fatalf("new file event = %q", got)
	}

	cancel()
	for range events {
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, quiet()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Shutdown(context.Context) {}

func TestFeed(t *testing.T) {
	events := make(chan string, 2)
	events <- "a.pdf"
	events <- "b.pdf"
	close(events)

	q := &fakeQueue{}
	Feed(context.Background(), events, q, quiet())
	if len(q.jobs) != 2 || q.jobs[1].Path != "b.pdf" || q.jobs[0].SubmittedAt.IsZero() {
		t.Fatalf("jobs = %+v", q.jobs)
	}
}
