package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/deploykit/templatehub/internal/models"
	"github.com/google/uuid"
)

// fakeStrategy writes a fixed set of files into the destination, or fails.
type fakeStrategy struct {
	name  string
	files map[string]string
	err   error
}

func (f fakeStrategy) Name() string { return f.name }

func (f fakeStrategy) Unpack(ctx context.Context, archivePath, destDir string) error {
	if f.err != nil {
		return f.err
	}
	for name, content := range f.files {
		target := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

type reporterCall struct {
	templateID uuid.UUID
	status     models.ExtractionStatus
	path       string
}

type recordingReporter struct {
	calls []reporterCall
	err   error
}

func (r *recordingReporter) ReportStatus(ctx context.Context, templateID uuid.UUID, st models.ExtractionStatus, relPath string) error {
	r.calls = append(r.calls, reporterCall{templateID, st, relPath})
	return r.err
}

func manyFiles(n int) map[string]string {
	files := make(map[string]string, n)
	for i := 0; i < n; i++ {
		files[fmt.Sprintf("file%03d.txt", i)] = "content"
	}
	return files
}

func newTestRequest(t *testing.T, root string) Request {
	t.Helper()
	archivePath := filepath.Join(root, "app-2.0.zip")
	if err := os.WriteFile(archivePath, []byte("archive bytes"), 0644); err != nil {
		t.Fatalf("failed to create archive fixture: %v", err)
	}
	return Request{
		TemplateID:  uuid.New(),
		OwnerID:     "owner1",
		Bucket:      "Default",
		Name:        "app",
		Version:     "2.0",
		ArchivePath: archivePath,
	}
}

func TestExtractor_FreshSuccess(t *testing.T) {
	root := t.TempDir()
	reporter := &recordingReporter{}
	e := New(root, fakeStrategy{name: "primary", files: manyFiles(42)}, nil, reporter)

	req := newTestRequest(t, root)
	res, err := e.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}

	if res.Status != models.ExtractionComplete {
		t.Errorf("expected complete, got %s", res.Status)
	}
	if res.FinalPath != "owner1/Default/app_v2.0" {
		t.Errorf("unexpected final path: %q", res.FinalPath)
	}
	if res.EntryCount != 42 {
		t.Errorf("expected 42 entries, got %d", res.EntryCount)
	}

	count, err := CountEntries(filepath.Join(root, "owner1", "Default", "app_v2.0"))
	if err != nil {
		t.Fatalf("final directory missing: %v", err)
	}
	if count != 42 {
		t.Errorf("expected 42 files on disk, got %d", count)
	}

	if _, err := os.Stat(req.ArchivePath); !os.IsNotExist(err) {
		t.Error("expected source archive to be deleted")
	}

	if len(reporter.calls) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(reporter.calls))
	}
	call := reporter.calls[0]
	if call.status != models.ExtractionComplete || call.path != "owner1/Default/app_v2.0" {
		t.Errorf("unexpected report: %+v", call)
	}
}

func TestExtractor_FallbackSuccess(t *testing.T) {
	root := t.TempDir()
	reporter := &recordingReporter{}
	e := New(root,
		fakeStrategy{name: "primary", err: errors.New("corrupt header")},
		fakeStrategy{name: "secondary", files: manyFiles(10)},
		reporter)

	res, err := e.Run(context.Background(), newTestRequest(t, root))
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if res.Status != models.ExtractionComplete {
		t.Errorf("expected complete, got %s", res.Status)
	}

	count, err := CountEntries(filepath.Join(root, "owner1", "Default", "app_v2.0"))
	if err != nil {
		t.Fatalf("final directory missing: %v", err)
	}
	if count != 10 {
		t.Errorf("expected the secondary strategy's 10 files, got %d", count)
	}
}

func TestExtractor_TotalFailure(t *testing.T) {
	root := t.TempDir()
	reporter := &recordingReporter{}
	e := New(root,
		fakeStrategy{name: "primary", err: errors.New("primary boom")},
		fakeStrategy{name: "secondary", err: errors.New("secondary boom")},
		reporter)

	res, err := e.Run(context.Background(), newTestRequest(t, root))
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
	if res.Status != models.ExtractionFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}

	if _, statErr := os.Stat(filepath.Join(root, "owner1", "Default", "app_v2.0")); statErr == nil {
		t.Error("final directory must not exist after total failure")
	}

	if len(reporter.calls) != 1 || reporter.calls[0].status != models.ExtractionFailed {
		t.Errorf("expected one failed report, got %+v", reporter.calls)
	}
	if reporter.calls[0].path != "" {
		t.Errorf("failure must not touch the recorded path, got %q", reporter.calls[0].path)
	}

	// Failures never write markers
	m, _, err := LatestMarker(filepath.Join(root, "owner1", "Default"), "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected marker scan error: %v", err)
	}
	if m != nil {
		t.Error("no marker may be written on failure")
	}
}

func TestExtractor_ZeroEntriesIsFailure(t *testing.T) {
	root := t.TempDir()
	reporter := &recordingReporter{}
	e := New(root, fakeStrategy{name: "primary", files: map[string]string{}}, nil, reporter)

	res, err := e.Run(context.Background(), newTestRequest(t, root))
	if err == nil {
		t.Fatal("expected error for empty extraction")
	}
	if res.Status != models.ExtractionFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}
}

func TestExtractor_WritesMarkerWithoutReporter(t *testing.T) {
	root := t.TempDir()
	e := New(root, fakeStrategy{name: "primary", files: manyFiles(42)}, nil, nil)

	res, err := e.Run(context.Background(), newTestRequest(t, root))
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if res.Status != models.ExtractionComplete {
		t.Errorf("expected complete, got %s", res.Status)
	}

	m, _, err := LatestMarker(filepath.Join(root, "owner1", "Default"), "app_v2.0")
	if err != nil {
		t.Fatalf("marker scan failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected a completion marker")
	}
	if m.FinalPath != "owner1/Default/app_v2.0" || m.EntryCount != 42 {
		t.Errorf("unexpected marker: %+v", m)
	}
}

func TestExtractor_WritesMarkerWhenReporterFails(t *testing.T) {
	root := t.TempDir()
	reporter := &recordingReporter{err: errors.New("endpoint unreachable")}
	e := New(root, fakeStrategy{name: "primary", files: manyFiles(5)}, nil, reporter)

	if _, err := e.Run(context.Background(), newTestRequest(t, root)); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}

	m, _, err := LatestMarker(filepath.Join(root, "owner1", "Default"), "app_v2.0")
	if err != nil {
		t.Fatalf("marker scan failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected marker fallback after reporter failure")
	}
}

func TestExtractor_ReplacesExistingFinalDirectory(t *testing.T) {
	root := t.TempDir()

	oldDir := filepath.Join(root, "owner1", "Default", "app_v2.0")
	if err := os.MkdirAll(oldDir, 0755); err != nil {
		t.Fatalf("failed to create old final dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(oldDir, "stale.txt"), []byte("old"), 0644); err != nil {
		t.Fatalf("failed to write old file: %v", err)
	}

	e := New(root, fakeStrategy{name: "primary", files: map[string]string{"fresh.txt": "new"}}, nil, &recordingReporter{})
	if _, err := e.Run(context.Background(), newTestRequest(t, root)); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(oldDir, "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale content to be replaced")
	}
	if _, err := os.Stat(filepath.Join(oldDir, "fresh.txt")); err != nil {
		t.Errorf("expected fresh content in final dir: %v", err)
	}
}
