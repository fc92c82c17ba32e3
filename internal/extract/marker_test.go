package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndReadMarker(t *testing.T) {
	dir := t.TempDir()

	err := WriteMarker(dir, "app_v2.0", Marker{FinalPath: "owner1/Default/app_v2.0", EntryCount: 42})
	if err != nil {
		t.Fatalf("failed to write marker: %v", err)
	}

	m, path, err := LatestMarker(dir, "app_v2.0")
	if err != nil {
		t.Fatalf("failed to read marker: %v", err)
	}
	if m == nil {
		t.Fatal("expected a marker")
	}
	if m.FinalPath != "owner1/Default/app_v2.0" {
		t.Errorf("unexpected final path: %q", m.FinalPath)
	}
	if m.EntryCount != 42 {
		t.Errorf("unexpected entry count: %d", m.EntryCount)
	}
	if m.MarkerID == "" {
		t.Error("expected a generated marker id")
	}
	if filepath.Base(path) != MarkerFileName("app_v2.0") {
		t.Errorf("unexpected marker file: %q", path)
	}
}

func TestLatestMarker_NoMarker(t *testing.T) {
	m, _, err := LatestMarker(t.TempDir(), "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected no marker, got %+v", m)
	}
}

func TestLatestMarker_MissingParentDirIsNotAnError(t *testing.T) {
	m, _, err := LatestMarker(filepath.Join(t.TempDir(), "absent"), "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected no marker for missing parent")
	}
}

func TestLatestMarker_PrefersMostRecent(t *testing.T) {
	dir := t.TempDir()

	// Legacy name first, canonical written later
	legacy := filepath.Join(dir, "app_v2.0.done")
	if err := os.WriteFile(legacy, []byte(`{"final_path":"owner1/Default/stale","entry_count":1}`), 0644); err != nil {
		t.Fatalf("failed to write legacy marker: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(legacy, old, old); err != nil {
		t.Fatalf("failed to age legacy marker: %v", err)
	}

	if err := WriteMarker(dir, "app_v2.0", Marker{FinalPath: "owner1/Default/app_v2.0", EntryCount: 42}); err != nil {
		t.Fatalf("failed to write canonical marker: %v", err)
	}

	m, _, err := LatestMarker(dir, "app_v2.0")
	if err != nil {
		t.Fatalf("failed to read markers: %v", err)
	}
	if m == nil || m.FinalPath != "owner1/Default/app_v2.0" {
		t.Errorf("expected most recent marker to win, got %+v", m)
	}
}

func TestLatestMarker_HonorsBareLegacyFile(t *testing.T) {
	dir := t.TempDir()

	// Not JSON at all; presence of the file is the whole signal
	if err := os.WriteFile(filepath.Join(dir, "app_v2.0.done"), []byte("done\n"), 0644); err != nil {
		t.Fatalf("failed to write legacy marker: %v", err)
	}

	m, path, err := LatestMarker(dir, "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("bare legacy marker must be honored")
	}
	if m.FinalPath != "" {
		t.Errorf("bare marker carries no payload, got %q", m.FinalPath)
	}
	if filepath.Base(path) != "app_v2.0.done" {
		t.Errorf("unexpected marker file: %q", path)
	}
}

func TestLatestMarker_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, MarkerFileName("app_v2.0"))
	if err := os.WriteFile(bad, []byte("not json"), 0644); err != nil {
		t.Fatalf("failed to write bad marker: %v", err)
	}

	m, _, err := LatestMarker(dir, "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("malformed marker should be skipped, got %+v", m)
	}
}

func TestLatestMarker_IgnoresOtherTemplates(t *testing.T) {
	dir := t.TempDir()

	if err := WriteMarker(dir, "other_v1.0", Marker{FinalPath: "owner1/Default/other_v1.0", EntryCount: 3}); err != nil {
		t.Fatalf("failed to write marker: %v", err)
	}

	m, _, err := LatestMarker(dir, "app_v2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected no marker for unrelated template, got %+v", m)
	}
}
