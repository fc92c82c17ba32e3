package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_SaveAndExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	path, err := store.Save("app-1.0.zip", strings.NewReader("archive bytes"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved archive unreadable: %v", err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("unexpected content: %q", data)
	}
	if !store.Exists("app-1.0.zip") {
		t.Error("expected archive to exist")
	}
	if store.Exists("never-seen.zip") {
		t.Error("unexpected archive reported present")
	}
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Save("app.zip", strings.NewReader("old")); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	path, err := store.Save("app.zip", strings.NewReader("new"))
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("expected replacement content, got %q", data)
	}
}

func TestStore_PathConfinesToRoot(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	path, err := store.Path("../../etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(path) != store.Root() {
		t.Errorf("resolved path escaped the root: %q", path)
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Save("app.zip", strings.NewReader("x")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Remove("app.zip"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if store.Exists("app.zip") {
		t.Error("archive still present after remove")
	}
	if err := store.Remove("app.zip"); err != nil {
		t.Errorf("removing an absent archive must not fail: %v", err)
	}
}
