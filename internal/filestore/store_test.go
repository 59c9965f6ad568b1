package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "documents"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStore_SaveReadDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("report.txt", []byte("v1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("report.txt", []byte("version two")); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	got, err := s.Read("report.txt")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "version two" {
		t.Errorf("Read() = %q, want %q", got, "version two")
	}

	exists, err := s.Exists("report.txt")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true, nil", exists, err)
	}

	removed, err := s.Delete("report.txt")
	if err != nil || !removed {
		t.Errorf("Delete() = %v, %v; want true, nil", removed, err)
	}
	removed, err = s.Delete("report.txt")
	if err != nil || removed {
		t.Errorf("second Delete() = %v, %v; want false, nil", removed, err)
	}
	exists, _ = s.Exists("report.txt")
	if exists {
		t.Error("Exists() after delete = true")
	}
}

func TestStore_RejectsPaths(t *testing.T) {
	s := newTestStore(t)

	names := []string{"", ".", "..", "../escape.txt", "sub/dir.txt", `win\path.txt`}
	for _, name := range names {
		if err := s.Save(name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := s.Delete(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Delete(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)

	_ = s.Save("b.md", []byte("bb"))
	_ = s.Save("a.txt", []byte("a"))
	if err := os.WriteFile(filepath.Join(s.Root(), ".hidden"), []byte("h"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(List()) = %d, want 2: %+v", len(files), files)
	}
	if files[0].Name != "a.txt" || files[0].Size != 1 {
		t.Errorf("files[0] = %+v, want a.txt size 1", files[0])
	}
	if files[1].Name != "b.md" || files[1].Size != 2 {
		t.Errorf("files[1] = %+v, want b.md size 2", files[1])
	}
	if files[0].ModTime.IsZero() {
		t.Error("ModTime not set")
	}
}

func TestStore_ListCancelled(t *testing.T) {
	s := newTestStore(t)
	_ = s.Save("a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}
