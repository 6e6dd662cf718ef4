package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	info, err := store.Save(ctx, "rules.csv", strings.NewReader("rule_id,name\n"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if info.Name != "rules.csv" {
		t.Errorf("info.Name = %q", info.Name)
	}
	if info.Size != int64(len("rule_id,name\n")) {
		t.Errorf("info.Size = %d", info.Size)
	}
	if !strings.HasSuffix(info.ID, ".csv") {
		t.Errorf("ID should keep the extension, got %q", info.ID)
	}

	rc, err := store.Open(ctx, info.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "rule_id,name\n" {
		t.Errorf("round trip mismatch: %q", data)
	}

	if err := store.Delete(ctx, info.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Open(ctx, info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() after delete: error = %v, want ErrNotFound", err)
	}
	// Idempotent delete.
	if err := store.Delete(ctx, info.ID); err != nil {
		t.Errorf("Delete() twice: error = %v", err)
	}
}

func TestLocalRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	bad := []string{
		"../../etc/passwd",
		"..%2fconfig.yaml",
		"plainname.csv",
		"",
	}
	for _, id := range bad {
		if _, err := store.Open(ctx, id); !errors.Is(err, ErrBadFileID) {
			t.Errorf("Open(%q) error = %v, want ErrBadFileID", id, err)
		}
		if err := store.Delete(ctx, id); !errors.Is(err, ErrBadFileID) {
			t.Errorf("Delete(%q) error = %v, want ErrBadFileID", id, err)
		}
	}
}
