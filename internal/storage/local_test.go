package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return p
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewLocalStorage(filepath.Join(tmpDir, "storage"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	ctx := context.Background()
	srcPath := writeTemp(t, tmpDir, "source.rows", "hello world")

	if err := storage.Upload(ctx, srcPath, "source/teams.rows"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	exists, err := storage.Exists(ctx, "source/teams.rows")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(tmpDir, "download.rows")
	if err := storage.Download(ctx, "source/teams.rows", dstPath); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestLocalStorage_ETagStableAcrossInstances(t *testing.T) {
	tmpDir := t.TempDir()
	base := filepath.Join(tmpDir, "storage")
	first, _ := NewLocalStorage(base)
	ctx := context.Background()

	src := writeTemp(t, tmpDir, "a.rows", "payload")
	if err := first.Upload(ctx, src, "staging/teams.rows"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	etag1, err := first.ETag(ctx, "staging/teams.rows")
	if err != nil {
		t.Fatalf("etag failed: %v", err)
	}

	second, _ := NewLocalStorage(base)
	etag2, err := second.ETag(ctx, "staging/teams.rows")
	if err != nil {
		t.Fatalf("etag failed: %v", err)
	}
	if etag1 != etag2 || etag1 == "" {
		t.Errorf("etag mismatch across instances: %q vs %q", etag1, etag2)
	}

	if _, err := second.ETag(ctx, "staging/missing.rows"); err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_ConditionalPut(t *testing.T) {
	tmpDir := t.TempDir()
	storage, _ := NewLocalStorage(filepath.Join(tmpDir, "storage"))
	ctx := context.Background()

	v1 := writeTemp(t, tmpDir, "v1.rows", "version 1")
	v2 := writeTemp(t, tmpDir, "v2.rows", "version 2")

	// Create-only put succeeds when the object is absent.
	if err := storage.ConditionalPut(ctx, v1, "hub.rows", ""); err != nil {
		t.Fatalf("initial conditional put failed: %v", err)
	}
	// And fails once it exists.
	if err := storage.ConditionalPut(ctx, v2, "hub.rows", ""); err != ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	etag, err := storage.ETag(ctx, "hub.rows")
	if err != nil {
		t.Fatalf("etag failed: %v", err)
	}

	if err := storage.ConditionalPut(ctx, v2, "hub.rows", "wrong-etag"); err != ErrPreconditionFailed {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
	if err := storage.ConditionalPut(ctx, v2, "hub.rows", etag); err != nil {
		t.Errorf("conditional put with correct etag failed: %v", err)
	}

	newETag, _ := storage.ETag(ctx, "hub.rows")
	if newETag == etag {
		t.Error("expected etag to change after overwrite")
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	storage, _ := NewLocalStorage(filepath.Join(tmpDir, "storage"))

	err := storage.Download(context.Background(), "nonexistent.rows", filepath.Join(tmpDir, "out.rows"))
	if err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	tmpDir := t.TempDir()
	storage, _ := NewLocalStorage(filepath.Join(tmpDir, "storage"))
	ctx := context.Background()
	src := writeTemp(t, tmpDir, "x.rows", "x")

	for _, p := range []string{"source/teams_2024_01_02.rows", "source/teams_2024_01_01.rows", "staging/teams.rows"} {
		if err := storage.Upload(ctx, src, p); err != nil {
			t.Fatalf("upload %s failed: %v", p, err)
		}
	}

	objs, err := storage.ListObjects(ctx, "source/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %v", objs)
	}
	if objs[0] != "source/teams_2024_01_01.rows" {
		t.Errorf("expected sorted output, got %v", objs)
	}
}
