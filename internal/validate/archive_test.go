package validate

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"example.com/relgate/internal/common"
	"example.com/relgate/internal/manifest"
)

func TestHashArchive(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	})
	hashes, err := HashArchive(zipPath, 2, nil)
	if err != nil {
		t.Fatalf("hash archive: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("hashes = %v", hashes)
	}
	if hashes["a.txt"] != digestOf("alpha") {
		t.Errorf("a.txt digest = %q", hashes["a.txt"])
	}
	if hashes["sub/b.txt"] != digestOf("beta") {
		t.Errorf("sub/b.txt digest = %q", hashes["sub/b.txt"])
	}
}

func TestHashArchiveSkipsDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirs.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("sub/"); err != nil {
		t.Fatalf("dir entry: %v", err)
	}
	w, err := zw.Create("sub/file.txt")
	if err != nil {
		t.Fatalf("file entry: %v", err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Close()

	hashes, err := HashArchive(path, 1, nil)
	if err != nil {
		t.Fatalf("hash archive: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("hashes = %v, want only sub/file.txt", hashes)
	}
}

func TestHashArchiveDuplicateNormalizedEntries(t *testing.T) {
	// "a/b.txt" and "a\b.txt" normalize to the same path.
	path := filepath.Join(t.TempDir(), "dup.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"a/b.txt", `a\b.txt`} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name})
		if err != nil {
			t.Fatalf("entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte("content")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Close()

	_, err = HashArchive(path, 1, nil)
	var dupErr *DuplicateEntryError
	if !errors.As(err, &dupErr) {
		t.Fatalf("err = %v, want DuplicateEntryError", err)
	}
	if dupErr.Path != "a/b.txt" {
		t.Errorf("duplicate path = %q", dupErr.Path)
	}
}

func TestHashArchiveTraversalEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "../evil.bin"})
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Close()

	_, err = HashArchive(path, 1, nil)
	var pathErr *manifest.PathSecurityError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err = %v, want PathSecurityError", err)
	}
}

func TestHashArchiveMissingFile(t *testing.T) {
	if _, err := HashArchive(filepath.Join(t.TempDir(), "nope.zip"), 1, nil); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestHashArchiveMetrics(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"a.txt": "1234",
		"b.txt": "56",
	})
	metrics := common.NewMetrics()
	metrics.Start()
	if _, err := HashArchive(zipPath, 2, metrics); err != nil {
		t.Fatalf("hash archive: %v", err)
	}
	metrics.Stop()
	snap := metrics.Snapshot()
	if snap.Files != 2 {
		t.Errorf("files = %d, want 2", snap.Files)
	}
	if snap.Bytes != 6 {
		t.Errorf("bytes = %d, want 6", snap.Bytes)
	}
}
