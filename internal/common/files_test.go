package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SHA-256 of "abc", a fixed vector.
const abcDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestSha256OfReader(t *testing.T) {
	hex, n, err := Sha256OfReader(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if hex != abcDigest {
		t.Errorf("digest = %s", hex)
	}
}

func TestSha256OfReaderLargerThanChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, hashChunkSize*3+17)
	hex, n, err := Sha256OfReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("n = %d, want %d", n, len(data))
	}
	hex2, _, err := Sha256OfReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hex != hex2 {
		t.Error("digest not deterministic")
	}
}

func TestSha256OfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	hex, n, err := Sha256OfFile(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if n != 3 || hex != abcDigest {
		t.Errorf("got %s (%d bytes)", hex, n)
	}
}

func TestSha256OfFileMissing(t *testing.T) {
	if _, _, err := Sha256OfFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHasherMatchesReader(t *testing.T) {
	h := NewHasher()
	if _, err := h.Write([]byte("ab")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := h.Write([]byte("c")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if h.Sum() != abcDigest {
		t.Errorf("digest = %s", h.Sum())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.SetTotalBytes(100)
	m.AddFile(40)
	m.AddBytes(10)
	m.Stop()
	snap := m.Snapshot()
	if snap.Files != 1 {
		t.Errorf("files = %d", snap.Files)
	}
	if snap.Bytes != 50 {
		t.Errorf("bytes = %d", snap.Bytes)
	}
	if snap.Completion() != 0.5 {
		t.Errorf("completion = %f", snap.Completion())
	}
	if snap.Duration <= 0 {
		t.Errorf("duration = %v", snap.Duration)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{3 * 1024 * 1024, "3.00 MiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
