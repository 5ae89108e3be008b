package common

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// hashChunkSize is the read granularity for streaming digests. Entries of
// arbitrary size are hashed without ever being held fully in memory.
const hashChunkSize = 8 * 1024

type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest accumulated so far as lowercase hex.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Sha256OfReader consumes r to EOF in fixed-size chunks and returns the
// lowercase hex SHA-256 digest along with the number of bytes read.
func Sha256OfReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Sha256OfFile returns the lowercase hex SHA-256 digest of the file at path
// and the file's size in bytes.
func Sha256OfFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	hex, n, err := Sha256OfReader(f)
	if err != nil {
		return "", 0, err
	}
	return hex, n, nil
}
