package validate

import (
	"archive/zip"
	"fmt"
	"runtime"
	"sync"

	"example.com/relgate/internal/common"
	"example.com/relgate/internal/manifest"
)

// HashArchive computes a map of normalized entry path to lowercase hex
// SHA-256 digest for every non-directory entry in the ZIP at zipPath.
// Entry names are normalized before hashing; two entries normalizing to the
// same path are a fatal DuplicateEntryError. Entries are hashed across a
// bounded worker pool and each entry stream is closed as soon as its digest
// is consumed.
func HashArchive(zipPath string, concurrency int, metrics *common.Metrics) (map[string]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	type entry struct {
		name string
		file *zip.File
	}
	var entries []entry
	seen := make(map[string]bool)
	var total int64
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := manifest.NormalizePath(f.Name)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, &DuplicateEntryError{Path: name}
		}
		seen[name] = true
		total += int64(f.UncompressedSize64)
		entries = append(entries, entry{name: name, file: f})
	}
	if metrics != nil {
		metrics.SetTotalBytes(total)
	}

	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency > len(entries) && len(entries) > 0 {
		concurrency = len(entries)
	}

	hashes := make(map[string]string, len(entries))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	work := make(chan entry)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range work {
				hex, size, err := hashEntry(e.file)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("hash archive entry %s: %w", e.name, err)
					}
					mu.Unlock()
					continue
				}
				hashes[e.name] = hex
				mu.Unlock()
				if metrics != nil {
					metrics.AddFile(size)
				}
			}
		}()
	}
	for _, e := range entries {
		work <- e
	}
	close(work)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return hashes, nil
}

func hashEntry(f *zip.File) (string, int64, error) {
	rc, err := f.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()
	return common.Sha256OfReader(rc)
}
