package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"example.com/relgate/internal/common"
)

// BuildOptions tune payload hashing. The zero value hashes with one worker
// per CPU and no metrics.
type BuildOptions struct {
	Concurrency int
	Metrics     *common.Metrics
}

// Build walks every regular file under root, hashes its content and records
// it under its normalized relative path. Symlinks and directories are not
// hashed. Hashing runs across a bounded worker pool; digesting independent
// files needs no ordering, and all results are merged before the manifest is
// returned.
func Build(root, version string, opts BuildOptions) (*Manifest, error) {
	if strings.TrimSpace(version) == "" {
		return nil, &StructuralError{Field: "version", Reason: "must not be empty"}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("payload root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("payload root %s is not a directory", root)
	}

	type job struct {
		rel  string
		full string
	}
	var jobs []job
	var total int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		normalized, err := NormalizePath(rel)
		if err != nil {
			return err
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		jobs = append(jobs, job{rel: normalized, full: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk payload: %w", err)
	}
	if opts.Metrics != nil {
		opts.Metrics.SetTotalBytes(total)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency > len(jobs) && len(jobs) > 0 {
		concurrency = len(jobs)
	}

	files := make(map[string]string, len(jobs))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	work := make(chan job)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				hex, size, err := common.Sha256OfFile(j.full)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("hash %s: %w", j.rel, err)
					}
					mu.Unlock()
					continue
				}
				files[j.rel] = hex
				mu.Unlock()
				if opts.Metrics != nil {
					opts.Metrics.AddFile(size)
				}
			}
		}()
	}
	for _, j := range jobs {
		work <- j
	}
	close(work)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	return &Manifest{Version: version, Files: files}, nil
}
