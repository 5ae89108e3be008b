// Package validate reconciles a signed manifest against a delivered ZIP
// archive: it re-derives the canonical bytes that were signed, verifies the
// signature, hashes every archive entry and cross-checks the two file maps.
package validate

import (
	"crypto/rsa"
	"sort"
	"strings"

	"example.com/relgate/internal/common"
	"example.com/relgate/internal/crypto"
	"example.com/relgate/internal/manifest"
)

// Options configure a validation run.
type Options struct {
	// Strict makes archive files absent from the manifest a fatal
	// PolicyError. Off by default: extra files are then reported back as a
	// warning, never silently dropped. Existing callers rely on this exact
	// default.
	Strict      bool
	Concurrency int
	Metrics     *common.Metrics
}

// Result is the structured outcome of a validation run. On failure the
// accompanying error identifies the failing check; Missing, Mismatched and
// Extra are populated whenever reconciliation ran.
type Result struct {
	Version     string   `json:"version"`
	Fingerprint string   `json:"fingerprint"`
	Missing     []string `json:"missing,omitempty"`
	Mismatched  []string `json:"mismatched,omitempty"`
	Extra       []string `json:"extra,omitempty"`
	Strict      bool     `json:"strict"`
}

// ExtraWarning reports whether extra files were found but tolerated because
// strict mode was off.
func (r *Result) ExtraWarning() bool {
	return r != nil && len(r.Extra) > 0 && !r.Strict
}

// Payload runs the full validation state machine against a parsed manifest
// and the ZIP archive at zipPath, terminal on the first applicable failure:
// decode signature, verify it over the canonical {version, files} bytes,
// hash the archive, then reconcile the two path-to-digest maps.
func Payload(m *manifest.Manifest, zipPath string, pub *rsa.PublicKey, opts Options) (*Result, error) {
	sig, err := m.DecodeSignature()
	if err != nil {
		return nil, err
	}
	if err := crypto.Verify(m.CanonicalBytes(), sig, pub); err != nil {
		return nil, &SignatureError{Err: err}
	}

	archiveHashes, err := HashArchive(zipPath, opts.Concurrency, opts.Metrics)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]string, len(m.Files))
	for path, digest := range m.Files {
		normalized, err := manifest.NormalizePath(path)
		if err != nil {
			return nil, err
		}
		declared[normalized] = strings.ToLower(digest)
	}

	result := &Result{
		Version:     m.Version,
		Fingerprint: m.Fingerprint(),
		Strict:      opts.Strict,
	}
	for path, want := range declared {
		got, ok := archiveHashes[path]
		if !ok {
			result.Missing = append(result.Missing, path)
			continue
		}
		if got != want {
			result.Mismatched = append(result.Mismatched, path)
		}
	}
	for path := range archiveHashes {
		if _, ok := declared[path]; !ok {
			result.Extra = append(result.Extra, path)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Mismatched)
	sort.Strings(result.Extra)

	if len(result.Missing) > 0 || len(result.Mismatched) > 0 {
		return result, &IntegrityError{Missing: result.Missing, Mismatched: result.Mismatched}
	}
	if opts.Strict && len(result.Extra) > 0 {
		return result, &PolicyError{Extra: result.Extra}
	}
	return result, nil
}

// Files loads the manifest document at manifestPath and validates it against
// the archive at zipPath.
func Files(manifestPath, zipPath string, pub *rsa.PublicKey, opts Options) (*Result, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	return Payload(m, zipPath, pub, opts)
}
