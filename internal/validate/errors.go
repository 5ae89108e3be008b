package validate

import (
	"fmt"
	"strings"
)

// SignatureError reports a failed cryptographic verification. Wrong key,
// tampered content and malformed signature bytes are deliberately
// indistinguishable.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return "signature verification failed"
}

func (e *SignatureError) Unwrap() error { return e.Err }

// DuplicateEntryError reports two archive entries whose names normalize to
// the same path, leaving the target ambiguous.
type DuplicateEntryError struct {
	Path string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate archive entry %q", e.Path)
}

// IntegrityError reports manifest files that are missing from the archive or
// present with a different digest.
type IntegrityError struct {
	Missing    []string
	Mismatched []string
}

func (e *IntegrityError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing from archive: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, fmt.Sprintf("digest mismatch: %s", strings.Join(e.Mismatched, ", ")))
	}
	return strings.Join(parts, "; ")
}

// PolicyError reports archive files absent from the manifest while strict
// mode is enabled.
type PolicyError struct {
	Extra []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("archive contains files not listed in manifest: %s", strings.Join(e.Extra, ", "))
}
