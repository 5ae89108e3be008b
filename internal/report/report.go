// Package report renders validation outcomes as JSON documents, NDJSON
// finding streams and printable PDF reports.
package report

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"example.com/relgate/internal/validate"
)

// Finding describes a single reconciliation discrepancy.
type Finding struct {
	Kind     string `json:"kind"` // missing | mismatched | extra
	Path     string `json:"path"`
	Severity string `json:"severity"` // error | warning
}

// Summary aggregates the outcome of a validation run.
type Summary struct {
	Pass       bool `json:"pass"`
	Missing    int  `json:"missing"`
	Mismatched int  `json:"mismatched"`
	Extra      int  `json:"extra"`
	Strict     bool `json:"strict"`
}

// Report is the full validation report persisted alongside a payload.
type Report struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	Version        string    `json:"version,omitempty"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
	SignatureValid bool      `json:"signatureValid"`
	Error          string    `json:"error,omitempty"`
	Summary        Summary   `json:"summary"`
	Findings       []Finding `json:"findings,omitempty"`
}

// New builds a report from a validation result and its terminal error, if
// any. res may be nil when validation failed before reconciliation.
func New(res *validate.Result, verr error) Report {
	rep := Report{GeneratedAt: time.Now().UTC()}
	if res != nil {
		rep.Version = res.Version
		rep.Fingerprint = res.Fingerprint
		rep.Summary.Missing = len(res.Missing)
		rep.Summary.Mismatched = len(res.Mismatched)
		rep.Summary.Extra = len(res.Extra)
		rep.Summary.Strict = res.Strict

		extraSeverity := "warning"
		if res.Strict {
			extraSeverity = "error"
		}
		for _, p := range res.Missing {
			rep.Findings = append(rep.Findings, Finding{Kind: "missing", Path: p, Severity: "error"})
		}
		for _, p := range res.Mismatched {
			rep.Findings = append(rep.Findings, Finding{Kind: "mismatched", Path: p, Severity: "error"})
		}
		for _, p := range res.Extra {
			rep.Findings = append(rep.Findings, Finding{Kind: "extra", Path: p, Severity: extraSeverity})
		}
	}
	if verr == nil {
		rep.SignatureValid = true
		rep.Summary.Pass = true
		return rep
	}
	rep.Error = verr.Error()
	var sigErr *validate.SignatureError
	var intErr *validate.IntegrityError
	var polErr *validate.PolicyError
	switch {
	case errors.As(verr, &sigErr):
		rep.SignatureValid = false
	case errors.As(verr, &intErr), errors.As(verr, &polErr):
		// Reconciliation only runs after the signature checked out.
		rep.SignatureValid = true
	}
	return rep
}

// SaveJSON writes the report as an indented JSON document.
func SaveJSON(rep Report, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadJSON reads a report document from disk.
func LoadJSON(path string) (Report, error) {
	var rep Report
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
