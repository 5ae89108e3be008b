// Package manifest implements the signed update manifest: the data model, the
// canonical serialization that signatures are computed over, path
// normalization, and the builder that derives a manifest from a payload
// directory.
package manifest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Manifest binds a release version to a map of normalized relative file paths
// and their lowercase hex SHA-256 digests. Signature carries the base64
// encoded RSA PKCS#1 v1.5 / SHA-256 signature over the canonical encoding of
// {version, files}; it is empty on an unsigned manifest.
type Manifest struct {
	Version   string            `json:"version"`
	Files     map[string]string `json:"files"`
	Signature string            `json:"signature,omitempty"`
}

// rawDocument defers field decoding so that structural problems can be
// reported per field instead of as opaque json errors.
type rawDocument struct {
	Version   *json.RawMessage `json:"version"`
	Files     *json.RawMessage `json:"files"`
	Signature *json.RawMessage `json:"signature"`
}

// Parse decodes a manifest document and validates its structure: version must
// be a non-empty string and files a string-to-string map. The signature field
// is optional at this stage; use DecodeSignature when one is required.
func Parse(data []byte) (*Manifest, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m := &Manifest{}
	if raw.Version == nil {
		return nil, &StructuralError{Field: "version", Reason: "missing"}
	}
	if err := json.Unmarshal(*raw.Version, &m.Version); err != nil {
		return nil, &StructuralError{Field: "version", Reason: "must be a string"}
	}
	if strings.TrimSpace(m.Version) == "" {
		return nil, &StructuralError{Field: "version", Reason: "must not be empty"}
	}
	if raw.Files == nil {
		return nil, &StructuralError{Field: "files", Reason: "missing"}
	}
	if err := json.Unmarshal(*raw.Files, &m.Files); err != nil {
		return nil, &StructuralError{Field: "files", Reason: "must map string paths to string digests"}
	}
	if m.Files == nil {
		m.Files = map[string]string{}
	}
	if raw.Signature != nil {
		if err := json.Unmarshal(*raw.Signature, &m.Signature); err != nil {
			return nil, &StructuralError{Field: "signature", Reason: "must be a string"}
		}
	}
	return m, nil
}

// Load reads and parses a manifest document from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// DecodeSignature returns the raw signature bytes. A missing signature is a
// structural error; a malformed one an encoding error.
func (m *Manifest) DecodeSignature() ([]byte, error) {
	if m.Signature == "" {
		return nil, &StructuralError{Field: "signature", Reason: "missing"}
	}
	sig, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return sig, nil
}

// WithSignature returns a signed copy of the manifest carrying the base64
// encoding of sig. The receiver is not modified.
func (m *Manifest) WithSignature(sig []byte) *Manifest {
	signed := &Manifest{
		Version: m.Version,
		Files:   make(map[string]string, len(m.Files)),
	}
	for k, v := range m.Files {
		signed.Files[k] = v
	}
	signed.Signature = base64.StdEncoding.EncodeToString(sig)
	return signed
}

// Emit serializes the manifest for storage. The output is indented for
// humans; it is never re-signed, only re-derived canonically and compared, so
// readability formatting here is free.
func (m *Manifest) Emit() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Save writes the emitted manifest document to disk.
func Save(m *Manifest, out string) error {
	b, err := m.Emit()
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}
