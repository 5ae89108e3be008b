package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// CanonicalBytes produces the byte-exact serialization of the unsigned
// manifest {version, files} that signatures are computed over. The encoding
// is a pure function of the logical value: identical on every call, on every
// platform, regardless of map insertion order.
//
// Pinned encoding rules (any deviation breaks signature portability):
//   - object keys sorted lexicographically by Unicode code point, which for
//     UTF-8 coincides with byte order;
//   - compact separators, no whitespace between tokens, no trailing newline;
//   - strings emitted as UTF-8 with non-ASCII characters literal, never as
//     \uXXXX escapes;
//   - the only escapes are \" \\ \b \f \n \r \t, plus \u00xx (lowercase hex)
//     for remaining control characters below U+0020.
func CanonicalBytes(version string, files map[string]string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"files":{`)
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendCanonicalString(&buf, k)
		buf.WriteByte(':')
		appendCanonicalString(&buf, files[k])
	}
	buf.WriteString(`},"version":`)
	appendCanonicalString(&buf, version)
	buf.WriteByte('}')
	return buf.Bytes()
}

// CanonicalBytes returns the canonical signing input for the manifest's
// {version, files} substructure. The signature field never participates.
func (m *Manifest) CanonicalBytes() []byte {
	return CanonicalBytes(m.Version, m.Files)
}

// Fingerprint is the lowercase hex SHA-256 digest of the canonical bytes,
// used as a compact identifier for a manifest in reports and logs.
func (m *Manifest) Fingerprint() string {
	sum := sha256.Sum256(m.CanonicalBytes())
	return hex.EncodeToString(sum[:])
}

func appendCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, b := range []byte(s) {
		switch b {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte('"')
}
