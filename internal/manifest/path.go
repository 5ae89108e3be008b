package manifest

import "strings"

// NormalizePath canonicalizes a manifest or archive-entry relative path:
// backslashes become forward slashes, empty and "." segments are dropped, and
// the survivors are rejoined with "/". Any ".." segment fails with a
// PathSecurityError so that equivalent spellings of the same path compare
// equal while no result can escape the payload root.
//
// The same function is applied to manifest-declared paths and archive entry
// names before any comparison between the two.
func NormalizePath(path string) (string, error) {
	posix := strings.ReplaceAll(path, "\\", "/")
	var parts []string
	for _, part := range strings.Split(posix, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", &PathSecurityError{Path: path}
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "/"), nil
}
