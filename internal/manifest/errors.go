package manifest

import "fmt"

// StructuralError reports a manifest document that is missing required fields
// or carries values of the wrong type.
type StructuralError struct {
	Field  string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("manifest field %q: %s", e.Field, e.Reason)
}

// EncodingError reports a signature field that is not valid base64.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("signature is not valid base64: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// PathSecurityError reports a relative path containing a ".." traversal
// segment. Traversal attempts are rejected outright, never resolved.
type PathSecurityError struct {
	Path string
}

func (e *PathSecurityError) Error() string {
	return fmt.Sprintf("path %q contains a forbidden \"..\" segment", e.Path)
}
