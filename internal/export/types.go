// Package export renders an activity guide as a printable PDF. Crews print
// guides for the field, where phone coverage is not a given.
package export

import "errors"

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
