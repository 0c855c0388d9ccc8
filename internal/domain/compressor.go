package domain

import "io"

// Compressor is a streaming compression filter. Extension is the suffix
// appended to the artifact name, including the leading dot.
type Compressor interface {
	Name() string
	Extension() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}
