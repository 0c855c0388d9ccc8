package source

import (
	"context"
	"fmt"
	"os"
)

// File re-reads a JSON document from disk on every tick.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (s *File) Describe() string {
	return "file:" + s.path
}

func (s *File) Produce(ctx context.Context) (any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return decode(raw)
}
