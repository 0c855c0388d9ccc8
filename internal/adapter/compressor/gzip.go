package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

type GzipCompressor struct {
	level int
}

func NewGzip(level int) *GzipCompressor {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.BestCompression
	}
	return &GzipCompressor{level: level}
}

func (g *GzipCompressor) Name() string      { return Gzip }
func (g *GzipCompressor) Extension() string { return ".gz" }

func (g *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	gzipWriter, err := gzip.NewWriterLevel(w, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gzipWriter, nil
}

func (g *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return gzipReader, nil
}
