package compressor

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

type LZ4Compressor struct {
	level lz4.CompressionLevel
}

func NewLZ4(level int) *LZ4Compressor {
	l := lz4.Fast
	if level > 6 {
		l = lz4.Level9
	}
	return &LZ4Compressor{level: l}
}

func (c *LZ4Compressor) Name() string      { return LZ4 }
func (c *LZ4Compressor) Extension() string { return ".lz4" }

func (c *LZ4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	writer := lz4.NewWriter(w)
	if err := writer.Apply(lz4.CompressionLevelOption(c.level), lz4.ChecksumOption(true)); err != nil {
		return nil, fmt.Errorf("failed to configure lz4 writer: %w", err)
	}
	return writer, nil
}

func (c *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
