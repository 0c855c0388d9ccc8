package compressor

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

type ZstdCompressor struct {
	level zstd.EncoderLevel
}

// NewZstd maps a 1-22 style level onto the encoder's four speed presets.
func NewZstd(level int) *ZstdCompressor {
	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}
	return &ZstdCompressor{level: encoderLevel}
}

func (z *ZstdCompressor) Name() string      { return Zstd }
func (z *ZstdCompressor) Extension() string { return ".zst" }

func (z *ZstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(z.level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return encoder, nil
}

func (z *ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return decoder.IOReadCloser(), nil
}
