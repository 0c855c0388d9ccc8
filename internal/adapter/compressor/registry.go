package compressor

import (
	"fmt"
	"strings"

	"github.com/semmidev/keepsake/internal/domain"
)

const (
	Gzip = "gzip"
	Zstd = "zstd"
	LZ4  = "lz4"
)

// Registry resolves codecs by configured name and by artifact suffix.
type Registry struct {
	byName map[string]domain.Compressor
	order  []domain.Compressor
}

func NewRegistry(level int) *Registry {
	r := &Registry{byName: make(map[string]domain.Compressor)}
	for _, c := range []domain.Compressor{NewGzip(level), NewZstd(level), NewLZ4(level)} {
		r.byName[c.Name()] = c
		r.order = append(r.order, c)
	}
	return r
}

func (r *Registry) Get(name string) (domain.Compressor, error) {
	if name == "" {
		name = Gzip
	}
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", name)
	}
	return c, nil
}

// ForArtifact returns the codec whose extension terminates filename.
func (r *Registry) ForArtifact(filename string) (domain.Compressor, bool) {
	for _, c := range r.order {
		if strings.HasSuffix(filename, c.Extension()) {
			return c, true
		}
	}
	return nil, false
}
