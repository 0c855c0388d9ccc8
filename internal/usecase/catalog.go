package usecase

import (
	"context"
	"strings"

	"github.com/semmidev/keepsake/internal/domain"
)

// Catalog observes the backup directory. It never validates content, so a
// partially written artifact is listed like any other.
type Catalog struct {
	dir    domain.Directory
	codecs CodecResolver
	logger Logger
}

func NewCatalog(dir domain.Directory, codecs CodecResolver, logger Logger) *Catalog {
	return &Catalog{dir: dir, codecs: codecs, logger: logger}
}

// List returns the names containing filter, case-sensitive, in lexical order.
// An empty filter matches everything.
func (uc *Catalog) List(ctx context.Context, filter string) ([]string, error) {
	files, err := uc.dir.List()
	if err != nil {
		err = asKind(err, func(cause error) error {
			return domain.NewError(domain.KindDirectory, uc.dir.Root(), "failed to list backups", cause)
		})
		uc.logger.Errorf("List failed: %v", err)
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, name := range files {
		if strings.Contains(name, filter) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Artifacts is List with file details. Entries that vanish between listing and
// stat are skipped.
func (uc *Catalog) Artifacts(ctx context.Context, filter string) ([]domain.Artifact, error) {
	names, err := uc.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	artifacts := make([]domain.Artifact, 0, len(names))
	for _, name := range names {
		info, err := uc.dir.Stat(name)
		if err != nil {
			continue
		}

		_, compressed := uc.codecs.ForArtifact(name)
		createdAt, err := ArtifactTimestamp(name)
		if err != nil {
			createdAt = info.ModTime()
		}

		artifacts = append(artifacts, domain.Artifact{
			Name:       name,
			Path:       uc.dir.Path(name),
			Size:       info.Size(),
			Compressed: compressed,
			CreatedAt:  createdAt,
		})
	}
	return artifacts, nil
}
