package usecase

import (
	"context"
	"errors"
	"io/fs"

	"github.com/semmidev/keepsake/internal/domain"
)

// Delete removes one artifact. Deleting an absent artifact is a
// NotFoundError, including a repeated delete of the same name.
type Delete struct {
	dir    domain.Directory
	logger Logger
}

func NewDelete(dir domain.Directory, logger Logger) *Delete {
	return &Delete{dir: dir, logger: logger}
}

func (uc *Delete) Perform(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		uc.logger.Errorf("Delete failed: %v", err)
		return err
	}

	if err := uc.dir.Remove(name); err != nil {
		var derr error
		switch {
		case errors.Is(err, fs.ErrNotExist):
			derr = domain.NewNotFoundError(name, nil)
		case domain.KindOf(err) != "":
			derr = err
		default:
			derr = domain.NewError(domain.KindDirectory, name, "failed to delete artifact", err)
		}
		uc.logger.Errorf("Delete failed: %v", derr)
		return derr
	}

	uc.logger.Infof("[%s] Backup deleted", name)
	return nil
}
