package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/semmidev/keepsake/internal/domain"
)

const (
	dirMode  = 0755
	fileMode = 0644
)

// EnsureDirectory creates path and its parents when missing. Calling it on an
// existing directory does nothing.
func EnsureDirectory(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return domain.NewDirectoryError(path, fmt.Errorf("%s is not a directory", path))
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return domain.NewDirectoryError(path, err)
	}
	if err := os.MkdirAll(path, dirMode); err != nil {
		return domain.NewDirectoryError(path, err)
	}
	return nil
}

// LocalStorage is a flat directory of artifacts.
type LocalStorage struct {
	basePath string
}

var _ domain.Directory = (*LocalStorage)(nil)

// NewLocal does not touch the filesystem; the directory is created lazily by
// the first operation.
func NewLocal(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (l *LocalStorage) Ensure() error {
	return EnsureDirectory(l.basePath)
}

func (l *LocalStorage) Root() string {
	return l.basePath
}

func (l *LocalStorage) Path(name string) string {
	return filepath.Join(l.basePath, name)
}

func (l *LocalStorage) Exists(name string) (bool, error) {
	_, err := l.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *LocalStorage) Stat(name string) (os.FileInfo, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}
	return os.Stat(l.Path(name))
}

// Create opens name for writing and fails with fs.ErrExist if it is taken.
func (l *LocalStorage) Create(name string) (*os.File, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}
	return os.OpenFile(l.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
}

func (l *LocalStorage) Open(name string) (*os.File, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}
	return os.Open(l.Path(name))
}

func (l *LocalStorage) Rename(oldName, newName string) error {
	if err := l.Ensure(); err != nil {
		return err
	}
	return os.Rename(l.Path(oldName), l.Path(newName))
}

func (l *LocalStorage) Remove(name string) error {
	if err := l.Ensure(); err != nil {
		return err
	}
	return os.Remove(l.Path(name))
}

// List returns the regular entries of the directory in lexical order.
func (l *LocalStorage) List() ([]string, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}
