package domain

import "os"

// Directory is a flat artifact root. Every method makes sure the root exists
// before touching it.
type Directory interface {
	Ensure() error
	Root() string
	Path(name string) string
	Exists(name string) (bool, error)
	Stat(name string) (os.FileInfo, error)
	Create(name string) (*os.File, error)
	Open(name string) (*os.File, error)
	Rename(oldName, newName string) error
	Remove(name string) error
	List() ([]string, error)
}
