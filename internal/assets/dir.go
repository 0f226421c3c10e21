package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirLoader serves assets from an operator directory. Reads go through
// os.Root, so neither ".." nor symlinks reach files outside the directory.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a DirLoader for dir, which must be an existing directory.
func NewDirLoader(dir string) (*DirLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	defer root.Close()

	if _, err := root.Stat("."); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	return &DirLoader{dir: abs}, nil
}

// Dir returns the absolute directory served by the loader.
func (d *DirLoader) Dir() string {
	return d.dir
}

// Load reads {dir}/{name}.
func (d *DirLoader) Load(name string) ([]byte, error) {
	if err := ValidateAssetName(name); err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(d.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	defer root.Close()

	data, err := root.ReadFile(filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q in %s", ErrAssetNotFound, name, d.dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	return data, nil
}

var _ Loader = (*DirLoader)(nil)
