package assets

import "errors"

// Resolver tries an operator directory first and falls back to the
// embedded assets when the directory lacks a file.
type Resolver struct {
	dir      *DirLoader // nil without an operator directory
	embedded *EmbeddedLoader
}

// NewResolver creates a Resolver. An empty dir serves embedded assets only.
func NewResolver(dir string) (*Resolver, error) {
	r := &Resolver{embedded: NewEmbeddedLoader()}
	if dir == "" {
		return r, nil
	}
	d, err := NewDirLoader(dir)
	if err != nil {
		return nil, err
	}
	r.dir = d
	return r, nil
}

// Load returns the directory copy of name when present, else the embedded one.
// Only ErrAssetNotFound falls through; read and validation errors do not.
func (r *Resolver) Load(name string) ([]byte, error) {
	if r.dir != nil {
		data, err := r.dir.Load(name)
		if !errors.Is(err, ErrAssetNotFound) {
			return data, err
		}
	}
	return r.embedded.Load(name)
}

// Dir returns the operator directory, or "" when only embedded assets are served.
func (r *Resolver) Dir() string {
	if r.dir == nil {
		return ""
	}
	return r.dir.Dir()
}

// EmbeddedGrammars lists the languages whose grammar ships in the binary.
func (r *Resolver) EmbeddedGrammars() []string {
	return r.embedded.Grammars()
}

var _ Loader = (*Resolver)(nil)
