package assets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed static
var static embed.FS

// EmbeddedLoader serves the assets compiled into the binary.
type EmbeddedLoader struct {
	fsys fs.FS
}

// NewEmbeddedLoader creates an EmbeddedLoader.
func NewEmbeddedLoader() *EmbeddedLoader {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(fmt.Sprintf("assets: embedded tree: %v", err))
	}
	return &EmbeddedLoader{fsys: sub}
}

// Load reads name from the embedded tree.
func (e *EmbeddedLoader) Load(name string) ([]byte, error) {
	if err := ValidateAssetName(name); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(e.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q (embedded)", ErrAssetNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	return data, nil
}

// Grammars lists the languages with an embedded grammar, sorted.
func (e *EmbeddedLoader) Grammars() []string {
	entries, err := fs.ReadDir(e.fsys, grammarDir)
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if lang, ok := strings.CutSuffix(entry.Name(), ".xml"); ok && !entry.IsDir() {
			langs = append(langs, lang)
		}
	}
	return langs
}

var _ Loader = (*EmbeddedLoader)(nil)
