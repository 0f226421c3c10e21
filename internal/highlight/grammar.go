// Package highlight adds syntax grammars at runtime and highlights code
// blocks in the live document with them.
//
// Grammars are chroma XML lexer definitions. GrammarHost plays the part of
// a script host for the resource loader: "evaluating" a grammar registers
// its lexer, and a grammar is present once one of its aliases resolves.
package highlight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/rs/zerolog"

	"github.com/alnah/go-msgenhance/internal/loader"
)

// ErrInvalidGrammar indicates a grammar definition could not be parsed.
var ErrInvalidGrammar = errors.New("invalid grammar definition")

// GrammarHost registers chroma lexers from XML definitions.
type GrammarHost struct {
	mu       sync.Mutex
	registry *chroma.LexerRegistry
	log      zerolog.Logger
}

// NewGrammarHost creates a GrammarHost with an empty registry. Lookups
// fall back to chroma's built-in lexers.
func NewGrammarHost(log zerolog.Logger) *GrammarHost {
	return &GrammarHost{registry: chroma.NewLexerRegistry(), log: log}
}

var _ loader.ScriptHost = (*GrammarHost)(nil)

// Evaluate parses source as a chroma XML lexer and registers it.
func (h *GrammarHost) Evaluate(ctx context.Context, url string, source []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lexer, err := chroma.NewXMLLexer(singleFile{data: source}, grammarFile)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidGrammar, url, err)
	}
	cfg := lexer.Config()
	if cfg == nil || len(cfg.Aliases) == 0 {
		return fmt.Errorf("%w: %s: no aliases", ErrInvalidGrammar, url)
	}
	// Rules compile lazily; force compilation so broken patterns fail here.
	if _, err := lexer.Tokenise(nil, ""); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidGrammar, url, err)
	}

	h.mu.Lock()
	h.registry.Register(lexer)
	h.mu.Unlock()

	h.log.Debug().Str("grammar", cfg.Name).Strs("aliases", cfg.Aliases).Msg("grammar registered")
	return nil
}

// Has reports whether a runtime-registered lexer answers to name.
func (h *GrammarHost) Has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Get(name) != nil
}

// Lexer returns the lexer for name, preferring runtime-registered grammars.
func (h *GrammarHost) Lexer(name string) (chroma.Lexer, bool) {
	h.mu.Lock()
	l := h.registry.Get(name)
	h.mu.Unlock()

	if l == nil {
		l = lexers.Get(name)
	}
	if l == nil {
		return nil, false
	}
	return chroma.Coalesce(l), true
}

// grammarFile is the only path a singleFile serves.
const grammarFile = "grammar.xml"

// singleFile is an fs.FS holding one grammar definition in memory.
type singleFile struct {
	data []byte
}

func (s singleFile) Open(name string) (fs.File, error) {
	if name != grammarFile {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{Reader: bytes.NewReader(s.data)}, nil
}

// memFile is both the open file and its FileInfo.
type memFile struct {
	*bytes.Reader
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return grammarFile }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
