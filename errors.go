package msgenhance

import "errors"

// Sentinel errors for library operations.
var (
	ErrInvalidAssetPath = errors.New("invalid asset path")
	ErrGrammarMissing   = errors.New("grammar not registered")
)
