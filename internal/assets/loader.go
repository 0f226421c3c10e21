package assets

// Loader returns the content of a named asset.
// Missing assets report ErrAssetNotFound and malformed names ErrInvalidAssetName.
type Loader interface {
	Load(name string) ([]byte, error)
}

// Asset names requested by the enhancer.
const (
	KatexStylesheet  = "katex.min.css"
	KatexScript      = "katex.min.js"
	MermaidScript    = "mermaid.min.js"
	PluginStylesheet = "msgenhance.css"
)

const grammarDir = "grammars"

// GrammarName returns the asset name of the grammar for lang.
func GrammarName(lang string) string {
	return grammarDir + "/" + lang + ".xml"
}
