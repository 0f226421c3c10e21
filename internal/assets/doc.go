// Package assets serves the files the enhancer links or evaluates at runtime:
// the plugin stylesheet, renderer bundles, and chroma grammar definitions.
//
// Assets are looked up by slash-separated name through a Resolver, which
// consults an optional operator directory before the files compiled into the
// binary:
//
//	Resolver
//	    ├── DirLoader       operator directory, confined with os.Root
//	    └── EmbeddedLoader  msgenhance.css, grammars/*.xml
//
// KaTeX and Mermaid bundles are not compiled in. Operators drop them into
// the directory or serve them from a remote asset base.
//
// Expected layout:
//
//	{dir}/
//	├── katex.min.css
//	├── katex.min.js
//	├── mermaid.min.js
//	├── msgenhance.css
//	└── grammars/
//	    └── {lang}.xml
package assets
