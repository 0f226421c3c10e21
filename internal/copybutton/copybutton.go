// Package copybutton adds a copy button to every code block in the document.
//
// Buttons are inserted once by an initial scan and afterwards for each
// subtree the document attaches. The button is inert markup: the host page
// binds the click behavior through the data-copy-* labels.
package copybutton

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-msgenhance/internal/dom"
	"github.com/alnah/go-msgenhance/internal/i18n"
)

// Markup written into code blocks.
const (
	ButtonClass = "copy-code-button"
	ReadyAttr   = "data-copy-ready"
)

// Document is the part of *dom.Document the installer uses.
type Document interface {
	Update(fn func(root *html.Node))
	Observe(fn dom.Observer) (cancel func())
}

// Installer annotates pre elements with copy buttons.
type Installer struct {
	doc Document
	tr  i18n.Translator
	log zerolog.Logger

	once   sync.Once
	cancel func()
}

// New creates an Installer. Labels come from tr.
func New(doc Document, tr i18n.Translator, log zerolog.Logger) *Installer {
	return &Installer{doc: doc, tr: tr, log: log}
}

// Init scans the document and subscribes to added elements. Only the
// first call has an effect; it returns the number of buttons added by the
// initial scan.
func (in *Installer) Init() int {
	count := 0
	in.once.Do(func() {
		in.doc.Update(func(root *html.Node) {
			count = in.annotate(root)
		})
		in.cancel = in.doc.Observe(func(n *html.Node) { in.annotate(n) })
		in.log.Debug().Int("buttons", count).Msg("copy buttons initialized")
	})
	return count
}

// Close unsubscribes from the document.
func (in *Installer) Close() {
	in.once.Do(func() {})
	if in.cancel != nil {
		in.cancel()
	}
}

// annotate runs with the document lock held.
func (in *Installer) annotate(root *html.Node) int {
	var added int
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Pre {
			return true
		}
		if _, ok := dom.Attr(n, ReadyAttr); !ok {
			n.AppendChild(in.button())
			dom.SetAttr(n, ReadyAttr, "true")
			added++
		}
		return false
	})
	return added
}

func (in *Installer) button() *html.Node {
	label := in.tr.Translate(i18n.KeyCopyLabel)
	b := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Button,
		Data:     "button",
		Attr: []html.Attribute{
			{Key: "class", Val: ButtonClass},
			{Key: "type", Val: "button"},
			{Key: "data-copy-label", Val: label},
			{Key: "data-copied-label", Val: in.tr.Translate(i18n.KeyCopyDone)},
			{Key: "aria-label", Val: label},
		},
	}
	b.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	return b
}
