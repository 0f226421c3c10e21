// Package dom holds the live HTML document that enhanced messages are attached to.
//
// The document is the shared mount point between the synchronous hook (which
// only returns strings) and the work that happens afterwards: resource links
// in <head>, diagram containers filled in by background tasks, copy buttons
// added by an observer. All access goes through a Document, which serializes
// mutations with a mutex so background tasks can run on any goroutine.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNotFound indicates no element carries the requested id.
var ErrNotFound = errors.New("element not found")

// ErrMalformedDocument indicates a parsed document has no <head> or <body>.
var ErrMalformedDocument = errors.New("document has no head or body")

// emptyDocument seeds New with the minimal HTML5 skeleton.
const emptyDocument = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
</head>
<body>
</body>
</html>`

// Observer is called with every subtree attached through AppendHTML or
// SetInnerHTML. It runs while the document lock is held: it may mutate the
// subtree it receives directly but must not call back into the Document.
type Observer func(n *html.Node)

// Document is a concurrency-safe HTML document.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	head      *html.Node
	body      *html.Node
	observers map[int]Observer
	nextObs   int
}

// New creates an empty document with a <head> and a <body>.
func New() *Document {
	doc, err := Parse(strings.NewReader(emptyDocument))
	if err != nil {
		// The skeleton is a constant; failing to parse it is a programmer error.
		panic(fmt.Sprintf("dom: parsing empty document: %v", err))
	}
	return doc
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	d := &Document{root: root, observers: make(map[int]Observer)}
	Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Head:
			if d.head == nil {
				d.head = n
			}
		case atom.Body:
			if d.body == nil {
				d.body = n
			}
		}
		return true
	})
	if d.head == nil || d.body == nil {
		return nil, ErrMalformedDocument
	}
	return d, nil
}

// HasResource reports whether <head> holds a tag whose attr equals url exactly.
func (d *Document) HasResource(tag, attr, url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := d.head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != tag {
			continue
		}
		if v, ok := Attr(c, attr); ok && v == url {
			return true
		}
	}
	return false
}

// AppendToHead appends an empty element to <head>.
func (d *Document) AppendToHead(tag string, attrs ...html.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
		Attr:     attrs,
	})
}

// AppendHTML parses fragment in <body> context and appends it to <body>.
// Observers see each appended top-level node.
func (d *Document) AppendHTML(fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := html.ParseFragment(strings.NewReader(fragment), d.body)
	if err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}
	for _, n := range nodes {
		d.body.AppendChild(n)
	}
	d.notify(nodes)
	return nil
}

// Exists reports whether an element with the given id is attached.
func (d *Document) Exists(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return FindByID(d.root, id) != nil
}

// Remove detaches the element with the given id.
func (d *Document) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := FindByID(d.root, id)
	if n == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	n.Parent.RemoveChild(n)
	return nil
}

// SetInnerHTML replaces the children of the element with the given id.
// Observers see the element itself.
func (d *Document) SetInnerHTML(id, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := FindByID(d.root, id)
	if n == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	d.notify([]*html.Node{n})
	return nil
}

// ReplaceClass swaps class from for class to on the element with the given id.
// If from is absent, to is still added.
func (d *Document) ReplaceClass(id, from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := FindByID(d.root, id)
	if n == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	classes, _ := Attr(n, "class")
	fields := strings.Fields(classes)
	out := fields[:0]
	seen := false
	for _, c := range fields {
		if c == from {
			continue
		}
		if c == to {
			seen = true
		}
		out = append(out, c)
	}
	if !seen && to != "" {
		out = append(out, to)
	}
	SetAttr(n, "class", strings.Join(out, " "))
	return nil
}

// Observe registers fn for element-added events. The returned function
// unregisters it.
func (d *Document) Observe(fn Observer) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

// Update runs fn with exclusive access to the document tree.
func (d *Document) Update(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(d.root)
}

// Render serializes the whole document.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf strings.Builder
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return buf.String(), nil
}

// InnerHTML serializes the children of the element with the given id.
func (d *Document) InnerHTML(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := FindByID(d.root, id)
	if n == nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("rendering element: %w", err)
		}
	}
	return buf.String(), nil
}

// Class returns the class attribute of the element with the given id.
func (d *Document) Class(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := FindByID(d.root, id)
	if n == nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	v, _ := Attr(n, "class")
	return v, nil
}

// notify must be called with d.mu held.
func (d *Document) notify(nodes []*html.Node) {
	for _, fn := range d.observers {
		for _, n := range nodes {
			fn(n)
		}
	}
}
