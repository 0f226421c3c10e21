package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Walk visits n and its descendants depth-first.
// Returning false from fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		// Capture next first: fn may insert siblings after c.
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// FindByID returns the first element under n with the given id, or nil.
func FindByID(n *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode {
			if v, ok := Attr(c, "id"); ok && v == id {
				found = c
				return false
			}
		}
		return true
	})
	return found
}

// Attr returns the value of attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key, adding it if absent.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether the element's class list contains class.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Text concatenates the text nodes under n.
func Text(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
