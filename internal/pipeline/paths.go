package pipeline

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-msgenhance/internal/dom"
)

// attachmentAttrs lists the attributes that point at files sent along with
// a message.
var attachmentAttrs = map[atom.Atom][]string{
	atom.Img:    {"src"},
	atom.A:      {"href"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Source: {"src"},
}

// RebaseAttachments rewrites the local attachment references of a message
// body so they resolve from the transcript instead of the message file.
// messageDir holds the message file and transcriptDir the written
// transcript. The body is returned unchanged when either is empty or both
// name the same directory.
//
// References with a scheme or host, rooted paths, bare fragments and paths
// that climb out of messageDir are kept as written.
func RebaseAttachments(body, messageDir, transcriptDir string) (string, error) {
	if messageDir == "" || transcriptDir == "" {
		return body, nil
	}
	from, err := filepath.Abs(messageDir)
	if err != nil {
		return "", err
	}
	to, err := filepath.Abs(transcriptDir)
	if err != nil {
		return "", err
	}
	if from == to {
		return body, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(body), &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	})
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, n := range nodes {
		dom.Walk(n, func(el *html.Node) bool {
			if el.Type == html.ElementNode {
				for _, key := range attachmentAttrs[el.DataAtom] {
					rebaseAttr(el, key, from, to)
				}
			}
			return true
		})
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func rebaseAttr(n *html.Node, key, from, to string) {
	ref, ok := dom.Attr(n, key)
	if !ok {
		return
	}
	path, suffix, ok := localAttachment(ref)
	if !ok {
		return
	}
	rel, err := filepath.Rel(to, filepath.Join(from, filepath.FromSlash(path)))
	if err != nil {
		return
	}
	dom.SetAttr(n, key, filepath.ToSlash(rel)+suffix)
}

// localAttachment splits ref into a file path and its query or fragment
// suffix. It reports false unless the path stays inside the message
// directory.
func localAttachment(ref string) (path, suffix string, ok bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", "", false
	}
	path = ref
	if i := strings.IndexAny(ref, "?#"); i != -1 {
		path, suffix = ref[:i], ref[i:]
	}
	if path == "" || strings.HasPrefix(path, "/") {
		return "", "", false
	}
	if !filepath.IsLocal(filepath.FromSlash(path)) {
		return "", "", false
	}
	return path, suffix, true
}
