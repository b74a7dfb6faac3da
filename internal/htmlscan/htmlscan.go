// Package htmlscan lists the resources an HTML document would make a
// renderer load, classified by where they live.
package htmlscan

import (
	"io"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind classifies a resource reference.
type Kind int

const (
	// Inline references need no load: data: URIs, fragments, javascript:, mailto:.
	Inline Kind = iota
	// External references point at the network (http, https, protocol-relative).
	External
	// Local references resolve to the filesystem (file: URLs and paths).
	Local
)

func (k Kind) String() string {
	switch k {
	case External:
		return "external"
	case Local:
		return "local"
	default:
		return "inline"
	}
}

// Reference is one resource location found in a document.
type Reference struct {
	Element string // tag name, or "style" for CSS sources
	Attr    string // attribute name, or "url"/"import" for CSS
	URL     string
	Kind    Kind
}

// loadAttrs maps elements to the attributes whose values trigger a load.
// a[href] is included: link targets become outbound links in the PDF.
var loadAttrs = map[atom.Atom][]string{
	atom.A:      {"href"},
	atom.Link:   {"href"},
	atom.Img:    {"src", "srcset"},
	atom.Script: {"src"},
	atom.Iframe: {"src"},
	atom.Frame:  {"src"},
	atom.Embed:  {"src"},
	atom.Object: {"data"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Source: {"src", "srcset"},
	atom.Track:  {"src"},
	atom.Input:  {"src"},
	atom.Image:  {"href"},
}

var (
	cssURL    = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)
	cssImport = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// Scan parses r and returns every reference in document order.
func Scan(r io.Reader) ([]Reference, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			refs = append(refs, elementRefs(n)...)
			if n.DataAtom == atom.Style {
				refs = append(refs, cssRefs(textContent(n))...)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs, nil
}

// ScanString is Scan over a string.
func ScanString(s string) ([]Reference, error) {
	return Scan(strings.NewReader(s))
}

// Filter returns the references of the given kind.
func Filter(refs []Reference, kind Kind) []Reference {
	var out []Reference
	for _, r := range refs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func elementRefs(n *html.Node) []Reference {
	var refs []Reference
	names := loadAttrs[n.DataAtom]
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == "style" {
			refs = append(refs, cssRefs(attr.Val)...)
			continue
		}
		if !slices.Contains(names, attr.Key) {
			continue
		}
		for _, u := range attrURLs(attr.Key, attr.Val) {
			refs = append(refs, Reference{
				Element: n.Data,
				Attr:    attr.Key,
				URL:     u,
				Kind:    Classify(u),
			})
		}
	}
	return refs
}

// attrURLs splits srcset candidates; other attributes hold a single URL.
func attrURLs(key, val string) []string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	if key != "srcset" {
		return []string{val}
	}
	var urls []string
	for _, candidate := range strings.Split(val, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

func cssRefs(css string) []Reference {
	var refs []Reference
	for _, m := range cssImport.FindAllStringSubmatch(css, -1) {
		refs = append(refs, Reference{Element: "style", Attr: "import", URL: m[1], Kind: Classify(m[1])})
	}
	for _, m := range cssURL.FindAllStringSubmatch(css, -1) {
		refs = append(refs, Reference{Element: "style", Attr: "url", URL: m[1], Kind: Classify(m[1])})
	}
	return refs
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// Classify reports the kind of a single URL or path.
func Classify(u string) Kind {
	u = strings.TrimSpace(u)
	lower := strings.ToLower(u)
	switch {
	case u == "", strings.HasPrefix(u, "#"):
		return Inline
	case strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "ftp://"),
		strings.HasPrefix(u, "//"):
		return External
	case strings.HasPrefix(lower, "file:"):
		return Local
	case strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "about:"):
		return Inline
	}
	// Anything else has no scheme the engine fetches remotely; with no base
	// URL it resolves against the local filesystem.
	return Local
}
