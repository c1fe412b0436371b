package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// fileLinkPattern matches course file links and captures the file ID,
// e.g. /courses/12/files/345 or /courses/12/files/345/download.
var fileLinkPattern = regexp.MustCompile(`/courses/[0-9]+/files/([0-9]+)`)

// Parser extracts downloadable Canvas references from HTML bodies
// (assignment descriptions, page bodies, discussion messages).
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because Canvas rich content editor output is frequently malformed
// and attributes may be quoted either way.
type Parser struct {
	// canvasURL is the Canvas base URL. Relative references are resolved
	// against it and only references on its host are reported.
	canvasURL *url.URL
}

// ParseResult contains the Canvas references found in an HTML body.
type ParseResult struct {
	// FileIDs are the IDs of course files linked from anchors, in document
	// order without duplicates.
	FileIDs []int64

	// Images are absolute URLs of images served by Canvas itself.
	// Rendered equations are excluded.
	Images []string
}

// Empty reports whether nothing downloadable was found.
func (r *ParseResult) Empty() bool {
	return len(r.FileIDs) == 0 && len(r.Images) == 0
}

// NewParser creates a parser for content hosted on canvasURL.
func NewParser(canvasURL string) (*Parser, error) {
	u, err := url.Parse(canvasURL)
	if err != nil {
		return nil, err
	}
	return &Parser{canvasURL: u}, nil
}

// Parse parses HTML content and extracts file links and Canvas images.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		FileIDs: make([]int64, 0),
		Images:  make([]string, 0),
	}
	seenIDs := make(map[int64]bool)
	seenImages := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if id, ok := p.fileID(getAttr(n, "href")); ok && !seenIDs[id] {
					seenIDs[id] = true
					result.FileIDs = append(result.FileIDs, id)
				}
			case "img":
				if src := p.canvasImage(getAttr(n, "src")); src != "" && !seenImages[src] {
					seenImages[src] = true
					result.Images = append(result.Images, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// fileID returns the file ID of a course file link on the Canvas host.
func (p *Parser) fileID(href string) (int64, bool) {
	u := p.resolveURL(href)
	if u == nil || !p.sameHost(u) {
		return 0, false
	}
	m := fileLinkPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// canvasImage returns the absolute image URL when it is served by Canvas.
// Equation images are rendered on the fly and not worth keeping.
func (p *Parser) canvasImage(src string) string {
	u := p.resolveURL(src)
	if u == nil || !p.sameHost(u) {
		return ""
	}
	s := u.String()
	if strings.Contains(s, "equation_images") {
		return ""
	}
	return s
}

// resolveURL resolves a reference against the Canvas base URL.
func (p *Parser) resolveURL(ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" ||
		strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "#") {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	resolved := p.canvasURL.ResolveReference(u)
	resolved.Fragment = ""
	return resolved
}

func (p *Parser) sameHost(u *url.URL) bool {
	return strings.EqualFold(u.Host, p.canvasURL.Host) &&
		(u.Scheme == "http" || u.Scheme == "https")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
