package crawler

import (
	"io"
	"mime"
	"strings"

	"golang.org/x/net/html"
)

// Extracted holds the raw references found in one page.
//
// Values are kept exactly as written in the markup, in document order and
// with duplicates. Resolution, scoping and dedup happen later, in the
// Spider and the Frontier.
type Extracted struct {
	// Links are the href attributes of <a> elements.
	Links []string

	// Images are the src attributes of <img> elements.
	Images []string
}

// Extract parses HTML content and collects every anchor href and image src.
// Elements whose attribute is missing or empty are skipped.
//
// Design decision: Extract returns raw attribute values and does no
// resolution or filtering:
//  1. values appear in document order, duplicates included
//  2. scope, fragment and admission checks belong to the caller
func Extract(content io.Reader) (*Extracted, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &Extracted{
		Links:  make([]string, 0),
		Images: make([]string, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := getAttr(n, "href"); href != "" {
					result.Links = append(result.Links, href)
				}
			case "img":
				if src := getAttr(n, "src"); src != "" {
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

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

// isHTML reports whether a Content-Type header denotes a parseable page.
// A missing header is treated as HTML, the way browsers sniff it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
