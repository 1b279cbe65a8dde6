package search

import (
	"strings"

	"golang.org/x/net/html"
)

// looksLikeHTML is a cheap pre-check so plain cells skip the parser.
func looksLikeHTML(s string) bool {
	open := strings.IndexByte(s, '<')
	return open >= 0 && strings.IndexByte(s[open:], '>') > 0
}

// StripHTML extracts the text content of an HTML fragment, the way
// note bodies display in tables. Block-ish boundaries collapse to
// single spaces; parse failures return the input unchanged.
func StripHTML(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), nil)
	if err != nil {
		return s
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br", "p", "div", "li", "tr":
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
