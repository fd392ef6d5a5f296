package evidence

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText reduces an indexed passage to visible text. Ingested pages are
// often stored with markup; plain strings pass through with whitespace
// collapsed.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return collapseSpace(content)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return collapseSpace(content)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapseSpace(buf.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
