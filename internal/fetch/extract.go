package fetch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// boilerplate lists elements whose subtrees carry no readable content.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Form:     true,
}

// blockLevel elements get a newline boundary so extracted text keeps
// paragraph structure.
var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Li: true, atom.Tr: true,
	atom.Br: true, atom.Blockquote: true, atom.Pre: true,
}

// extractHTML parses raw HTML and returns the document title and its
// readable text. A parse failure falls back to the raw input with tags
// crudely collapsed by the whitespace cleanup.
func extractHTML(raw string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", collapseWhitespace(raw)
	}

	var b strings.Builder
	var walk func(n *html.Node, skipping bool)
	walk = func(n *html.Node, skipping bool) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Title && title == "" {
				title = textContent(n)
				return
			}
			if boilerplate[n.DataAtom] {
				skipping = true
			}
			if blockLevel[n.DataAtom] {
				b.WriteByte('\n')
			}
		case html.TextNode:
			if !skipping {
				b.WriteString(n.Data)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skipping)
		}
	}
	walk(doc, false)

	return strings.TrimSpace(title), collapseWhitespace(b.String())
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// collapseWhitespace squeezes runs of spaces and keeps at most one
// blank line between paragraphs.
func collapseWhitespace(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
