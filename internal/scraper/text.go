package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Flatten collapses a page to whitespace-normalized plain text in which text
// nodes are joined by single spaces. It also returns the text split into
// runs: the text of consecutive inline nodes, broken at block elements.
// Joining the runs with single spaces gives the flattened text.
func Flatten(rawHTML string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", nil
	}
	runs := textRuns(doc.Selection)
	return strings.Join(runs, " "), runs
}

// visibleText is the whitespace-collapsed text of a selection
func visibleText(sel *goquery.Selection) string {
	return strings.Join(textSegments(sel), " ")
}

// textSegments returns the non-empty text nodes under sel in document order,
// each whitespace-collapsed. Script and style contents are not text.
func textSegments(sel *goquery.Selection) []string {
	segments := make([]string, 0)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := collapseSpace(n.Data); s != "" {
				segments = append(segments, s)
			}
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	return segments
}

// inlineElements do not break a text run
var inlineElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Bdi: true, atom.Bdo: true,
	atom.Cite: true, atom.Code: true, atom.Data: true, atom.Dfn: true, atom.Em: true,
	atom.Font: true, atom.I: true, atom.Kbd: true, atom.Label: true, atom.Mark: true,
	atom.Q: true, atom.S: true, atom.Samp: true, atom.Small: true, atom.Span: true,
	atom.Strike: true, atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Time: true,
	atom.U: true, atom.Var: true, atom.Wbr: true, atom.Img: true,
}

// textRuns groups the text nodes under sel into runs broken at every
// non-inline element. Script and style contents are not text.
func textRuns(sel *goquery.Selection) []string {
	runs := make([]string, 0)
	current := make([]string, 0)
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, strings.Join(current, " "))
			current = current[:0]
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := collapseSpace(n.Data); s != "" {
				current = append(current, s)
			}
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
			if !inlineElements[n.DataAtom] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	flush()
	return runs
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
