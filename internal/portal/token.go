package portal

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tokenPosition is the index of the strong element holding the token; the
// first one in the result form is a label.
const tokenPosition = 1

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidToken reports whether token is usable as a file and directory name.
// Anything outside letters, digits, '-' and '_' is rejected.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// ExtractToken returns the token shown in the result form markup, or "" when
// the form carries fewer than two strong elements.
func ExtractToken(formHTML string) string {
	doc, err := html.Parse(strings.NewReader(formHTML))
	if err != nil {
		return ""
	}

	var strongs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Strong {
			strongs = append(strongs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(strongs) <= tokenPosition {
		return ""
	}
	return strings.Join(strings.Fields(textContent(strongs[tokenPosition])), " ")
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
