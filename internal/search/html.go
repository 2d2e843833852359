package search

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags end a paragraph when opened or closed.
var blockTags = map[string]bool{
	"p": true, "li": true, "ul": true, "ol": true, "div": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "tr": true, "blockquote": true,
}

// Paragraphs strips the markup of an HTML fragment and returns its text
// split at block-level elements. Inline elements (strong, em, a, ...) are
// merged into the surrounding text.
func Paragraphs(fragment string) []string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if t := strings.TrimSpace(normalizeWhitespace(cur.String())); t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read.
			flush()
			return out
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				flush()
			}
		}
	}
}

// PlainText returns the text of an HTML fragment with paragraphs joined by
// blank lines.
func PlainText(fragment string) string {
	return strings.Join(Paragraphs(fragment), "\n\n")
}
