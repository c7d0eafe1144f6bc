// Package htmltext flattens HTML mail bodies into single-line plain text.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Content of these elements never reaches the reader.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"title":    true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true,
	"ul": true, "ol": true, "tr": true, "td": true, "th": true,
	"table": true, "blockquote": true, "pre": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ToText returns the visible text of an HTML fragment, with entities decoded,
// block elements separated by a space and all whitespace collapsed.
func ToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))

	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return Collapse(b.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipped[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blocks[tag] {
				b.WriteByte(' ')
			}
			if tag == "img" && hasAttr && skip == 0 {
				b.WriteString(altText(z))
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] && skip > 0 {
				skip--
				continue
			}
			if blocks[tag] {
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func altText(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "alt" {
			return " " + string(val) + " "
		}
		if !more {
			return ""
		}
	}
}

// Collapse turns every whitespace run, line breaks included, into a single
// space and trims the ends. Words on adjacent lines stay separated.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
