// Package htmltext derives plain text from an HTML email body and
// extracts unsubscribe links, using golang.org/x/net/html's tokenizer
// rather than regex-only scanning so nested/attribute-quoted markup is
// handled correctly.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// skipTags never contribute their contents to the stripped text.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// blockTags force a line break before/after, so stripped output isn't
// one giant run-on line.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Strip converts an HTML document or fragment to plain text: tag
// markup is removed, block-level elements introduce line breaks, and
// consecutive blank lines collapse to one.
func Strip(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return fallbackStrip(htmlBody)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return collapseBlankLines(b.String())
}

var multiBlankRe = regexp.MustCompile(`\n{3,}`)
var trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)

func collapseBlankLines(s string) string {
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var tagRe = regexp.MustCompile(`(?s)<[^>]*>`)

// fallbackStrip is used only when the input is too malformed for
// html.Parse to recover a tree from (practically never, since the
// tokenizer is very permissive).
func fallbackStrip(s string) string {
	return collapseBlankLines(tagRe.ReplaceAllString(s, "\n"))
}

// unsubscribeHrefRe matches href values that plausibly point at an
// unsubscribe/opt-out/preferences page.
var unsubscribeHrefRe = regexp.MustCompile(`(?i)unsubscribe|opt-out|email-preferences|manage-preferences`)

// plainURLUnsubscribeRe is the fallback plain-URL scan for messages
// whose unsubscribe link isn't inside an anchor tag at all.
var plainURLUnsubscribeRe = regexp.MustCompile(`(?i)https?://[^\s"'<>]*(unsubscribe|opt-out|preferences)[^\s"'<>]*`)

// ExtractUnsubscribeLink walks the anchor elements of an HTML body
// looking for an unsubscribe/opt-out/preferences href (only http(s)
// URLs are accepted — javascript: and mailto: are rejected), and falls
// back to a plain-URL scan of the raw text when no matching anchor is
// found.
func ExtractUnsubscribeLink(htmlBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err == nil {
		if href, ok := findUnsubscribeAnchor(doc); ok {
			return href, true
		}
	}

	if m := plainURLUnsubscribeRe.FindString(htmlBody); m != "" {
		return m, true
	}
	return "", false
}

func findUnsubscribeAnchor(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "a" {
		var href string
		for _, attr := range n.Attr {
			if strings.EqualFold(attr.Key, "href") {
				href = attr.Val
			}
		}
		if isAcceptableUnsubscribeHref(href) {
			return href, true
		}
		if unsubscribeHrefRe.MatchString(anchorText(n)) && isHTTPURL(href) {
			return href, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := findUnsubscribeAnchor(c); ok {
			return href, ok
		}
	}
	return "", false
}

func isAcceptableUnsubscribeHref(href string) bool {
	return isHTTPURL(href) && unsubscribeHrefRe.MatchString(href)
}

func isHTTPURL(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func anchorText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
