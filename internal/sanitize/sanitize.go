// Package sanitize turns model output written in Markdown into plain text
// that Telegram displays without a parse mode.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockTags  = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?blockquote>|</?[uo]l>`)
	listItem   = regexp.MustCompile(`<li>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// Policy strips Markdown and HTML from text.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewTelegramPolicy creates a Policy for plain-text Telegram messages.
func NewTelegramPolicy() *Policy {
	return &Policy{
		policy:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(),
	}
}

// SanitizeText renders text as Markdown, then drops every tag. Block
// elements become line breaks and list items keep a bullet. When Markdown
// rendering fails the input is returned unchanged.
func (p *Policy) SanitizeText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	out := listItem.ReplaceAllString(buf.String(), "• ")
	out = blockTags.ReplaceAllString(out, "\n")
	out = p.policy.Sanitize(out)
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(html.UnescapeString(out))
}

var defaultPolicy = NewTelegramPolicy()

// PlainText sanitizes text with the shared Telegram policy.
func PlainText(text string) string {
	return defaultPolicy.SanitizeText(text)
}
