// Package sanitize turns model output into plain text suitable for speech.
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
	blockTags  = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?li>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// Policy strips markdown and HTML markup.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewPlainTextPolicy creates a Policy that keeps only the text content.
func NewPlainTextPolicy() *Policy {
	return &Policy{
		policy:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(),
	}
}

// PlainText renders text as markdown and returns its text content, with
// block elements turned into line breaks. If rendering fails the input is
// returned unchanged.
func (p *Policy) PlainText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	out := blockTags.ReplaceAllString(buf.String(), "\n")
	out = p.policy.Sanitize(out)
	out = blankLines.ReplaceAllString(out, "\n\n")
	out = html.UnescapeString(out)

	return strings.TrimSpace(out)
}
