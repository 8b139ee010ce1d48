// Package prompt builds the text sent to the completion API from a topic
// label and the user's utterance.
package prompt

import (
	"fmt"
	"strings"

	"github.com/edgard/happybot/internal/topic"
)

// Placeholder is replaced with the user's utterance.
const Placeholder = "{query}"

// DefaultTemplate is shared by every topic unless configuration overrides it.
const DefaultTemplate = "You are a friendly assistant helping seniors with daily life tasks. " +
	"Last time, we discussed similar tasks. Keep your responses clear and connected.\n\n" +
	"Query: {query}\nResponse:"

// Builder holds one validated template per topic label.
type Builder struct {
	templates map[topic.Label]string
}

// DefaultTemplates returns the template set used when nothing is configured.
func DefaultTemplates() map[topic.Label]string {
	out := make(map[topic.Label]string, len(topic.Labels()))
	for _, l := range topic.Labels() {
		out[l] = DefaultTemplate
	}
	return out
}

// NewBuilder validates templates and returns a Builder. overrides is keyed by
// label name (as it comes from configuration) and may be nil; labels without
// an override use DefaultTemplate. Unknown label names and templates without
// exactly one placeholder are rejected.
func NewBuilder(overrides map[string]string) (*Builder, error) {
	templates := DefaultTemplates()

	for name, tmpl := range overrides {
		label, ok := topic.ParseLabel(name)
		if !ok {
			return nil, fmt.Errorf("prompt template configured for unknown topic %q", name)
		}
		templates[label] = tmpl
	}

	for _, l := range topic.Labels() {
		tmpl, ok := templates[l]
		if !ok {
			return nil, fmt.Errorf("missing prompt template for topic %q", l)
		}
		if n := strings.Count(tmpl, Placeholder); n != 1 {
			return nil, fmt.Errorf("prompt template for topic %q must contain %s exactly once, found %d", l, Placeholder, n)
		}
	}

	return &Builder{templates: templates}, nil
}

// Build substitutes utterance into the template for label. Unknown labels use
// the general_conversation template.
func (b *Builder) Build(label topic.Label, utterance string) string {
	tmpl, ok := b.templates[label]
	if !ok {
		tmpl = b.templates[topic.Default]
	}
	return strings.Replace(tmpl, Placeholder, utterance, 1)
}
