// Package topic classifies user utterances into conversational topics.
package topic

import "strings"

// Label identifies a conversational topic. It is persisted as a plain string
// in the session store.
type Label string

// Known topic labels.
const (
	DailyLife           Label = "daily_life"
	HealthWellness      Label = "health_wellness"
	EmotionalSupport    Label = "emotional_support"
	TechnologyHelp      Label = "technology_help"
	LocalCulture        Label = "local_culture"
	GeneralConversation Label = "general_conversation"
)

// Default is returned whenever nothing more specific is known.
const Default = GeneralConversation

// Rule maps a label to the keywords that trigger it.
type Rule struct {
	Label    Label
	Keywords []string
}

// rules are evaluated in order and the first match wins, so an utterance
// mentioning both cooking and a headache is daily_life.
var rules = []Rule{
	{Label: DailyLife, Keywords: []string{"cook", "medicine", "shopping", "weather"}},
	{Label: HealthWellness, Keywords: []string{"exercise", "headache", "sleep", "health", "pain"}},
	{Label: EmotionalSupport, Keywords: []string{"lonely", "sad", "friends", "family", "bored"}},
	{Label: TechnologyHelp, Keywords: []string{"phone", "video call", "alarm", "scam", "slow"}},
	{Label: LocalCulture, Keywords: []string{"events", "places", "history", "tv show", "drama"}},
}

// Classify returns the label of the first rule with a keyword occurring in
// the lower-cased utterance, or GeneralConversation if none does.
func Classify(utterance string) Label {
	lower := strings.ToLower(utterance)
	for _, r := range rules {
		if ContainsAny(lower, r.Keywords) {
			return r.Label
		}
	}
	return GeneralConversation
}

// Rules returns a copy of the classification rules in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Labels lists every label, the default last.
func Labels() []Label {
	out := make([]Label, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.Label)
	}
	return append(out, GeneralConversation)
}

// ParseLabel validates a stored or configured label string.
func ParseLabel(s string) (Label, bool) {
	for _, l := range Labels() {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// ContainsAny reports whether any keyword is a substring of text. The caller
// is responsible for case folding.
func ContainsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
