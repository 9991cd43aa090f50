// Package handover parses the persona-transfer signal embedded in nurse
// replies. The wire format is dictated by the text-only completion boundary:
// exactly "HANDOVER:" followed by a lowercase alphanumeric topic token and
// nothing else. All prefix checking lives here so the router never does ad hoc
// string matching.
package handover

import (
	"regexp"
	"strings"
)

const Prefix = "HANDOVER:"

type Kind int

const (
	// KindContinue means the reply is free-text dialogue for the caller.
	KindContinue Kind = iota
	// KindHandover means the reply is a transfer signal carrying a topic.
	KindHandover
)

// Outcome is the parse result: Continue(text) or Handover(topic).
type Outcome struct {
	Kind  Kind
	Topic string // set for KindHandover
	Text  string // set for KindContinue, the trimmed reply
	// Malformed marks a reply that starts with the prefix but whose
	// remainder is not a clean topic token. The router logs these and treats
	// the raw reply as dialogue; it never transitions on them.
	Malformed bool
}

var topicPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Parse classifies a completion reply. The prefix match is case-insensitive
// and must start the trimmed reply; the topic is lowercased and
// whitespace-trimmed before validation.
func Parse(reply string) Outcome {
	trimmed := strings.TrimSpace(reply)

	if !strings.HasPrefix(strings.ToUpper(trimmed), Prefix) {
		return Outcome{Kind: KindContinue, Text: trimmed}
	}

	topic := strings.ToLower(strings.TrimSpace(trimmed[len(Prefix):]))
	if !topicPattern.MatchString(topic) {
		return Outcome{Kind: KindContinue, Text: trimmed, Malformed: true}
	}

	return Outcome{Kind: KindHandover, Topic: topic}
}
