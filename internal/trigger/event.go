// Package trigger decodes wake-word events coming from the robot into a
// closed set of kinds the arbitration state machine understands.
package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StreamWakeWord is the event stream carrying wake-word begin/end events.
const StreamWakeWord = "wake_word"

type Kind int

const (
	Other Kind = iota
	CueBegin
	CueEndWithCommand
	CueEndWithoutCommand
)

func (k Kind) String() string {
	switch k {
	case CueBegin:
		return "cue_begin"
	case CueEndWithCommand:
		return "cue_end_command"
	case CueEndWithoutCommand:
		return "cue_end_no_command"
	default:
		return "other"
	}
}

type CommandKind int

const (
	CommandAction CommandKind = iota
	CommandQuestion
)

func (c CommandKind) String() string {
	if c == CommandQuestion {
		return "question"
	}
	return "action"
}

// Event is one decoded trigger. Command and Intent are meaningful only
// for CueEndWithCommand.
type Event struct {
	Kind    Kind
	Command CommandKind
	Intent  string
	At      time.Time
}

var questionIntents = map[string]bool{
	"intent_knowledge_question": true,
	"knowledge_question":        true,
}

type wakeWordPayload struct {
	Begin *struct{} `json:"wake_word_begin"`
	End   *struct {
		IntentHeard bool   `json:"intent_heard"`
		IntentJSON  string `json:"intent_json"`
	} `json:"wake_word_end"`
}

// Decode classifies a raw event from the named stream. Events on any
// stream other than wake_word decode to Other.
func Decode(stream string, payload []byte) (Event, error) {
	ev := Event{Kind: Other}
	if stream != StreamWakeWord {
		return ev, nil
	}

	var p wakeWordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ev, fmt.Errorf("decode wake_word event: %w", err)
	}

	switch {
	case p.Begin != nil:
		ev.Kind = CueBegin
	case p.End != nil && strings.TrimSpace(p.End.IntentJSON) != "":
		ev.Kind = CueEndWithCommand
		name, ok := intentName(p.End.IntentJSON)
		ev.Intent = name
		if questionIntents[name] || (!ok && strings.Contains(p.End.IntentJSON, "knowledge_question")) {
			ev.Command = CommandQuestion
		}
	case p.End != nil:
		ev.Kind = CueEndWithoutCommand
	}
	return ev, nil
}

// intentName extracts the intent identifier from the robot's intent
// document. ok is false when the document is not valid JSON; it still
// counts as a command.
func intentName(doc string) (name string, ok bool) {
	var intent struct {
		Intent string `json:"intent"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal([]byte(doc), &intent); err != nil {
		return "", false
	}
	if intent.Intent != "" {
		return intent.Intent, true
	}
	return intent.Type, true
}
