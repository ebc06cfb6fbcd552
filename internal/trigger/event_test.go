package trigger

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		payload string
		kind    Kind
		command CommandKind
		intent  string
	}{
		{
			name:    "begin",
			stream:  StreamWakeWord,
			payload: `{"wake_word_begin":{}}`,
			kind:    CueBegin,
		},
		{
			name:    "end with question",
			stream:  StreamWakeWord,
			payload: `{"wake_word_end":{"intent_heard":true,"intent_json":"{\"intent\":\"intent_knowledge_question\",\"params\":{}}"}}`,
			kind:    CueEndWithCommand,
			command: CommandQuestion,
			intent:  "intent_knowledge_question",
		},
		{
			name:    "end with action",
			stream:  StreamWakeWord,
			payload: `{"wake_word_end":{"intent_heard":true,"intent_json":"{\"intent\":\"intent_imperative_dance\"}"}}`,
			kind:    CueEndWithCommand,
			command: CommandAction,
			intent:  "intent_imperative_dance",
		},
		{
			name:    "end with unreadable intent",
			stream:  StreamWakeWord,
			payload: `{"wake_word_end":{"intent_heard":true,"intent_json":"not json"}}`,
			kind:    CueEndWithCommand,
			command: CommandAction,
		},
		{
			name:    "unreadable intent naming a question",
			stream:  StreamWakeWord,
			payload: `{"wake_word_end":{"intent_heard":true,"intent_json":"intent_knowledge_question {truncated"}}`,
			kind:    CueEndWithCommand,
			command: CommandQuestion,
		},
		{
			name:    "end without command",
			stream:  StreamWakeWord,
			payload: `{"wake_word_end":{"intent_heard":false}}`,
			kind:    CueEndWithoutCommand,
		},
		{
			name:    "empty wake word",
			stream:  StreamWakeWord,
			payload: `{}`,
			kind:    Other,
		},
		{
			name:    "other stream",
			stream:  "robot_state",
			payload: `{"wake_word_begin":{}}`,
			kind:    Other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.stream, []byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", ev.Kind, tt.kind)
			}
			if ev.Command != tt.command {
				t.Errorf("Command = %v, want %v", ev.Command, tt.command)
			}
			if ev.Intent != tt.intent {
				t.Errorf("Intent = %q, want %q", ev.Intent, tt.intent)
			}
		})
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	ev, err := Decode(StreamWakeWord, []byte(`{"wake_word_begin":`))
	if err == nil {
		t.Fatal("expected error")
	}
	if ev.Kind != Other {
		t.Errorf("Kind = %v, want Other", ev.Kind)
	}
}

func TestKindString(t *testing.T) {
	if CueEndWithCommand.String() != "cue_end_command" || Other.String() != "other" {
		t.Error("unexpected kind names")
	}
	if CommandQuestion.String() != "question" || CommandAction.String() != "action" {
		t.Error("unexpected command names")
	}
}
