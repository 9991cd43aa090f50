package handover

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		reply         string
		wantKind      Kind
		wantTopic     string
		wantText      string
		wantMalformed bool
	}{
		{
			name:     "plain dialogue",
			reply:    "How long have you been feeling this way?",
			wantKind: KindContinue,
			wantText: "How long have you been feeling this way?",
		},
		{
			name:      "clean signal",
			reply:     "HANDOVER:anxiety",
			wantKind:  KindHandover,
			wantTopic: "anxiety",
		},
		{
			name:      "signal with surrounding whitespace",
			reply:     "  HANDOVER: depression \n",
			wantKind:  KindHandover,
			wantTopic: "depression",
		},
		{
			name:      "lowercase prefix",
			reply:     "handover:stress",
			wantKind:  KindHandover,
			wantTopic: "stress",
		},
		{
			name:      "mixed case topic is lowered",
			reply:     "HANDOVER:Anxiety",
			wantKind:  KindHandover,
			wantTopic: "anxiety",
		},
		{
			name:      "underscore topic",
			reply:     "HANDOVER:panic_attacks",
			wantKind:  KindHandover,
			wantTopic: "panic_attacks",
		},
		{
			name:          "empty topic",
			reply:         "HANDOVER:",
			wantKind:      KindContinue,
			wantText:      "HANDOVER:",
			wantMalformed: true,
		},
		{
			name:          "topic with trailing prose",
			reply:         "HANDOVER:anxiety, I think",
			wantKind:      KindContinue,
			wantText:      "HANDOVER:anxiety, I think",
			wantMalformed: true,
		},
		{
			name:     "prefix mentioned mid-sentence",
			reply:    "I will write HANDOVER:anxiety when I am sure.",
			wantKind: KindContinue,
			wantText: "I will write HANDOVER:anxiety when I am sure.",
		},
		{
			name:     "empty reply",
			reply:    "",
			wantKind: KindContinue,
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.reply)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Topic != tt.wantTopic {
				t.Errorf("Topic = %q, want %q", got.Topic, tt.wantTopic)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Malformed != tt.wantMalformed {
				t.Errorf("Malformed = %v, want %v", got.Malformed, tt.wantMalformed)
			}
		})
	}
}
