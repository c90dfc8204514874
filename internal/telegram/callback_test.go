package telegram

import "testing"

func TestParseAnswerCallback(t *testing.T) {
	cases := []struct {
		data    string
		want    AnswerEvent
		wantErr bool
	}{
		{"answer_1_3", AnswerEvent{Ordinal: 1, Value: 3}, false},
		{"answer_20_5", AnswerEvent{Ordinal: 20, Value: 5}, false},
		{"answer_7_1", AnswerEvent{Ordinal: 7, Value: 1}, false},
		{"answer_1", AnswerEvent{}, true},
		{"answer_1_2_3", AnswerEvent{}, true},
		{"vote_1_3", AnswerEvent{}, true},
		{"answer_x_3", AnswerEvent{}, true},
		{"answer_1_x", AnswerEvent{}, true},
		{"", AnswerEvent{}, true},
	}
	for _, c := range cases {
		got, err := ParseAnswerCallback(c.data)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseAnswerCallback(%q): expected error", c.data)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAnswerCallback(%q): %v", c.data, err)
		}
		if got != c.want {
			t.Fatalf("ParseAnswerCallback(%q) = %+v, want %+v", c.data, got, c.want)
		}
	}
}

func TestAnswerCallbackDataRoundTrip(t *testing.T) {
	for ordinal := 1; ordinal <= 20; ordinal++ {
		for value := 1; value <= 5; value++ {
			got, err := ParseAnswerCallback(answerCallbackData(ordinal, value))
			if err != nil {
				t.Fatalf("round trip %d/%d: %v", ordinal, value, err)
			}
			if got.Ordinal != ordinal || got.Value != value {
				t.Fatalf("round trip %d/%d = %+v", ordinal, value, got)
			}
		}
	}
}
