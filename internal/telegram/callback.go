package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// AnswerEvent is the typed form of an answer button press. Callback data is
// parsed here, at the transport boundary; the survey core never sees the
// string encoding.
type AnswerEvent struct {
	Ordinal int
	Value   int
}

// answerCallbackData encodes an answer button for question ordinal with the
// given value.
func answerCallbackData(ordinal, value int) string {
	return fmt.Sprintf("answer_%d_%d", ordinal, value)
}

// ParseAnswerCallback decodes "answer_<ordinal>_<value>" callback data.
func ParseAnswerCallback(data string) (AnswerEvent, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || parts[0] != "answer" {
		return AnswerEvent{}, fmt.Errorf("unrecognized callback data %q", data)
	}
	ordinal, err := strconv.Atoi(parts[1])
	if err != nil {
		return AnswerEvent{}, fmt.Errorf("invalid ordinal in callback data %q", data)
	}
	value, err := strconv.Atoi(parts[2])
	if err != nil {
		return AnswerEvent{}, fmt.Errorf("invalid value in callback data %q", data)
	}
	return AnswerEvent{Ordinal: ordinal, Value: value}, nil
}
