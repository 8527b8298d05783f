package model

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Answer is a test-taker's response to one question. It is either a
// TextAnswer (single-choice, short-text, numeric, long-text) or a
// ChoiceSet (multi-choice); no other implementations exist.
type Answer interface {
	// Empty reports whether the question counts as unanswered.
	Empty() bool
	// Display renders the answer for reviews and exports.
	Display() string
	isAnswer()
}

// TextAnswer is a free-text or single-option answer.
type TextAnswer string

func (a TextAnswer) Empty() bool     { return a == "" }
func (a TextAnswer) Display() string { return string(a) }
func (TextAnswer) isAnswer()         {}

// ChoiceSet is an order-independent set of selected options.
// Values built with NewChoiceSet are sorted and free of duplicates.
type ChoiceSet []string

// NewChoiceSet builds a normalized set from the given values.
func NewChoiceSet(values ...string) ChoiceSet {
	seen := make(map[string]struct{}, len(values))
	set := make(ChoiceSet, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}
	sort.Strings(set)
	return set
}

func (s ChoiceSet) Empty() bool     { return len(s) == 0 }
func (s ChoiceSet) Display() string { return strings.Join(s, "; ") }
func (ChoiceSet) isAnswer()         {}

// Contains reports whether v is part of the set.
func (s ChoiceSet) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Equal reports set equality, ignoring order and duplicates.
func (s ChoiceSet) Equal(other ChoiceSet) bool {
	a, b := NewChoiceSet(s...), NewChoiceSet(other...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ErrMalformedAnswer is returned when an answer payload carries both or neither shape.
var ErrMalformedAnswer = errors.New("answer must carry exactly one of text or choices")

// AnswerValue is the wire form of an Answer. Exactly one field is set.
type AnswerValue struct {
	Text    *string  `json:"text,omitempty"`
	Choices []string `json:"choices"`
}

// Answer converts the wire form into the tagged variant.
func (v AnswerValue) Answer() (Answer, error) {
	switch {
	case v.Text != nil && v.Choices != nil:
		return nil, ErrMalformedAnswer
	case v.Text != nil:
		return TextAnswer(*v.Text), nil
	case v.Choices != nil:
		return NewChoiceSet(v.Choices...), nil
	default:
		return nil, ErrMalformedAnswer
	}
}

// ValueOf converts an Answer back into its wire form.
func ValueOf(a Answer) AnswerValue {
	switch x := a.(type) {
	case ChoiceSet:
		choices := append([]string{}, x...)
		return AnswerValue{Choices: choices}
	case TextAnswer:
		s := string(x)
		return AnswerValue{Text: &s}
	}
	return AnswerValue{}
}

// MarshalAnswer encodes an answer for Redis and the persistence queues.
func MarshalAnswer(a Answer) ([]byte, error) {
	return json.Marshal(ValueOf(a))
}

// UnmarshalAnswer decodes an answer produced by MarshalAnswer.
func UnmarshalAnswer(data []byte) (Answer, error) {
	var v AnswerValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v.Answer()
}
