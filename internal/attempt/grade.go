package attempt

import (
	"strings"

	"github.com/stemsi/hoa-backend/internal/model"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect grades a single answer against the question's key.
//
// Text kinds compare trimmed, case-folded strings; numeric answers are
// compared as text too, so "6" and "6.0" differ. Long-text answers only
// need to contain the key. Multi-choice is exact set equality. An answer
// of the wrong shape, or a blank text answer, is never correct.
func IsCorrect(q model.Question, a model.Answer) bool {
	switch q.Kind {
	case model.QuestionKindMultiChoice:
		set, ok := a.(model.ChoiceSet)
		if !ok {
			return false
		}
		return set.Equal(model.ChoiceSet(q.CorrectSet))

	case model.QuestionKindLongText:
		text, ok := a.(model.TextAnswer)
		if !ok {
			return false
		}
		key := normalize(q.CorrectSingle)
		return key != "" && strings.Contains(normalize(string(text)), key)

	case model.QuestionKindSingleChoice, model.QuestionKindShortText, model.QuestionKindNumeric:
		text, ok := a.(model.TextAnswer)
		if !ok {
			return false
		}
		got := normalize(string(text))
		return got != "" && got == normalize(q.CorrectSingle)
	}
	return false
}

// shapeMatches reports whether a has the variant the question kind expects.
func shapeMatches(q model.Question, a model.Answer) bool {
	switch a.(type) {
	case model.ChoiceSet:
		return q.Kind == model.QuestionKindMultiChoice
	case model.TextAnswer:
		return q.Kind != model.QuestionKindMultiChoice
	}
	return false
}
