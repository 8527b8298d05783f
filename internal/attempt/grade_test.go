package attempt

import (
	"testing"

	"github.com/stemsi/hoa-backend/internal/model"
)

func TestIsCorrect(t *testing.T) {
	single := model.Question{Kind: model.QuestionKindSingleChoice, CorrectSingle: "Electron"}
	short := model.Question{Kind: model.QuestionKindShortText, CorrectSingle: "mole"}
	numeric := model.Question{Kind: model.QuestionKindNumeric, CorrectSingle: "6"}
	long := model.Question{Kind: model.QuestionKindLongText, CorrectSingle: "ions move"}
	longNoKey := model.Question{Kind: model.QuestionKindLongText}
	multi := model.Question{Kind: model.QuestionKindMultiChoice, CorrectSet: []string{"Air", "Salt solution"}}
	multiEmpty := model.Question{Kind: model.QuestionKindMultiChoice}

	tests := []struct {
		name string
		q    model.Question
		a    model.Answer
		want bool
	}{
		{"single exact", single, model.TextAnswer("Electron"), true},
		{"single case and space", single, model.TextAnswer("  electron "), true},
		{"single wrong", single, model.TextAnswer("Proton"), false},
		{"single unanswered", single, model.TextAnswer(""), false},
		{"single blank", single, model.TextAnswer("   "), false},
		{"short text", short, model.TextAnswer("MOLE"), true},
		{"numeric as text", numeric, model.TextAnswer("6"), true},
		{"numeric not normalised", numeric, model.TextAnswer("6.0"), false},
		{"long contains key", long, model.TextAnswer("In solution the IONS MOVE freely"), true},
		{"long missing key", long, model.TextAnswer("electrons flow"), false},
		{"long empty key", longNoKey, model.TextAnswer("anything"), false},
		{"multi same order", multi, model.NewChoiceSet("Air", "Salt solution"), true},
		{"multi other order", multi, model.ChoiceSet{"Salt solution", "Air"}, true},
		{"multi subset", multi, model.NewChoiceSet("Air"), false},
		{"multi superset", multi, model.NewChoiceSet("Air", "Salt solution", "Oxygen"), false},
		{"multi case sensitive", multi, model.NewChoiceSet("air", "Salt solution"), false},
		{"multi unanswered", multi, model.ChoiceSet{}, false},
		{"multi vacuous", multiEmpty, model.ChoiceSet{}, true},
		{"shape mismatch text for multi", multi, model.TextAnswer("Air"), false},
		{"shape mismatch set for single", single, model.NewChoiceSet("Electron"), false},
		{"nil answer", single, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCorrect(tc.q, tc.a); got != tc.want {
				t.Errorf("IsCorrect() = %v, want %v", got, tc.want)
			}
		})
	}
}
