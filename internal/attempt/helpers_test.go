package attempt

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/hoa-backend/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func chemistryExam() *model.Exam {
	return &model.Exam{
		ID:              uuid.MustParse("7d0c8f3e-4f4a-4d0e-9a51-2f0c3c1b9e01"),
		Title:           "SSC Chemistry – Chapter 3 Quiz",
		DurationSeconds: 15 * 60,
		Questions: []model.Question{
			{
				Kind:          model.QuestionKindSingleChoice,
				Prompt:        "Which particle carries a negative charge?",
				Options:       []string{"Proton", "Neutron", "Electron", "Nucleus"},
				CorrectSingle: "Electron",
			},
			{
				Kind:       model.QuestionKindMultiChoice,
				Prompt:     "Select all mixtures.",
				Options:    []string{"Air", "Salt solution", "Pure water", "Oxygen"},
				CorrectSet: []string{"Air", "Salt solution"},
			},
		},
	}
}


func seeded() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func newTestSession(exam *model.Exam) (*Session, *ManualClock) {
	clock := NewManualClock(epoch)
	s, err := NewSession(exam, clock, seeded())
	if err != nil {
		panic(err)
	}
	return s, clock
}
