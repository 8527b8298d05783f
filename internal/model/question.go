package model

// QuestionKind selects both the answer-input shape and the grading rule.
type QuestionKind string

const (
	QuestionKindSingleChoice QuestionKind = "single-choice"
	QuestionKindMultiChoice  QuestionKind = "multi-choice"
	QuestionKindShortText    QuestionKind = "short-text"
	QuestionKindNumeric      QuestionKind = "numeric"
	QuestionKindLongText     QuestionKind = "long-text"
)

// Valid reports whether k is one of the five supported kinds.
func (k QuestionKind) Valid() bool {
	switch k {
	case QuestionKindSingleChoice, QuestionKindMultiChoice,
		QuestionKindShortText, QuestionKindNumeric, QuestionKindLongText:
		return true
	}
	return false
}

// HasOptions reports whether questions of this kind present a list of options.
func (k QuestionKind) HasOptions() bool {
	return k == QuestionKindSingleChoice || k == QuestionKindMultiChoice
}

// Question is a single exam question including its answer key.
// Questions are never mutated once an attempt has started.
type Question struct {
	Kind          QuestionKind `json:"kind" yaml:"kind"`
	Prompt        string       `json:"prompt" yaml:"prompt"`
	Options       []string     `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectSingle string       `json:"correct_single,omitempty" yaml:"correct_single,omitempty"`
	CorrectSet    []string     `json:"correct_set,omitempty" yaml:"correct_set,omitempty"`
	Explanation   string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	ImageURL      string       `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// EmptyAnswer returns the unanswered value matching the question's kind.
func (q Question) EmptyAnswer() Answer {
	if q.Kind == QuestionKindMultiChoice {
		return ChoiceSet{}
	}
	return TextAnswer("")
}

// CorrectAnswer returns the answer key in the same shape a student would submit.
func (q Question) CorrectAnswer() Answer {
	if q.Kind == QuestionKindMultiChoice {
		return NewChoiceSet(q.CorrectSet...)
	}
	return TextAnswer(q.CorrectSingle)
}

// QuestionRequest is the admin payload describing one question.
// Cross-field rules are enforced by the struct-level validator.
type QuestionRequest struct {
	Kind          QuestionKind `json:"kind" binding:"required,question_kind"`
	Prompt        string       `json:"prompt" binding:"required,min=1,max=2000"`
	Options       []string     `json:"options" binding:"omitempty,max=10,dive,required,max=500"`
	CorrectSingle string       `json:"correct_single" binding:"max=2000"`
	CorrectSet    []string     `json:"correct_set" binding:"omitempty,dive,required,max=500"`
	Explanation   string       `json:"explanation" binding:"max=2000"`
	ImageURL      string       `json:"image_url" binding:"omitempty,url,max=1000"`
}

// ToQuestion converts the request into a Question, dropping fields the kind does not use.
func (r QuestionRequest) ToQuestion() Question {
	q := Question{
		Kind:        r.Kind,
		Prompt:      r.Prompt,
		Explanation: r.Explanation,
		ImageURL:    r.ImageURL,
	}
	if r.Kind.HasOptions() {
		q.Options = append([]string(nil), r.Options...)
	}
	if r.Kind == QuestionKindMultiChoice {
		q.CorrectSet = append([]string(nil), r.CorrectSet...)
	} else {
		q.CorrectSingle = r.CorrectSingle
	}
	return q
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"max=200,dive"`
}
