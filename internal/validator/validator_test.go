package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/hoa-backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func bindBody(t *testing.T, body string) map[string]string {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req model.ReplaceQuestionsRequest
	return Bind(c, &req)
}

func TestBindQuestions(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name: "valid mixed kinds",
			body: `{"questions":[
				{"kind":"single-choice","prompt":"p","options":["a","b"],"correct_single":"a"},
				{"kind":"multi-choice","prompt":"p","options":["a","b","c"],"correct_set":["a","c"]},
				{"kind":"numeric","prompt":"p","correct_single":"6"}
			]}`,
		},
		{
			name:      "unknown kind",
			body:      `{"questions":[{"kind":"essay","prompt":"p","correct_single":"x"}]}`,
			wantField: "questions[0].kind",
		},
		{
			name:      "single choice key not in options",
			body:      `{"questions":[{"kind":"single-choice","prompt":"p","options":["a","b"],"correct_single":"c"}]}`,
			wantField: "questions[0].correct_single",
		},
		{
			name:      "choice needs two options",
			body:      `{"questions":[{"kind":"single-choice","prompt":"p","options":["a"],"correct_single":"a"}]}`,
			wantField: "questions[0].options",
		},
		{
			name:      "multi choice without key",
			body:      `{"questions":[{"kind":"multi-choice","prompt":"p","options":["a","b"]}]}`,
			wantField: "questions[0].correct_set",
		},
		{
			name:      "text kind without key",
			body:      `{"questions":[{"kind":"short-text","prompt":"p","correct_single":"  "}]}`,
			wantField: "questions[0].correct_single",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := bindBody(t, tc.body)
			if tc.wantField == "" {
				if fields != nil {
					t.Fatalf("unexpected errors: %v", fields)
				}
				return
			}
			if _, ok := fields[tc.wantField]; !ok {
				t.Fatalf("expected error on %s, got %v", tc.wantField, fields)
			}
		})
	}
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := bindBody(t, `{"questions":`)
	if _, ok := fields["detail"]; !ok {
		t.Fatalf("expected detail, got %v", fields)
	}
}

func TestStruct(t *testing.T) {
	fields := Struct(model.CreateExamRequest{Chapter: "Chapter 3", DurationMinutes: 15})
	if _, ok := fields["title"]; !ok {
		t.Fatalf("missing title not reported: %v", fields)
	}

	ok := model.CreateExamRequest{Title: "Periodic Table", Chapter: "Chapter 4", DurationMinutes: 20}
	if fields := Struct(ok); fields != nil {
		t.Fatalf("valid request rejected: %v", fields)
	}
}
