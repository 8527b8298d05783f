package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stemsi/hoa-backend/internal/model"
)

func text(s string) model.AnswerValue { return model.AnswerValue{Text: &s} }

func TestWriteAttemptCSV(t *testing.T) {
	review := model.Review{
		Title: "SSC Chemistry Quiz",
		Items: []model.ReviewItem{
			{
				Prompt:    `He said "go"`,
				Kind:      model.QuestionKindShortText,
				Selected:  text("go"),
				Correct:   text("go"),
				IsCorrect: true,
			},
			{
				Prompt:   "Select all mixtures.",
				Kind:     model.QuestionKindMultiChoice,
				Selected: model.AnswerValue{Choices: []string{"Air"}},
				Correct:  model.AnswerValue{Choices: []string{"Air", "Salt solution"}},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteAttemptCSV(&buf, review); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		`"Question","Type","Selected","Correct","IsCorrect"`,
		`"He said ""go""","short-text","go","go","TRUE"`,
		`"Select all mixtures.","multi-choice","Air","Air; Salt solution","FALSE"`,
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("csv mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestWriteAttemptCSVNoQuestions(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAttemptCSV(&buf, model.Review{}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != `"Question","Type","Selected","Correct","IsCorrect"` {
		t.Errorf("got %q", got)
	}
}

func TestFilenames(t *testing.T) {
	if got := AttemptCSVFilename("SSC Chemistry  Chapter 3"); got != "SSC_Chemistry_Chapter_3_result.csv" {
		t.Errorf("got %q", got)
	}
	if got := ResultSheetFilename("Organic Basics", "xlsx"); got != "Organic_Basics_results.xlsx" {
		t.Errorf("got %q", got)
	}
	if got := AttemptCSVFilename("   "); got != "exam_result.csv" {
		t.Errorf("got %q", got)
	}
}

func sampleRows() []model.ExamResultRow {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(22*time.Minute + 10*time.Second)
	return []model.ExamResultRow{
		{StudentName: "Nusrat", Correct: 8, Total: 10, StartedAt: start, SubmittedAt: &end, SubmitReason: model.SubmitReasonManual},
		{StudentName: "Farhan, Jr.", Correct: 6, Total: 10, StartedAt: start, SubmitReason: model.SubmitReasonIntegrity, IntegrityFlag: true},
	}
}

func TestWriteResultSheetCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResultSheetCSV(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	want := "Student,Score,TimeSpent (min)\nNusrat,8,22\n\"Farhan, Jr.\",6,-\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestWriteResultSheetXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResultSheetXLSX(&buf, "Organic Basics", sampleRows()); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(resultSheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Organic Basics" || rows[2][0] != "Student" {
		t.Fatalf("unexpected header rows: %v", rows[:3])
	}
	if got := rows[4]; got[0] != "Farhan, Jr." || got[3] != "-" || got[5] != "TRUE" {
		t.Fatalf("unexpected data row: %v", got)
	}
}
