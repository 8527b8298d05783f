package report

import (
	"bufio"
	"io"
	"strings"

	"github.com/stemsi/hoa-backend/internal/model"
)

var attemptHeader = []string{"Question", "Type", "Selected", "Correct", "IsCorrect"}

// WriteAttemptCSV writes the per-question breakdown of a graded attempt.
// Every field is quoted, rows are separated by "\n" and there is no
// trailing newline.
func WriteAttemptCSV(w io.Writer, review model.Review) error {
	bw := bufio.NewWriter(w)

	writeQuotedRow(bw, attemptHeader)
	for _, item := range review.Items {
		bw.WriteByte('\n')
		writeQuotedRow(bw, []string{
			item.Prompt,
			string(item.Kind),
			displayValue(item.Selected),
			displayValue(item.Correct),
			boolField(item.IsCorrect),
		})
	}
	return bw.Flush()
}

// AttemptCSVFilename builds the download name for a single attempt.
func AttemptCSVFilename(title string) string {
	return slug(title) + "_result.csv"
}

func writeQuotedRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
}

func displayValue(v model.AnswerValue) string {
	if v.Text != nil {
		return *v.Text
	}
	return strings.Join(v.Choices, "; ")
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// slug collapses whitespace runs into underscores.
func slug(title string) string {
	name := strings.Join(strings.Fields(title), "_")
	if name == "" {
		return "exam"
	}
	return name
}
