package service

import (
	"testing"
	"time"

	"github.com/stemsi/hoa-backend/internal/model"
)

func history() []model.ResultSummary {
	day := func(d int) time.Time { return epoch.AddDate(0, 0, d) }
	return []model.ResultSummary{
		{Title: "SSC Chemistry – Chapter 3 Quiz", Chapter: "States of Matter", Correct: 4, Total: 5, SubmittedAt: day(1)},
		{Title: "Acids and Bases", Chapter: "Chapter 5", Correct: 1, Total: 5, SubmittedAt: day(3)},
		{Title: "Periodic Table", Chapter: "Chapter 4", Correct: 2, Total: 5, SubmittedAt: day(2)},
		{Title: "Empty", Chapter: "Chapter 0", Correct: 0, Total: 0, SubmittedAt: day(0)},
	}
}

func titles(rs []model.ResultSummary) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Title
	}
	return out
}

func TestGrade(t *testing.T) {
	tests := []struct {
		correct, total int
		percent        int
		outcome        model.Outcome
	}{
		{4, 5, 80, model.OutcomePass},
		{2, 5, 40, model.OutcomePass},
		{1, 3, 33, model.OutcomeFail},
		{0, 0, 0, model.OutcomeFail},
		// 39.5% rounds to 40 for display but is still a fail.
		{79, 200, 40, model.OutcomeFail},
	}
	for _, tt := range tests {
		r := model.ResultSummary{Correct: tt.correct, Total: tt.total}
		Grade(&r, 40)
		if r.Percent != tt.percent || r.Outcome != tt.outcome {
			t.Errorf("%d/%d: got %d%% %s, want %d%% %s", tt.correct, tt.total, r.Percent, r.Outcome, tt.percent, tt.outcome)
		}
	}
}

func TestFilterResults(t *testing.T) {
	tests := []struct {
		name  string
		query model.ResultQuery
		want  []string
	}{
		{"default newest first", model.ResultQuery{}, []string{"Acids and Bases", "Periodic Table", "SSC Chemistry – Chapter 3 Quiz", "Empty"}},
		{"oldest first", model.ResultQuery{Sort: "dateAsc"}, []string{"Empty", "SSC Chemistry – Chapter 3 Quiz", "Periodic Table", "Acids and Bases"}},
		{"best first", model.ResultQuery{Sort: "scoreDesc"}, []string{"SSC Chemistry – Chapter 3 Quiz", "Periodic Table", "Acids and Bases", "Empty"}},
		{"worst first", model.ResultQuery{Sort: "scoreAsc"}, []string{"Empty", "Acids and Bases", "Periodic Table", "SSC Chemistry – Chapter 3 Quiz"}},
		{"passed only", model.ResultQuery{Outcome: model.OutcomePass}, []string{"Periodic Table", "SSC Chemistry – Chapter 3 Quiz"}},
		{"failed only", model.ResultQuery{Outcome: model.OutcomeFail}, []string{"Acids and Bases", "Empty"}},
		{"search title", model.ResultQuery{Q: "chem"}, []string{"SSC Chemistry – Chapter 3 Quiz"}},
		{"search chapter", model.ResultQuery{Q: "  chapter 4 "}, []string{"Periodic Table"}},
		{"no match", model.ResultQuery{Q: "biology"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(FilterResults(history(), tt.query, 40))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResultPage(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPer, at int
	}{
		{0, 0, 1, 20, 0},
		{3, 10, 3, 10, 20},
		{2, 500, 2, 100, 100},
		{-4, -1, 1, 20, 0},
	}
	for _, tt := range tests {
		page, per, offset := resultPage(tt.page, tt.perPage)
		if page != tt.wantPage || per != tt.wantPer || offset != tt.at {
			t.Errorf("resultPage(%d, %d) = %d, %d, %d; want %d, %d, %d",
				tt.page, tt.perPage, page, per, offset, tt.wantPage, tt.wantPer, tt.at)
		}
	}
}
