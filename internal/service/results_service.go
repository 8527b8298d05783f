package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/response"
)

// ResultService serves results history for students and result sheets for
// exam authors. Both read what the results worker persisted.
type ResultService struct {
	attemptRepo *repository.AttemptRepository
	examRepo    *repository.ExamRepository
	passPercent float64
}

// NewResultService creates a new ResultService.
func NewResultService(attemptRepo *repository.AttemptRepository, examRepo *repository.ExamRepository, cfg *config.Config) *ResultService {
	return &ResultService{attemptRepo: attemptRepo, examRepo: examRepo, passPercent: cfg.PassPercent}
}

// History returns the student's submitted attempts filtered and sorted by q.
func (s *ResultService) History(ctx context.Context, studentID int, q model.ResultQuery) ([]model.ResultSummary, error) {
	results, err := s.attemptRepo.ListResultsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return FilterResults(results, q, s.passPercent), nil
}

// ratio is the unrounded score in percent.
func ratio(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Grade fills Percent and Outcome. Pass is decided on the unrounded
// percentage; the stored Percent is rounded for display.
func Grade(r *model.ResultSummary, passPercent float64) {
	p := ratio(r.Correct, r.Total)
	r.Percent = int(math.Round(p))
	if p >= passPercent {
		r.Outcome = model.OutcomePass
	} else {
		r.Outcome = model.OutcomeFail
	}
}

// FilterResults grades every row, then applies the text search over title
// and chapter, the outcome filter and the sort order. The default order is
// newest first.
func FilterResults(results []model.ResultSummary, q model.ResultQuery, passPercent float64) []model.ResultSummary {
	needle := strings.ToLower(strings.TrimSpace(q.Q))
	out := make([]model.ResultSummary, 0, len(results))
	for _, r := range results {
		Grade(&r, passPercent)
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Title), needle) &&
			!strings.Contains(strings.ToLower(r.Chapter), needle) {
			continue
		}
		if q.Outcome != "" && r.Outcome != q.Outcome {
			continue
		}
		out = append(out, r)
	}

	newer := func(a, b model.ResultSummary) bool { return a.SubmittedAt.After(b.SubmittedAt) }
	var less func(a, b model.ResultSummary) bool
	switch q.Sort {
	case "dateAsc":
		less = func(a, b model.ResultSummary) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	case "scoreDesc":
		less = func(a, b model.ResultSummary) bool {
			pa, pb := ratio(a.Correct, a.Total), ratio(b.Correct, b.Total)
			if pa != pb {
				return pa > pb
			}
			return newer(a, b)
		}
	case "scoreAsc":
		less = func(a, b model.ResultSummary) bool {
			pa, pb := ratio(a.Correct, a.Total), ratio(b.Correct, b.Total)
			if pa != pb {
				return pa < pb
			}
			return newer(a, b)
		}
	default:
		less = newer
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// resultPage clamps the requested page and returns the row offset.
func resultPage(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, (page - 1) * perPage
}

// ownedExam loads an exam for its author. authorID 0 skips the check.
func (s *ResultService) ownedExam(ctx context.Context, examID uuid.UUID, authorID int) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if authorID != 0 && exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

// ExamResults returns one page of an exam's submitted attempts together
// with statistics over all of them. Both are computed in PostgreSQL.
func (s *ResultService) ExamResults(ctx context.Context, examID uuid.UUID, authorID, page, perPage int) ([]model.ExamResultRow, model.ExamResultStats, *response.Pagination, error) {
	page, perPage, offset := resultPage(page, perPage)

	if _, err := s.ownedExam(ctx, examID, authorID); err != nil {
		return nil, model.ExamResultStats{}, nil, err
	}
	stats, err := s.attemptRepo.ExamResultStats(ctx, examID)
	if err != nil {
		return nil, model.ExamResultStats{}, nil, fmt.Errorf("result stats: %w", err)
	}
	rows, err := s.attemptRepo.ListResultsByExamPaginated(ctx, examID, perPage, offset)
	if err != nil {
		return nil, model.ExamResultStats{}, nil, fmt.Errorf("list results: %w", err)
	}
	return rows, stats, response.NewPagination(page, perPage, stats.Attempts), nil
}

// ExamResultSheet returns the exam and all of its submitted attempts for export.
func (s *ResultService) ExamResultSheet(ctx context.Context, examID uuid.UUID, authorID int) (*model.Exam, []model.ExamResultRow, error) {
	exam, err := s.ownedExam(ctx, examID, authorID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.attemptRepo.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	return exam, rows, nil
}
