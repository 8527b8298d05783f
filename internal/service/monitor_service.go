package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
)

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// MonitorRow is one attempt on the live monitor.
type MonitorRow struct {
	repository.AttemptStatus
	Answered     int64 `json:"answered"`
	HiddenEvents int64 `json:"hidden_events"`
}

// MonitorSnapshot is the full state sent when a monitor connects and on
// every refresh.
type MonitorSnapshot struct {
	Attempts    []MonitorRow `json:"attempts"`
	InProgress  int          `json:"in_progress"`
	Submitted   int          `json:"submitted"`
	Flagged     int          `json:"flagged"`
	TotalHidden int64        `json:"total_hidden"`
}

// GetSnapshot builds the monitor table. The attempt list and integrity
// counts are fetched in parallel; answered counts come from the autosave
// hashes of running attempts.
func (s *MonitorService) GetSnapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		attempts     []repository.AttemptStatus
		hiddenCounts map[uuid.UUID]int64
		attemptsErr  error
		hiddenErr    error
		wg           sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		attempts, attemptsErr = s.monitorRepo.ListAttempts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		hiddenCounts, hiddenErr = s.monitorRepo.GetIntegrityCounts(ctx, examID)
	}()
	wg.Wait()

	// The attempt list is critical; integrity counts are best-effort
	if attemptsErr != nil {
		return nil, attemptsErr
	}
	if hiddenErr != nil {
		hiddenCounts = nil
	}

	running := make([]uuid.UUID, 0, len(attempts))
	for _, a := range attempts {
		if a.Phase == string(model.PhaseInProgress) {
			running = append(running, a.AttemptID)
		}
	}
	answered, err := s.monitorRepo.GetAnsweredCounts(ctx, running)
	if err != nil {
		answered = nil
	}

	snap := &MonitorSnapshot{Attempts: make([]MonitorRow, len(attempts))}
	for i, a := range attempts {
		row := MonitorRow{
			AttemptStatus: a,
			Answered:      answered[a.AttemptID],
			HiddenEvents:  hiddenCounts[a.AttemptID],
		}
		snap.Attempts[i] = row
		snap.TotalHidden += row.HiddenEvents
		if a.Phase == string(model.PhaseInProgress) {
			snap.InProgress++
		} else {
			snap.Submitted++
		}
		if a.IntegrityFlag {
			snap.Flagged++
		}
	}
	return snap, nil
}
