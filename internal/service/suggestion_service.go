package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// MaxBacklogCandidates caps backlog suggestions to keep the wizard usable.
const MaxBacklogCandidates = 20

// CandidateSource supplies external items (mail, issues, pages) as candidates.
// Retrieval belongs to the integration; results are normalized before use.
type CandidateSource interface {
	Name() model.CandidateSource
	Candidates(ctx context.Context, userID uint, date time.Time) ([]model.PlanningCandidate, error)
}

// SuggestionService gathers planning candidates for a date.
type SuggestionService struct {
	tasks   *repository.TaskRepository
	sources []CandidateSource
	logger  *zap.Logger
}

func NewSuggestionService(tasks *repository.TaskRepository, logger *zap.Logger, sources ...CandidateSource) *SuggestionService {
	return &SuggestionService{tasks: tasks, sources: sources, logger: logger}
}

// Suggest returns neglected backlog tasks followed by external candidates.
// A failing external source is logged and skipped.
func (s *SuggestionService) Suggest(ctx context.Context, userID uint, date time.Time) ([]model.PlanningCandidate, error) {
	tasks, err := s.tasks.ListBacklogCandidates(ctx, userID, date, MaxBacklogCandidates)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.PlanningCandidate, 0, len(tasks))
	for _, task := range tasks {
		candidates = append(candidates, CandidateFromTask(task))
	}

	for _, src := range s.sources {
		external, err := src.Candidates(ctx, userID, date)
		if err != nil {
			s.logger.Warn("candidate source failed",
				zap.String("source", string(src.Name())),
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		for _, c := range external {
			c.Source = src.Name()
			candidates = append(candidates, c.Normalize())
		}
	}
	return candidates, nil
}

// CandidateFromTask converts a backlog task into a candidate with planning defaults.
func CandidateFromTask(task model.Task) model.PlanningCandidate {
	id := task.ID
	estimate := model.DefaultCandidateEstimate
	if task.EstimateMinutes != nil && *task.EstimateMinutes > 0 {
		estimate = *task.EstimateMinutes
	}
	return model.PlanningCandidate{
		Source:          model.SourceBacklog,
		SourceID:        strconv.FormatUint(uint64(task.ID), 10),
		TaskID:          &id,
		Title:           task.Title,
		Description:     task.Description,
		EstimateMinutes: estimate,
		Priority:        model.CandidatePriorityOf(task.Priority),
	}
}
