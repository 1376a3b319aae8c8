package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/config"
	"dailyplan/internal/metrics"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// Selection is one candidate the user chose to commit.
type Selection struct {
	Source          model.CandidateSource   `json:"source"`
	SourceID        string                  `json:"sourceId"`
	TaskID          *uint                   `json:"taskId,omitempty"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	EstimateMinutes int                     `json:"estimateMinutes"`
	Priority        model.CandidatePriority `json:"priority"`
}

// CommitInput is the request to turn selections into a plan for Date.
type CommitInput struct {
	UserID       uint
	Date         time.Time
	Selections   []Selection
	AutoSchedule bool
}

// CommitResult reports what a commit changed.
type CommitResult struct {
	CreatedTasks   int              `json:"createdTasks"`
	UpdatedTasks   int              `json:"updatedTasks"`
	ScheduledTasks int              `json:"scheduledTasks"`
	Plan           *model.DailyPlan `json:"plan"`
	Tasks          []model.Task     `json:"tasks"`
}

// CalendarPusher hands scheduled tasks of a day to the calendar write-back.
type CalendarPusher interface {
	SchedulePush(ctx context.Context, userID uint, date time.Time) error
}

// PlanService commits planning sessions.
type PlanService struct {
	tx             repository.Transactor
	defaultMinutes int
	dayStart       time.Duration
	pusher         CalendarPusher
	logger         *zap.Logger
	now            func() time.Time
}

func NewPlanService(tx repository.Transactor, defaultMinutes int, dayStart time.Duration, logger *zap.Logger) *PlanService {
	if defaultMinutes <= 0 {
		defaultMinutes = DefaultCapacityMinutes
	}
	return &PlanService{
		tx:             tx,
		defaultMinutes: defaultMinutes,
		dayStart:       dayStart,
		logger:         logger,
		now:            time.Now,
	}
}

// SetCalendarPusher enables calendar write-back after auto-scheduled commits.
func (s *PlanService) SetCalendarPusher(p CalendarPusher) {
	s.pusher = p
}

// Commit persists the plan atomically: the daily plan upsert and every task
// create/update either all land or none do.
func (s *PlanService) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	if err := validateCommit(in); err != nil {
		return CommitResult{}, err
	}
	date := model.DateOf(in.Date)

	var result CommitResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		result = CommitResult{}

		settings, err := repos.Users.Settings(ctx, in.UserID)
		if err != nil {
			return err
		}
		capacity := s.defaultMinutes
		if settings != nil && settings.DailyCapacityMinutes > 0 {
			capacity = settings.DailyCapacityMinutes
		}

		planned := 0
		for _, sel := range in.Selections {
			planned += sel.EstimateMinutes
		}
		plan, err := repos.DailyPlans.UpsertPlanned(ctx, in.UserID, date, capacity, planned, s.now().UTC())
		if err != nil {
			return err
		}
		result.Plan = plan

		// Slot position in time order, keyed by selection index.
		slots := make(map[int]Slot)
		positions := make(map[int]int)
		status := model.StatusPlanned
		if in.AutoSchedule {
			status = model.StatusScheduled
			for pos, slot := range s.layout(date, settings, in.Selections) {
				slots[slot.Index] = slot
				positions[slot.Index] = pos
			}
		}

		nextOrder, err := repos.Tasks.NextSortOrder(ctx, in.UserID, &date, status)
		if err != nil {
			return err
		}

		tasks := make([]model.Task, 0, len(in.Selections))
		for i, sel := range in.Selections {
			task, created, err := s.materialize(ctx, repos.Tasks, in.UserID, sel)
			if err != nil {
				return err
			}

			estimate := sel.EstimateMinutes
			plannedDate := date
			task.Status = status
			task.PlannedDate = &plannedDate
			task.EstimateMinutes = &estimate
			task.Priority = priorityOf(sel.Priority).TaskPriority()
			task.SortOrder = nextOrder + i
			if slot, ok := slots[i]; ok {
				start, end := slot.Start.UTC(), slot.End.UTC()
				task.ScheduledStart = &start
				task.ScheduledEnd = &end
				task.SortOrder = nextOrder + positions[i]
				result.ScheduledTasks++
			}

			if created {
				if err := repos.Tasks.Create(ctx, task); err != nil {
					return err
				}
				result.CreatedTasks++
			} else {
				if err := repos.Tasks.Save(ctx, task); err != nil {
					return err
				}
				result.UpdatedTasks++
			}
			tasks = append(tasks, *task)
		}
		result.Tasks = tasks
		return nil
	})
	if err != nil {
		metrics.IncrementPlanCommit("failed")
		return CommitResult{}, err
	}
	if in.AutoSchedule {
		metrics.IncrementPlanCommit("scheduled")
	} else {
		metrics.IncrementPlanCommit("planned")
	}

	s.logger.Info("plan committed",
		zap.Uint("user_id", in.UserID),
		zap.String("date", date.Format(model.DateLayout)),
		zap.Int("created", result.CreatedTasks),
		zap.Int("updated", result.UpdatedTasks),
		zap.Int("scheduled", result.ScheduledTasks),
	)

	if in.AutoSchedule && s.pusher != nil {
		if err := s.pusher.SchedulePush(ctx, in.UserID, date); err != nil {
			s.logger.Warn("calendar push not scheduled",
				zap.Uint("user_id", in.UserID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

func (s *PlanService) materialize(ctx context.Context, tasks *repository.TaskRepository, userID uint, sel Selection) (*model.Task, bool, error) {
	if sel.TaskID != nil {
		task, err := tasks.FindByID(ctx, userID, *sel.TaskID)
		if err != nil {
			return nil, false, err
		}
		if title := strings.TrimSpace(sel.Title); title != "" {
			task.Title = title
		}
		if sel.Description != "" {
			task.Description = sel.Description
		}
		return task, false, nil
	}
	return &model.Task{
		UserID:      userID,
		Title:       strings.TrimSpace(sel.Title),
		Description: sel.Description,
	}, true, nil
}

func (s *PlanService) layout(date time.Time, settings *model.UserSettings, selections []Selection) []Slot {
	offset := s.dayStart
	loc := time.UTC
	if settings != nil {
		if settings.DayStart != "" {
			if d, err := config.ParseClock(settings.DayStart); err == nil {
				offset = d
			}
		}
		if settings.Timezone != "" {
			if l, err := time.LoadLocation(settings.Timezone); err == nil {
				loc = l
			}
		}
	}

	items := make([]SlotItem, len(selections))
	for i, sel := range selections {
		items[i] = SlotItem{Index: i, Priority: priorityOf(sel.Priority), EstimateMinutes: sel.EstimateMinutes}
	}
	return LayoutSlots(DayStartOn(date, offset, loc), items)
}

func priorityOf(p model.CandidatePriority) model.CandidatePriority {
	if p.Valid() {
		return p
	}
	return model.DefaultCandidatePriority
}

func validateCommit(in CommitInput) error {
	const op = "commit plan"
	if in.UserID == 0 {
		return apperr.Unauthenticated(op, "user required")
	}
	if in.Date.IsZero() {
		return apperr.Validation(op, "date is required")
	}
	if len(in.Selections) == 0 {
		return apperr.Validation(op, "at least one selection is required")
	}
	for i, sel := range in.Selections {
		if sel.TaskID == nil && strings.TrimSpace(sel.Title) == "" {
			return apperr.Validation(op, "selection %d: title is required", i)
		}
		if sel.EstimateMinutes < 0 {
			return apperr.Validation(op, "selection %d: estimate must not be negative", i)
		}
		if sel.Priority != "" && !sel.Priority.Valid() {
			return apperr.Validation(op, "selection %d: unknown priority %q", i, sel.Priority)
		}
		if sel.Source != "" && !sel.Source.Valid() {
			return apperr.Validation(op, "selection %d: unknown source %q", i, sel.Source)
		}
	}
	return nil
}
