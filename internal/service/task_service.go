package service

import (
	"context"
	"strings"
	"time"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title           string
	Description     string
	Priority        model.Priority
	PlannedDate     *time.Time
	DueDate         *time.Time
	EstimateMinutes *int
}

// TaskService wraps task lifecycle operations outside of plan commits.
type TaskService struct {
	taskRepo *repository.TaskRepository
	tx       repository.Transactor
	remover  EventRemover
	now      func() time.Time
}

// EventRemover queues removal of a task's calendar event.
type EventRemover interface {
	ScheduleDelete(ctx context.Context, userID, taskID uint) error
}

func NewTaskService(taskRepo *repository.TaskRepository, tx repository.Transactor) *TaskService {
	return &TaskService{taskRepo: taskRepo, tx: tx, now: time.Now}
}

// CreateTask stores a BACKLOG task, or a PLANNED one when a date is given,
// appended to the end of its lane.
func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("create task", "title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation("create task", "unknown priority %q", priority)
	}

	task := model.Task{
		UserID:          userID,
		Title:           title,
		Description:     input.Description,
		Priority:        priority,
		Status:          model.StatusBacklog,
		DueDate:         input.DueDate,
		EstimateMinutes: input.EstimateMinutes,
	}
	if input.PlannedDate != nil {
		d := model.DateOf(*input.PlannedDate)
		task.PlannedDate = &d
		task.Status = model.StatusPlanned
	}

	order, err := s.taskRepo.NextSortOrder(ctx, userID, task.PlannedDate, task.Status)
	if err != nil {
		return nil, err
	}
	task.SortOrder = order

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, userID, taskID)
}

func (s *TaskService) ListForDate(ctx context.Context, userID uint, date time.Time) ([]model.Task, error) {
	return s.taskRepo.ListByDate(ctx, userID, date)
}

// UpdateStatus moves a task to status. PLANNED and SCHEDULED require a planned date.
func (s *TaskService) UpdateStatus(ctx context.Context, userID, taskID uint, status model.TaskStatus) (*model.Task, error) {
	if !status.Valid() {
		return nil, apperr.Validation("update status", "unknown status %q", status)
	}
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if (status == model.StatusPlanned || status == model.StatusScheduled) && task.PlannedDate == nil {
		return nil, apperr.Validation("update status", "task %d has no planned date", taskID)
	}
	if task.Status == model.StatusInProgress && status != model.StatusInProgress {
		s.stopClock(task)
	}
	task.Status = status
	if status == model.StatusDone {
		now := s.now().UTC()
		task.CompletedAt = &now
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// StartTimer marks the task IN_PROGRESS and starts its clock.
func (s *TaskService) StartTimer(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.TimerStartedAt != nil {
		return task, nil
	}
	if task.PlannedDate == nil {
		today := model.DateOf(s.now())
		task.PlannedDate = &today
	}
	now := s.now().UTC()
	task.TimerStartedAt = &now
	task.Status = model.StatusInProgress
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// StopTimer accumulates the elapsed whole minutes into ActualMinutes.
func (s *TaskService) StopTimer(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.TimerStartedAt == nil {
		return nil, apperr.Validation("stop timer", "timer for task %d is not running", taskID)
	}
	s.stopClock(task)
	task.Status = model.StatusPlanned
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask marks a task as done, stopping its timer if it runs.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.UpdateStatus(ctx, userID, taskID, model.StatusDone)
}

// DeferTask moves a task out of its day with a reason.
func (s *TaskService) DeferTask(ctx context.Context, userID, taskID uint, to time.Time, reason string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.StatusDone || task.Status == model.StatusCanceled {
		return nil, apperr.Validation("defer task", "task %d is already closed", taskID)
	}
	s.stopClock(task)
	d := model.DateOf(to)
	task.Status = model.StatusDeferred
	task.DeferredTo = &d
	task.DeferReason = strings.TrimSpace(reason)
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// RolloverTask copies an unfinished task onto a new date and defers the original.
func (s *TaskService) RolloverTask(ctx context.Context, userID, taskID uint, to time.Time) (*model.Task, error) {
	var next *model.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		next, err = rollover(ctx, repos.Tasks, s.now, userID, taskID, to)
		return err
	})
	return next, err
}

// RolloverIncomplete rolls every unfinished task of from onto to in one transaction.
func (s *TaskService) RolloverIncomplete(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error) {
	var rolled []model.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		open, err := repos.Tasks.ListByDateAndStatus(ctx, userID, from, model.CommittedStatuses)
		if err != nil {
			return err
		}
		for _, task := range open {
			next, err := rollover(ctx, repos.Tasks, s.now, userID, task.ID, to)
			if err != nil {
				return err
			}
			rolled = append(rolled, *next)
		}
		return nil
	})
	return rolled, err
}

// SetEventRemover makes DeleteTask also remove the task's calendar event.
func (s *TaskService) SetEventRemover(r EventRemover) {
	s.remover = r
}

// DeleteTask removes a task completely. Only users delete tasks.
// The calendar event removal is queued while the join row still exists.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	if _, err := s.taskRepo.FindByID(ctx, userID, taskID); err != nil {
		return err
	}
	if s.remover != nil {
		if err := s.remover.ScheduleDelete(ctx, userID, taskID); err != nil {
			return err
		}
	}
	return s.taskRepo.Delete(ctx, userID, taskID)
}

func (s *TaskService) stopClock(task *model.Task) {
	if task.TimerStartedAt == nil {
		return
	}
	elapsed := s.now().Sub(*task.TimerStartedAt)
	if elapsed > 0 {
		task.ActualMinutes += int(elapsed / time.Minute)
	}
	task.TimerStartedAt = nil
}

func rollover(ctx context.Context, tasks *repository.TaskRepository, now func() time.Time, userID, taskID uint, to time.Time) (*model.Task, error) {
	orig, err := tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	switch orig.Status {
	case model.StatusDone, model.StatusCanceled, model.StatusDeferred:
		return nil, apperr.Validation("rollover task", "task %d is %s", taskID, orig.Status)
	}

	if orig.TimerStartedAt != nil {
		if elapsed := now().Sub(*orig.TimerStartedAt); elapsed > 0 {
			orig.ActualMinutes += int(elapsed / time.Minute)
		}
		orig.TimerStartedAt = nil
	}

	d := model.DateOf(to)
	order, err := tasks.NextSortOrder(ctx, userID, &d, model.StatusPlanned)
	if err != nil {
		return nil, err
	}
	from := orig.ID
	next := model.Task{
		UserID:           userID,
		Title:            orig.Title,
		Description:      orig.Description,
		Priority:         orig.Priority,
		Status:           model.StatusPlanned,
		PlannedDate:      &d,
		DueDate:          orig.DueDate,
		EstimateMinutes:  orig.EstimateMinutes,
		SortOrder:        order,
		RolloverCount:    orig.RolloverCount + 1,
		RolledOverFromID: &from,
	}
	if err := tasks.Create(ctx, &next); err != nil {
		return nil, err
	}

	orig.Status = model.StatusDeferred
	orig.DeferredTo = &d
	orig.DeferReason = "rolled over"
	if err := tasks.Save(ctx, orig); err != nil {
		return nil, err
	}
	return &next, nil
}
