package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

const priorityRankSQL = "CASE priority WHEN 'URGENT' THEN 3 WHEN 'HIGH' THEN 2 WHEN 'MEDIUM' THEN 1 ELSE 0 END"

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return apperr.Persistence("create task", err)
	}
	return nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return apperr.Persistence("save task", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("find task", "task %d not found", taskID)
		}
		return nil, apperr.Persistence("find task", err)
	}
	return &task, nil
}

// SumCommittedEstimates totals estimates of PLANNED, SCHEDULED and IN_PROGRESS
// tasks on date. Tasks without an estimate contribute nothing.
func (r *TaskRepository) SumCommittedEstimates(ctx context.Context, userID uint, date time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("COALESCE(SUM(estimate_minutes), 0)").
		Where("user_id = ? AND planned_date = ? AND status IN ?", userID, model.DateOf(date), model.CommittedStatuses).
		Scan(&total).Error
	if err != nil {
		return 0, apperr.Persistence("sum estimates", err)
	}
	return int(total), nil
}

// ListBacklogCandidates returns backlog tasks never planned or planned before date,
// most urgent first and oldest first within a priority.
func (r *TaskRepository) ListBacklogCandidates(ctx context.Context, userID uint, date time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND (planned_date IS NULL OR planned_date < ?)", userID, model.StatusBacklog, model.DateOf(date)).
		Order(priorityRankSQL + " DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Persistence("list backlog", err)
	}
	return tasks, nil
}

// ListByDate returns the user's tasks planned on date in lane order.
func (r *TaskRepository) ListByDate(ctx context.Context, userID uint, date time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND planned_date = ?", userID, model.DateOf(date)).
		Order("status ASC, sort_order ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Persistence("list tasks by date", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByDateAndStatus(ctx context.Context, userID uint, date time.Time, statuses []model.TaskStatus) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND planned_date = ? AND status IN ?", userID, model.DateOf(date), statuses).
		Order("sort_order ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Persistence("list tasks by status", err)
	}
	return tasks, nil
}

// NextSortOrder returns the next free sort position in the (date, status) lane.
func (r *TaskRepository) NextSortOrder(ctx context.Context, userID uint, date *time.Time, status model.TaskStatus) (int, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("COALESCE(MAX(sort_order), -1)").
		Where("user_id = ? AND status = ?", userID, status)
	if date == nil {
		q = q.Where("planned_date IS NULL")
	} else {
		q = q.Where("planned_date = ?", model.DateOf(*date))
	}
	var max int64
	if err := q.Scan(&max).Error; err != nil {
		return 0, apperr.Persistence("next sort order", err)
	}
	return int(max) + 1, nil
}

// Delete removes a task for the given user. Only user actions delete tasks.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("delete task", "task %d not found", taskID)
	}
	return nil
}
