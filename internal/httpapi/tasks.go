package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

// TaskManager is satisfied by service.TaskService.
type TaskManager interface {
	CreateTask(ctx context.Context, userID uint, input service.TaskInput) (*model.Task, error)
	ListForDate(ctx context.Context, userID uint, date time.Time) ([]model.Task, error)
	UpdateStatus(ctx context.Context, userID, taskID uint, status model.TaskStatus) (*model.Task, error)
	StartTimer(ctx context.Context, userID, taskID uint) (*model.Task, error)
	StopTimer(ctx context.Context, userID, taskID uint) (*model.Task, error)
	CompleteTask(ctx context.Context, userID, taskID uint) (*model.Task, error)
	DeferTask(ctx context.Context, userID, taskID uint, to time.Time, reason string) (*model.Task, error)
	RolloverTask(ctx context.Context, userID, taskID uint, to time.Time) (*model.Task, error)
	RolloverIncomplete(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID uint) error
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers) {
	api.GET("/tasks", h.listTasks)
	api.POST("/tasks", h.createTask)
	api.PATCH("/tasks/:id/status", h.updateTaskStatus)
	api.POST("/tasks/:id/timer/start", h.taskAction("start timer", TaskManager.StartTimer))
	api.POST("/tasks/:id/timer/stop", h.taskAction("stop timer", TaskManager.StopTimer))
	api.POST("/tasks/:id/complete", h.taskAction("complete task", TaskManager.CompleteTask))
	api.POST("/tasks/:id/defer", h.deferTask)
	api.POST("/tasks/:id/rollover", h.rolloverTask)
	api.DELETE("/tasks/:id", h.deleteTask)
	api.POST("/days/:date/rollover", h.rolloverDay)
}

func taskID(c *gin.Context, op string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(op, "invalid task id %q", c.Param("id"))
	}
	return uint(id), nil
}

func (h *handlers) optionalDate(op string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := model.ParseDate(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	return &d, nil
}

func (h *handlers) listTasks(c *gin.Context) {
	const op = "list tasks"
	date, err := h.queryDate(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	tasks, err := h.Tasks.ListForDate(c.Request.Context(), currentUser(c), date)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type createTaskRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Priority        string  `json:"priority"`
	PlannedDate     *string `json:"plannedDate"`
	DueDate         *string `json:"dueDate"`
	EstimateMinutes *int    `json:"estimateMinutes"`
}

func (h *handlers) createTask(c *gin.Context) {
	const op = "create task"
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, op, apperr.Validation(op, "invalid body: %v", err))
		return
	}
	planned, err := h.optionalDate(op, req.PlannedDate)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	due, err := h.optionalDate(op, req.DueDate)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if req.EstimateMinutes != nil && *req.EstimateMinutes < 0 {
		writeError(c, h.Logger, op, apperr.Validation(op, "estimateMinutes must not be negative"))
		return
	}
	task, err := h.Tasks.CreateTask(c.Request.Context(), currentUser(c), service.TaskInput{
		Title:           req.Title,
		Description:     req.Description,
		Priority:        model.Priority(strings.ToUpper(strings.TrimSpace(req.Priority))),
		PlannedDate:     planned,
		DueDate:         due,
		EstimateMinutes: req.EstimateMinutes,
	})
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTaskStatus(c *gin.Context) {
	const op = "update task status"
	id, err := taskID(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, op, apperr.Validation(op, "invalid body: %v", err))
		return
	}
	status := model.TaskStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	task, err := h.Tasks.UpdateStatus(c.Request.Context(), currentUser(c), id, status)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handlers) taskAction(op string, action func(TaskManager, context.Context, uint, uint) (*model.Task, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := taskID(c, op)
		if err != nil {
			writeError(c, h.Logger, op, err)
			return
		}
		task, err := action(h.Tasks, c.Request.Context(), currentUser(c), id)
		if err != nil {
			writeError(c, h.Logger, op, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

type moveRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// bindMove reads the target date of a defer or rollover. It defaults to the
// day after today.
func (h *handlers) bindMove(c *gin.Context, op string) (moveRequest, time.Time, error) {
	var req moveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, time.Time{}, apperr.Validation(op, "invalid body: %v", err)
		}
	}
	if strings.TrimSpace(req.To) == "" {
		return req, model.DateOf(h.Now()).AddDate(0, 0, 1), nil
	}
	to, err := model.ParseDate(strings.TrimSpace(req.To))
	if err != nil {
		return req, time.Time{}, apperr.Validation(op, "%v", err)
	}
	return req, to, nil
}

func (h *handlers) deferTask(c *gin.Context) {
	const op = "defer task"
	id, err := taskID(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	req, to, err := h.bindMove(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	task, err := h.Tasks.DeferTask(c.Request.Context(), currentUser(c), id, to, req.Reason)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handlers) rolloverTask(c *gin.Context) {
	const op = "rollover task"
	id, err := taskID(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	_, to, err := h.bindMove(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	task, err := h.Tasks.RolloverTask(c.Request.Context(), currentUser(c), id, to)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c *gin.Context) {
	const op = "delete task"
	id, err := taskID(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if err := h.Tasks.DeleteTask(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) rolloverDay(c *gin.Context) {
	const op = "rollover day"
	from, err := h.parseDate(op, c.Param("date"))
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	_, to, err := h.bindMove(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if !to.After(from) {
		writeError(c, h.Logger, op, apperr.Validation(op, "target date must be after %s", from.Format(model.DateLayout)))
		return
	}
	tasks, err := h.Tasks.RolloverIncomplete(c.Request.Context(), currentUser(c), from, to)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"rolled": tasks})
}
