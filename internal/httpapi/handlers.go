package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/calendar"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

// queryDate reads ?date=, defaulting to today.
func (h *handlers) queryDate(c *gin.Context, op string) (time.Time, error) {
	return h.parseDate(op, c.Query("date"))
}

func (h *handlers) parseDate(op, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DateOf(h.Now()), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(op, "%v", err)
	}
	return d, nil
}

func (h *handlers) capacity(c *gin.Context) {
	const op = "get capacity"
	date, err := h.queryDate(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	capacity, err := h.Capacity.Compute(c.Request.Context(), currentUser(c), date)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, capacity)
}

func (h *handlers) suggestions(c *gin.Context) {
	const op = "get suggestions"
	date, err := h.queryDate(c, op)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	candidates, err := h.Suggestions.Suggest(c.Request.Context(), currentUser(c), date)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if candidates == nil {
		candidates = []model.PlanningCandidate{}
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

type commitRequest struct {
	Date         string              `json:"date"`
	Selections   []service.Selection `json:"selections"`
	AutoSchedule bool                `json:"autoSchedule"`
}

func (h *handlers) commit(c *gin.Context) {
	const op = "commit plan"
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, op, apperr.Validation(op, "invalid body: %v", err))
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		writeError(c, h.Logger, op, apperr.Validation(op, "date is required"))
		return
	}
	date, err := h.parseDate(op, req.Date)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	result, err := h.Plans.Commit(c.Request.Context(), service.CommitInput{
		UserID:       currentUser(c),
		Date:         date,
		Selections:   req.Selections,
		AutoSchedule: req.AutoSchedule,
	})
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) shutdown(c *gin.Context) {
	const op = "shutdown day"
	date, err := h.parseDate(op, c.Param("date"))
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	plan, summary, err := h.Days.Shutdown(c.Request.Context(), currentUser(c), date)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan, "summary": summary})
}

type calendarRequest struct {
	CalendarID string `json:"calendarId"`
}

func (h *handlers) bindCalendar(c *gin.Context, op string) (string, bool) {
	var req calendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.Logger, op, apperr.Validation(op, "invalid body: %v", err))
		return "", false
	}
	id := strings.TrimSpace(req.CalendarID)
	if id == "" {
		writeError(c, h.Logger, op, apperr.Validation(op, "calendarId is required"))
		return "", false
	}
	return id, true
}

func (h *handlers) startWatch(c *gin.Context) {
	const op = "start calendar watch"
	calendarID, ok := h.bindCalendar(c, op)
	if !ok {
		return
	}
	state, err := h.Watches.Setup(c.Request.Context(), currentUser(c), calendarID)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"calendarId": state.CalendarID,
		"channelId":  state.ChannelID,
		"expiration": state.Expiration,
	})
}

func (h *handlers) stopWatch(c *gin.Context) {
	const op = "stop calendar watch"
	calendarID := strings.TrimSpace(c.Query("calendarId"))
	if calendarID == "" {
		writeError(c, h.Logger, op, apperr.Validation(op, "calendarId is required"))
		return
	}
	if err := h.Watches.Stop(c.Request.Context(), currentUser(c), calendarID); err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (h *handlers) enqueueSync(c *gin.Context) {
	const op = "enqueue calendar sync"
	calendarID, ok := h.bindCalendar(c, op)
	if !ok {
		return
	}
	if err := calendar.EnqueueSync(c.Request.Context(), h.Queue, currentUser(c), calendarID); err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": calendar.WebhookQueued})
}

func (h *handlers) googleWebhook(c *gin.Context) {
	const op = "calendar webhook"
	n := calendar.Notification{
		ChannelID:     c.GetHeader(calendar.HeaderChannelID),
		ResourceID:    c.GetHeader(calendar.HeaderResourceID),
		ResourceState: c.GetHeader(calendar.HeaderResourceState),
		MessageNumber: c.GetHeader(calendar.HeaderMessageNumber),
	}
	result, err := h.Webhook.Handle(c.Request.Context(), n)
	if err != nil {
		writeError(c, h.Logger, op, err)
		return
	}
	if result.Status == calendar.WebhookSynced {
		h.Logger.Info("calendar push synced",
			zap.Uint("user_id", result.UserID),
			zap.String("calendar_id", result.CalendarID),
			zap.Int("changes", result.Synced),
		)
	}
	c.JSON(http.StatusOK, result)
}
