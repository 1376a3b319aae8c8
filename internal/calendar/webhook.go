package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/metrics"
	"dailyplan/internal/queue"
	"dailyplan/internal/repository"
)

// Push notification headers.
const (
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderResourceID    = "X-Goog-Resource-ID"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderMessageNumber = "X-Goog-Message-Number"
)

// ResourceStateSync marks the handshake sent right after a channel is registered.
const ResourceStateSync = "sync"

type Notification struct {
	ChannelID     string
	ResourceID    string
	ResourceState string
	MessageNumber string
}

const (
	WebhookIgnored = "ignored"
	WebhookSynced  = "synced"
	WebhookQueued  = "queued"
)

type WebhookResult struct {
	Status     string `json:"status"`
	UserID     uint   `json:"-"`
	CalendarID string `json:"calendarId,omitempty"`
	Synced     int    `json:"synced"`
}

// Enqueuer is satisfied by queue.Worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// WebhookHandler turns push notifications into syncs.
type WebhookHandler struct {
	states   *repository.SyncStateRepository
	syncer   *Syncer
	enqueuer Enqueuer
	inline   bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewWebhookHandler syncs inline when inline is true, otherwise it queues a
// calendar_sync job and acknowledges at once.
func NewWebhookHandler(states *repository.SyncStateRepository, syncer *Syncer, enqueuer Enqueuer, inline bool, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		states:   states,
		syncer:   syncer,
		enqueuer: enqueuer,
		inline:   inline || enqueuer == nil,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *WebhookHandler) Handle(ctx context.Context, n Notification) (WebhookResult, error) {
	const op = "calendar webhook"
	if n.ChannelID == "" || n.ResourceID == "" {
		metrics.IncrementWebhook("invalid")
		return WebhookResult{}, apperr.Validation(op, "missing channel or resource id")
	}
	if n.ResourceState == ResourceStateSync {
		metrics.IncrementWebhook(WebhookIgnored)
		return WebhookResult{Status: WebhookIgnored}, nil
	}

	state, err := h.states.FindActiveChannel(ctx, n.ChannelID, n.ResourceID, h.now())
	if err != nil {
		if isNotFound(err) {
			metrics.IncrementWebhook("unknown_channel")
			h.logger.Info("push for unknown or expired channel",
				zap.String("channel_id", n.ChannelID),
				zap.String("resource_id", n.ResourceID),
			)
		}
		return WebhookResult{}, err
	}

	result := WebhookResult{UserID: state.UserID, CalendarID: state.CalendarID}
	if h.inline {
		synced, err := h.syncer.SyncEvents(ctx, state.UserID, state.CalendarID)
		if err != nil {
			metrics.IncrementWebhook("failed")
			return WebhookResult{}, err
		}
		result.Status = WebhookSynced
		result.Synced = synced.Total()
		metrics.IncrementWebhook(WebhookSynced)
		return result, nil
	}

	if err := EnqueueSync(ctx, h.enqueuer, state.UserID, state.CalendarID); err != nil {
		metrics.IncrementWebhook("failed")
		return WebhookResult{}, err
	}
	result.Status = WebhookQueued
	metrics.IncrementWebhook(WebhookQueued)
	h.logger.Debug("calendar sync queued from push",
		zap.Uint("user_id", state.UserID),
		zap.String("calendar_id", state.CalendarID),
		zap.String("message_number", n.MessageNumber),
	)
	return result, nil
}
