package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// DefaultWatchTTL is the channel lifetime requested from the provider.
const DefaultWatchTTL = 7 * 24 * time.Hour

// WatchManager registers, renews and stops push channels.
type WatchManager struct {
	providers  ProviderFactory
	states     *repository.SyncStateRepository
	webhookURL string
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewWatchManager(providers ProviderFactory, states *repository.SyncStateRepository, webhookURL string, ttl time.Duration, logger *zap.Logger) *WatchManager {
	if ttl <= 0 {
		ttl = DefaultWatchTTL
	}
	return &WatchManager{
		providers:  providers,
		states:     states,
		webhookURL: webhookURL,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Setup registers a fresh channel and upserts it as the calendar's watch.
// Calling it again replaces the channel; the replaced one is stopped.
func (m *WatchManager) Setup(ctx context.Context, userID uint, calendarID string) (*model.GoogleSyncState, error) {
	const op = "setup calendar watch"
	if calendarID == "" {
		return nil, apperr.Validation(op, "calendar id is required")
	}
	if m.webhookURL == "" {
		return nil, apperr.Validation(op, "webhook url is not configured")
	}
	provider, err := m.providers.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous, err := m.states.Find(ctx, userID, calendarID)
	if err != nil {
		return nil, err
	}

	channelID := m.newID()
	resp, err := provider.Watch(ctx, WatchRequest{
		CalendarID: calendarID,
		ChannelID:  channelID,
		WebhookURL: m.webhookURL,
		Expiration: m.now().Add(m.ttl),
	})
	if err != nil {
		return nil, err
	}
	expiration := resp.Expiration
	if expiration.IsZero() {
		expiration = m.now().Add(m.ttl)
	}

	state, err := m.states.UpsertWatch(ctx, userID, calendarID, channelID, resp.ResourceID, expiration)
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.ChannelID != nil && previous.ResourceID != nil {
		err := provider.StopWatch(ctx, StopRequest{ChannelID: *previous.ChannelID, ResourceID: *previous.ResourceID})
		if err != nil && !isNotFound(err) {
			m.logger.Warn("replaced watch channel not stopped",
				zap.Uint("user_id", userID),
				zap.String("calendar_id", calendarID),
				zap.String("channel_id", *previous.ChannelID),
				zap.Error(err),
			)
		}
	}

	m.logger.Info("calendar watch registered",
		zap.Uint("user_id", userID),
		zap.String("calendar_id", calendarID),
		zap.String("channel_id", channelID),
		zap.Time("expiration", expiration),
	)
	return state, nil
}

// Stop tears down the calendar's channel. The sync token and last sync time
// are kept. Without a registered channel it does nothing.
func (m *WatchManager) Stop(ctx context.Context, userID uint, calendarID string) error {
	state, err := m.states.Find(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if state == nil || state.ChannelID == nil {
		return nil
	}

	provider, err := m.providers.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	req := StopRequest{ChannelID: *state.ChannelID}
	if state.ResourceID != nil {
		req.ResourceID = *state.ResourceID
	}
	if err := provider.StopWatch(ctx, req); err != nil && !isNotFound(err) {
		return err
	}
	if err := m.states.ClearChannel(ctx, state.ID); err != nil {
		return err
	}

	m.logger.Info("calendar watch stopped",
		zap.Uint("user_id", userID),
		zap.String("calendar_id", calendarID),
	)
	return nil
}

// RenewExpiring re-registers every watch that expires within window.
// A failing calendar does not stop the others.
func (m *WatchManager) RenewExpiring(ctx context.Context, window time.Duration) (int, error) {
	states, err := m.states.ListExpiringBefore(ctx, m.now().Add(window))
	if err != nil {
		return 0, err
	}

	renewed := 0
	var errs []error
	for _, st := range states {
		if _, err := m.Setup(ctx, st.UserID, st.CalendarID); err != nil {
			m.logger.Error("calendar watch renewal failed",
				zap.Uint("user_id", st.UserID),
				zap.String("calendar_id", st.CalendarID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		renewed++
	}
	return renewed, errors.Join(errs...)
}

func isNotFound(err error) bool {
	return apperr.Is(err, apperr.KindNotFound)
}
