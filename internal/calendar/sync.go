package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/metrics"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// SyncResult counts the local changes of one incremental sync.
type SyncResult struct {
	Created    int  `json:"created"`
	Updated    int  `json:"updated"`
	Deleted    int  `json:"deleted"`
	FullResync bool `json:"fullResync"`
}

// Total is the number of reconciled events.
func (r SyncResult) Total() int {
	return r.Created + r.Updated + r.Deleted
}

// Syncer reconciles provider events with local tasks.
type Syncer struct {
	providers ProviderFactory
	repos     *repository.Repositories
	tx        repository.Transactor
	locker    Locker
	logger    *zap.Logger
	now       func() time.Time
}

func NewSyncer(providers ProviderFactory, repos *repository.Repositories, tx repository.Transactor, locker Locker, logger *zap.Logger) *Syncer {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Syncer{
		providers: providers,
		repos:     repos,
		tx:        tx,
		locker:    locker,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncEvents pulls changes for one calendar. With a stored sync token it
// fetches only changes since that token; otherwise it lists events from now
// on. Syncs of the same (user, calendar) never overlap.
func (s *Syncer) SyncEvents(ctx context.Context, userID uint, calendarID string) (SyncResult, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(userID, calendarID))
	if err != nil {
		return SyncResult{}, err
	}
	defer unlock()

	provider, err := s.providers.ForUser(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	state, err := s.repos.SyncStates.Find(ctx, userID, calendarID)
	if err != nil {
		return SyncResult{}, err
	}
	var token SyncToken
	if state != nil && state.SyncToken != nil {
		token = SyncToken(*state.SyncToken)
	}

	log := s.logger.With(zap.Uint("user_id", userID), zap.String("calendar_id", calendarID))

	var result SyncResult
	result.FullResync = token == ""
	err = s.traverse(ctx, provider, userID, calendarID, token, &result)
	if errors.Is(err, ErrSyncTokenInvalid) && token != "" {
		log.Warn("sync token rejected, running full resync")
		if err := s.repos.SyncStates.ClearSyncToken(ctx, userID, calendarID); err != nil {
			return result, err
		}
		result.FullResync = true
		err = s.traverse(ctx, provider, userID, calendarID, "", &result)
	}
	metrics.RecordSyncEvents(result.Created, result.Updated, result.Deleted)
	if err != nil {
		log.Error("calendar sync failed",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("deleted", result.Deleted),
			zap.Error(err),
		)
		return result, err
	}

	log.Info("calendar synced",
		zap.Bool("full", result.FullResync),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

// traverse walks every page of one listing. Pages are applied in order and a
// new sync token is stored as soon as a page carries one.
func (s *Syncer) traverse(ctx context.Context, provider Provider, userID uint, calendarID string, token SyncToken, result *SyncResult) error {
	req := ListEventsRequest{
		CalendarID:   calendarID,
		SyncToken:    token,
		ShowDeleted:  true,
		SingleEvents: true,
	}
	if token == "" {
		req.TimeMin = s.now()
		req.OrderBy = OrderByStartTime
	}

	for {
		page, err := provider.ListEvents(ctx, req)
		if err != nil {
			return err
		}
		for _, ev := range page.Items {
			if err := s.apply(ctx, userID, calendarID, ev, result); err != nil {
				return err
			}
		}
		if page.NextSyncToken != "" {
			if err := s.repos.SyncStates.SaveSyncToken(ctx, userID, calendarID, string(page.NextSyncToken), s.now()); err != nil {
				return err
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		req.PageToken = page.NextPageToken
	}
}

// apply reconciles one event atomically.
func (s *Syncer) apply(ctx context.Context, userID uint, calendarID string, ev Event, result *SyncResult) error {
	if ev.Cancelled() {
		deleted, err := s.repos.CalendarEvents.DeleteByExternalID(ctx, userID, model.ProviderGoogle, ev.ID)
		if err != nil {
			return err
		}
		if deleted {
			result.Deleted++
		}
		return nil
	}
	if strings.TrimSpace(ev.Summary) == "" || ev.Start == nil {
		return nil
	}

	var existed bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		link, err := repos.CalendarEvents.FindByExternalID(ctx, userID, model.ProviderGoogle, ev.ID)
		if err != nil {
			return err
		}
		existed = link != nil

		var task *model.Task
		if link != nil {
			task, err = repos.Tasks.FindByID(ctx, userID, link.TaskID)
			if err != nil && !isNotFound(err) {
				return err
			}
		}
		if task == nil {
			task = &model.Task{UserID: userID, Priority: model.PriorityMedium}
		}

		applyEvent(task, ev)
		if task.ID == 0 {
			order, err := repos.Tasks.NextSortOrder(ctx, userID, task.PlannedDate, task.Status)
			if err != nil {
				return err
			}
			task.SortOrder = order
			if err := repos.Tasks.Create(ctx, task); err != nil {
				return err
			}
		} else if err := repos.Tasks.Save(ctx, task); err != nil {
			return err
		}

		return repos.CalendarEvents.Upsert(ctx, &model.CalendarEvent{
			TaskID:     task.ID,
			UserID:     userID,
			Provider:   model.ProviderGoogle,
			ExternalID: ev.ID,
			CalendarID: calendarID,
			ICalUID:    ev.ICalUID,
			StartAt:    utcPtr(ev.Start),
			EndAt:      utcPtr(ev.End),
			LastSynced: s.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	if existed {
		result.Updated++
	} else {
		result.Created++
	}
	return nil
}

// applyEvent copies event fields onto the task. Tasks already started,
// finished or moved away keep their status.
func applyEvent(task *model.Task, ev Event) {
	task.Title = strings.TrimSpace(ev.Summary)
	task.Description = ev.Description

	date := model.DateOf(*ev.Start)
	task.PlannedDate = &date

	if ev.AllDay {
		task.ScheduledStart = nil
		task.ScheduledEnd = nil
	} else {
		task.ScheduledStart = utcPtr(ev.Start)
		task.ScheduledEnd = utcPtr(ev.End)
		if ev.End != nil {
			if minutes := int(ev.End.Sub(*ev.Start) / time.Minute); minutes > 0 {
				task.EstimateMinutes = &minutes
			}
		}
	}

	switch task.Status {
	case "", model.StatusBacklog, model.StatusPlanned, model.StatusScheduled:
		if ev.AllDay {
			task.Status = model.StatusPlanned
		} else {
			task.Status = model.StatusScheduled
		}
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
