package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/queue"
	"dailyplan/internal/repository"
)

// Job priorities. Pushes outrank write-back so incoming changes land first.
const (
	PrioritySync   = 10
	PriorityWatch  = 8
	PriorityUpdate = 5
	PriorityDelete = 5
)

type SyncPayload struct {
	CalendarID string `json:"calendarId"`
}

type WatchPayload struct {
	CalendarID string `json:"calendarId"`
}

type UpdatePayload struct {
	CalendarID string `json:"calendarId"`
	Date       string `json:"date"`
}

type DeletePayload struct {
	CalendarID string `json:"calendarId"`
	ExternalID string `json:"externalId"`
	TaskID     uint   `json:"taskId"`
}

func enqueue(ctx context.Context, q Enqueuer, jobType queue.JobType, userID uint, payload any, priority float64) error {
	job, err := queue.NewJob(jobType, userID, payload, priority)
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, job)
}

// EnqueueSync queues an incremental sync of one calendar.
func EnqueueSync(ctx context.Context, q Enqueuer, userID uint, calendarID string) error {
	if calendarID == "" {
		return apperr.Validation("enqueue sync", "calendar id is required")
	}
	return enqueue(ctx, q, queue.JobCalendarSync, userID, SyncPayload{CalendarID: calendarID}, PrioritySync)
}

// EnqueueWatch queues a watch (re)registration.
func EnqueueWatch(ctx context.Context, q Enqueuer, userID uint, calendarID string) error {
	if calendarID == "" {
		return apperr.Validation("enqueue watch", "calendar id is required")
	}
	return enqueue(ctx, q, queue.JobCalendarWatch, userID, WatchPayload{CalendarID: calendarID}, PriorityWatch)
}

// Pusher writes scheduled tasks back to the user's calendars.
type Pusher struct {
	providers ProviderFactory
	repos     *repository.Repositories
	queue     Enqueuer
	locker    Locker
	logger    *zap.Logger
	now       func() time.Time
}

// NewPusher builds a Pusher. locker must be the one the Syncer uses.
func NewPusher(providers ProviderFactory, repos *repository.Repositories, q Enqueuer, locker Locker, logger *zap.Logger) *Pusher {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Pusher{providers: providers, repos: repos, queue: q, locker: locker, logger: logger, now: time.Now}
}

// SchedulePush queues a calendar_update job for every watched calendar of
// the user. Users without a calendar are skipped.
func (p *Pusher) SchedulePush(ctx context.Context, userID uint, date time.Time) error {
	states, err := p.repos.SyncStates.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	day := model.DateOf(date).Format(model.DateLayout)
	for _, st := range states {
		payload := UpdatePayload{CalendarID: st.CalendarID, Date: day}
		if err := enqueue(ctx, p.queue, queue.JobCalendarUpdate, userID, payload, PriorityUpdate); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleDelete queues removal of the task's calendar event, if it has one.
func (p *Pusher) ScheduleDelete(ctx context.Context, userID, taskID uint) error {
	link, err := p.repos.CalendarEvents.FindByTask(ctx, model.ProviderGoogle, taskID)
	if err != nil || link == nil {
		return err
	}
	payload := DeletePayload{CalendarID: link.CalendarID, ExternalID: link.ExternalID, TaskID: taskID}
	return enqueue(ctx, p.queue, queue.JobCalendarDelete, userID, payload, PriorityDelete)
}

// PushDay inserts or patches provider events for the day's scheduled tasks.
func (p *Pusher) PushDay(ctx context.Context, userID uint, calendarID string, date time.Time) (int, error) {
	provider, err := p.providers.ForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	tasks, err := p.repos.Tasks.ListByDateAndStatus(ctx, userID, date, []model.TaskStatus{model.StatusScheduled})
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, task := range tasks {
		if task.ScheduledStart == nil || task.ScheduledEnd == nil {
			continue
		}
		if err := p.pushTask(ctx, provider, userID, calendarID, task); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// pushTask writes one task to its calendar. The calendar's sync lock is held
// from the provider write until the join row is stored, so a concurrent sync
// cannot see the new event before it is linked to the task.
func (p *Pusher) pushTask(ctx context.Context, provider Provider, userID uint, calendarID string, task model.Task) error {
	link, err := p.repos.CalendarEvents.FindByTask(ctx, model.ProviderGoogle, task.ID)
	if err != nil {
		return err
	}
	target := calendarID
	if link != nil {
		target = link.CalendarID
	}

	unlock, err := p.locker.Lock(ctx, lockKey(userID, target))
	if err != nil {
		return err
	}
	defer unlock()

	in := EventInput{
		Summary:     task.Title,
		Description: task.Description,
		Start:       *task.ScheduledStart,
		End:         *task.ScheduledEnd,
	}
	var ev Event
	if link != nil {
		ev, err = provider.PatchEvent(ctx, target, link.ExternalID, in)
		if isNotFound(err) {
			ev, err = provider.InsertEvent(ctx, target, in)
		}
	} else {
		ev, err = provider.InsertEvent(ctx, target, in)
	}
	if err != nil {
		return fmt.Errorf("push task %d: %w", task.ID, err)
	}
	if link != nil && link.ExternalID != ev.ID {
		if _, err := p.repos.CalendarEvents.DeleteByExternalID(ctx, userID, model.ProviderGoogle, link.ExternalID); err != nil {
			return err
		}
	}

	start, end := task.ScheduledStart.UTC(), task.ScheduledEnd.UTC()
	return p.repos.CalendarEvents.Upsert(ctx, &model.CalendarEvent{
		TaskID:     task.ID,
		UserID:     userID,
		Provider:   model.ProviderGoogle,
		ExternalID: ev.ID,
		CalendarID: target,
		ICalUID:    ev.ICalUID,
		StartAt:    &start,
		EndAt:      &end,
		LastSynced: p.now().UTC(),
	})
}

// RemoveEvent deletes the provider event and its join row.
func (p *Pusher) RemoveEvent(ctx context.Context, userID uint, payload DeletePayload) error {
	provider, err := p.providers.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	unlock, err := p.locker.Lock(ctx, lockKey(userID, payload.CalendarID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := provider.DeleteEvent(ctx, payload.CalendarID, payload.ExternalID); err != nil {
		return err
	}
	_, err = p.repos.CalendarEvents.DeleteByExternalID(ctx, userID, model.ProviderGoogle, payload.ExternalID)
	return err
}

// RegisterHandlers wires the calendar job types into the worker.
func RegisterHandlers(w *queue.Worker, syncer *Syncer, watches *WatchManager, pusher *Pusher, logger *zap.Logger) {
	w.Handle(queue.JobCalendarSync, func(ctx context.Context, job *queue.Job) error {
		var p SyncPayload
		if err := decode(job, &p); err != nil {
			return err
		}
		_, err := syncer.SyncEvents(ctx, job.UserID, p.CalendarID)
		return err
	})
	w.Handle(queue.JobCalendarWatch, func(ctx context.Context, job *queue.Job) error {
		var p WatchPayload
		if err := decode(job, &p); err != nil {
			return err
		}
		_, err := watches.Setup(ctx, job.UserID, p.CalendarID)
		return err
	})
	w.Handle(queue.JobCalendarUpdate, func(ctx context.Context, job *queue.Job) error {
		var p UpdatePayload
		if err := decode(job, &p); err != nil {
			return err
		}
		date, err := model.ParseDate(p.Date)
		if err != nil {
			return apperr.Validation("calendar update", "%v", err)
		}
		n, err := pusher.PushDay(ctx, job.UserID, p.CalendarID, date)
		if err != nil {
			return err
		}
		logger.Info("scheduled tasks pushed to calendar",
			zap.Uint("user_id", job.UserID),
			zap.String("calendar_id", p.CalendarID),
			zap.String("date", p.Date),
			zap.Int("events", n),
		)
		return nil
	})
	w.Handle(queue.JobCalendarDelete, func(ctx context.Context, job *queue.Job) error {
		var p DeletePayload
		if err := decode(job, &p); err != nil {
			return err
		}
		return pusher.RemoveEvent(ctx, job.UserID, p)
	})
}

func decode(job *queue.Job, v any) error {
	if err := job.Decode(v); err != nil {
		return apperr.Validation(string(job.Type), "%v", err)
	}
	return nil
}
