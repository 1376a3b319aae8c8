package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
	"dailyplan/internal/testutil"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func newTaskService(t *testing.T) (*TaskService, *repository.Repositories, *manualClock, uint) {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	clock := &manualClock{t: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)}
	svc := NewTaskService(repos.Tasks, repository.NewTransactor(db))
	svc.now = clock.now
	user := testutil.CreateUser(t, db, "a@example.com")
	return svc, repos, clock, user.ID
}

func TestTaskService_CreateTask_StatusFollowsDate(t *testing.T) {
	svc, _, _, userID := newTaskService(t)
	ctx := context.Background()
	day := testutil.Date(2025, 3, 15)

	backlog, err := svc.CreateTask(ctx, userID, TaskInput{Title: "someday"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, backlog.Status)
	assert.Equal(t, model.PriorityMedium, backlog.Priority)
	assert.Nil(t, backlog.PlannedDate)

	first, err := svc.CreateTask(ctx, userID, TaskInput{Title: "today", PlannedDate: &day})
	require.NoError(t, err)
	second, err := svc.CreateTask(ctx, userID, TaskInput{Title: "today too", PlannedDate: &day})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlanned, first.Status)
	assert.Equal(t, first.SortOrder+1, second.SortOrder)

	_, err = svc.CreateTask(ctx, userID, TaskInput{Title: " "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTaskService_Timer_AccumulatesMinutes(t *testing.T) {
	svc, _, clock, userID := newTaskService(t)
	ctx := context.Background()
	day := testutil.Date(2025, 3, 15)
	task, err := svc.CreateTask(ctx, userID, TaskInput{Title: "write report", PlannedDate: &day})
	require.NoError(t, err)

	started, err := svc.StartTimer(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, started.Status)

	clock.t = clock.t.Add(25*time.Minute + 30*time.Second)
	stopped, err := svc.StopTimer(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stopped.ActualMinutes)
	assert.Nil(t, stopped.TimerStartedAt)
	assert.Equal(t, model.StatusPlanned, stopped.Status)

	_, err = svc.StartTimer(ctx, userID, task.ID)
	require.NoError(t, err)
	clock.t = clock.t.Add(10 * time.Minute)
	done, err := svc.CompleteTask(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, done.Status)
	assert.Equal(t, 35, done.ActualMinutes)
	require.NotNil(t, done.CompletedAt)

	_, err = svc.StopTimer(ctx, userID, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTaskService_UpdateStatus_PlannedNeedsDate(t *testing.T) {
	svc, _, _, userID := newTaskService(t)
	ctx := context.Background()
	task, err := svc.CreateTask(ctx, userID, TaskInput{Title: "someday"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, userID, task.ID, model.StatusScheduled)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateStatus(ctx, userID, task.ID, "LATER")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateStatus(ctx, userID, 4242, model.StatusDone)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTaskService_RolloverIncomplete(t *testing.T) {
	svc, repos, _, userID := newTaskService(t)
	ctx := context.Background()
	today := testutil.Date(2025, 3, 15)
	tomorrow := testutil.Date(2025, 3, 16)
	estimate := 40

	open, err := svc.CreateTask(ctx, userID, TaskInput{Title: "open", PlannedDate: &today, EstimateMinutes: &estimate, Priority: model.PriorityHigh})
	require.NoError(t, err)
	finished, err := svc.CreateTask(ctx, userID, TaskInput{Title: "finished", PlannedDate: &today})
	require.NoError(t, err)
	_, err = svc.CompleteTask(ctx, userID, finished.ID)
	require.NoError(t, err)

	rolled, err := svc.RolloverIncomplete(ctx, userID, today, tomorrow)
	require.NoError(t, err)
	require.Len(t, rolled, 1)

	next := rolled[0]
	assert.Equal(t, "open", next.Title)
	assert.Equal(t, model.StatusPlanned, next.Status)
	assert.Equal(t, 1, next.RolloverCount)
	require.NotNil(t, next.RolledOverFromID)
	assert.Equal(t, open.ID, *next.RolledOverFromID)
	assert.Equal(t, 40, next.Estimate())
	assert.Equal(t, model.PriorityHigh, next.Priority)

	orig, err := repos.Tasks.FindByID(ctx, userID, open.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeferred, orig.Status)
	require.NotNil(t, orig.DeferredTo)
	assert.True(t, tomorrow.Equal(*orig.DeferredTo))

	_, err = svc.RolloverTask(ctx, userID, open.ID, tomorrow)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "deferred tasks do not roll twice")
}

func TestTaskService_DeferAndDelete(t *testing.T) {
	svc, _, _, userID := newTaskService(t)
	ctx := context.Background()
	today := testutil.Date(2025, 3, 15)
	task, err := svc.CreateTask(ctx, userID, TaskInput{Title: "call bank", PlannedDate: &today})
	require.NoError(t, err)

	deferred, err := svc.DeferTask(ctx, userID, task.ID, testutil.Date(2025, 3, 20), "  waiting on docs ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeferred, deferred.Status)
	assert.Equal(t, "waiting on docs", deferred.DeferReason)

	require.NoError(t, svc.DeleteTask(ctx, userID, task.ID))
	_, err = svc.GetTask(ctx, userID, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.DeleteTask(ctx, userID, task.ID), apperr.KindNotFound))
}

type recordingRemover struct {
	taskIDs []uint
	err     error
}

func (r *recordingRemover) ScheduleDelete(_ context.Context, _ uint, taskID uint) error {
	r.taskIDs = append(r.taskIDs, taskID)
	return r.err
}

func TestTaskService_DeleteQueuesEventRemoval(t *testing.T) {
	svc, _, _, userID := newTaskService(t)
	ctx := context.Background()
	remover := &recordingRemover{}
	svc.SetEventRemover(remover)

	task, err := svc.CreateTask(ctx, userID, TaskInput{Title: "standup"})
	require.NoError(t, err)
	keep, err := svc.CreateTask(ctx, userID, TaskInput{Title: "retro"})
	require.NoError(t, err)

	assert.True(t, apperr.Is(svc.DeleteTask(ctx, userID, 999), apperr.KindNotFound))
	assert.Empty(t, remover.taskIDs, "unknown task queues nothing")

	require.NoError(t, svc.DeleteTask(ctx, userID, task.ID))
	assert.Equal(t, []uint{task.ID}, remover.taskIDs)

	remover.err = apperr.Transient("enqueue", "redis", 0, errors.New("redis down"))
	assert.Error(t, svc.DeleteTask(ctx, userID, keep.ID))
	_, err = svc.GetTask(ctx, userID, keep.ID)
	assert.NoError(t, err, "task kept when removal could not be queued")
}
