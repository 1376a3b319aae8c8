package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
	"dailyplan/internal/testutil"
)

func TestTaskRepository_SumCommittedEstimates_OnlyCommittedStatuses(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@example.com")
	day := testutil.Date(2025, 3, 15)

	testutil.CreateTask(t, db, user.ID, "planned", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day), testutil.WithEstimate(60))
	testutil.CreateTask(t, db, user.ID, "scheduled", testutil.WithStatus(model.StatusScheduled), testutil.WithPlannedDate(day), testutil.WithEstimate(45))
	testutil.CreateTask(t, db, user.ID, "running", testutil.WithStatus(model.StatusInProgress), testutil.WithPlannedDate(day), testutil.WithEstimate(30))
	testutil.CreateTask(t, db, user.ID, "no estimate", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day))
	testutil.CreateTask(t, db, user.ID, "done", testutil.WithStatus(model.StatusDone), testutil.WithPlannedDate(day), testutil.WithEstimate(90))
	testutil.CreateTask(t, db, user.ID, "deferred", testutil.WithStatus(model.StatusDeferred), testutil.WithPlannedDate(day), testutil.WithEstimate(90))
	testutil.CreateTask(t, db, user.ID, "other day", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day.AddDate(0, 0, 1)), testutil.WithEstimate(90))

	other := testutil.CreateUser(t, db, "b@example.com")
	testutil.CreateTask(t, db, other.ID, "someone else", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day), testutil.WithEstimate(90))

	used, err := repo.SumCommittedEstimates(ctx, user.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 135, used)
}

func TestTaskRepository_ListBacklogCandidates_FilterAndOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@example.com")
	day := testutil.Date(2025, 3, 15)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	testutil.CreateTask(t, db, user.ID, "old medium", testutil.WithCreatedAt(base))
	testutil.CreateTask(t, db, user.ID, "new urgent", testutil.WithPriority(model.PriorityUrgent), testutil.WithCreatedAt(base.Add(3*time.Hour)))
	testutil.CreateTask(t, db, user.ID, "older high", testutil.WithPriority(model.PriorityHigh), testutil.WithCreatedAt(base.Add(time.Hour)))
	testutil.CreateTask(t, db, user.ID, "newer high", testutil.WithPriority(model.PriorityHigh), testutil.WithCreatedAt(base.Add(2*time.Hour)))
	testutil.CreateTask(t, db, user.ID, "neglected", testutil.WithPriority(model.PriorityLow), testutil.WithPlannedDate(day.AddDate(0, 0, -3)), testutil.WithCreatedAt(base))
	testutil.CreateTask(t, db, user.ID, "future backlog", testutil.WithPlannedDate(day), testutil.WithCreatedAt(base))
	testutil.CreateTask(t, db, user.ID, "planned", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day.AddDate(0, 0, -1)))

	tasks, err := repo.ListBacklogCandidates(ctx, user.ID, day, 20)
	require.NoError(t, err)

	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"new urgent", "older high", "newer high", "old medium", "neglected"}, titles)

	limited, err := repo.ListBacklogCandidates(ctx, user.ID, day, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestTaskRepository_NextSortOrder_PerLane(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@example.com")
	day := testutil.Date(2025, 3, 15)

	next, err := repo.NextSortOrder(ctx, user.ID, &day, model.StatusPlanned)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	task := testutil.NewTestTask(user.ID, "first", testutil.WithStatus(model.StatusPlanned), testutil.WithPlannedDate(day))
	task.SortOrder = 4
	require.NoError(t, repo.Create(ctx, task))

	next, err = repo.NextSortOrder(ctx, user.ID, &day, model.StatusPlanned)
	require.NoError(t, err)
	assert.Equal(t, 5, next)

	next, err = repo.NextSortOrder(ctx, user.ID, &day, model.StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, 0, next, "sort order is independent per status lane")
}

func TestTaskRepository_FindByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewTaskRepository(db)

	_, err := repo.FindByID(context.Background(), 1, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := testutil.NewTestDB(t)
	tx := repository.NewTransactor(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@example.com")

	err := tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Tasks.Create(ctx, testutil.NewTestTask(user.ID, "dangling")); err != nil {
			return err
		}
		return apperr.Persistence("second write", assert.AnError)
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}
