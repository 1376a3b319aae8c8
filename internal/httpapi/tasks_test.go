package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
	"dailyplan/internal/service"
	"dailyplan/internal/testutil"
)

func newTaskFixture(t *testing.T) (*fixture, uint, uint) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	tasks := service.NewTaskService(repos.Tasks, repository.NewTransactor(db))
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")

	f := &fixture{}
	f.router = NewRouter(Deps{
		Tasks:     tasks,
		JWTSecret: testSecret,
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return testNow },
	})
	return f, owner.ID, other.ID
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) model.Task {
	t.Helper()
	var task model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	return task
}

func TestTasks_CreateAndList(t *testing.T) {
	f, userID, _ := newTaskFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"title":"write report","priority":"high","plannedDate":"2025-03-15","estimateMinutes":45}`, userID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decodeTask(t, rec)
	assert.Equal(t, model.StatusPlanned, task.Status)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, 45, task.Estimate())

	rec = f.do(t, http.MethodPost, "/api/tasks", `{"title":"someday"}`, userID)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StatusBacklog, decodeTask(t, rec).Status)

	rec = f.do(t, http.MethodGet, "/api/tasks", "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1, "date defaults to today and backlog is not listed")
	assert.Equal(t, "write report", list.Tasks[0].Title)
}

func TestTasks_CreateValidation(t *testing.T) {
	f, userID, _ := newTaskFixture(t)

	for name, body := range map[string]string{
		"empty title":       `{"title":"  "}`,
		"bad date":          `{"title":"x","plannedDate":"15.03.2025"}`,
		"negative estimate": `{"title":"x","estimateMinutes":-5}`,
		"unknown priority":  `{"title":"x","priority":"whenever"}`,
		"not json":          `{`,
	} {
		rec := f.do(t, http.MethodPost, "/api/tasks", body, userID)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestTasks_Lifecycle(t *testing.T) {
	f, userID, otherID := newTaskFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"title":"focus","plannedDate":"2025-03-15"}`, userID)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeTask(t, rec).ID
	path := func(suffix string) string { return fmt.Sprintf("/api/tasks/%d%s", id, suffix) }

	rec = f.do(t, http.MethodPost, path("/timer/start"), "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusInProgress, decodeTask(t, rec).Status)

	rec = f.do(t, http.MethodPost, path("/complete"), "", otherID)
	assert.Equal(t, http.StatusNotFound, rec.Code, "tasks are scoped to their owner")

	rec = f.do(t, http.MethodPost, path("/complete"), "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decodeTask(t, rec)
	assert.Equal(t, model.StatusDone, done.Status)
	assert.Nil(t, done.TimerStartedAt)
	assert.NotNil(t, done.CompletedAt)

	rec = f.do(t, http.MethodPost, path("/defer"), `{"to":"2025-03-16"}`, userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "closed tasks cannot be deferred")

	rec = f.do(t, http.MethodPatch, path("/status"), `{"status":"nope"}`, userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, path(""), "", userID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, path(""), "", userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks/abc/complete", "", userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasks_DeferDefaultsToTomorrow(t *testing.T) {
	f, userID, _ := newTaskFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tasks", `{"title":"call bank","plannedDate":"2025-03-15"}`, userID)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeTask(t, rec).ID

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/defer", id), "", userID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deferred := decodeTask(t, rec)
	assert.Equal(t, model.StatusDeferred, deferred.Status)
	require.NotNil(t, deferred.DeferredTo)
	assert.Equal(t, "2025-03-16", deferred.DeferredTo.UTC().Format(model.DateLayout))
}

func TestTasks_RolloverDay(t *testing.T) {
	f, userID, _ := newTaskFixture(t)

	for _, title := range []string{"one", "two"} {
		rec := f.do(t, http.MethodPost, "/api/tasks", `{"title":"`+title+`","plannedDate":"2025-03-15"}`, userID)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/days/2025-03-15/rollover", `{"to":"2025-03-15"}`, userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/days/2025-03-15/rollover", `{"to":"2025-03-17"}`, userID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Rolled []model.Task `json:"rolled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rolled, 2)
	for _, task := range body.Rolled {
		assert.Equal(t, 1, task.RolloverCount)
		assert.NotNil(t, task.RolledOverFromID)
	}

	rec = f.do(t, http.MethodGet, "/api/tasks?date=2025-03-17", "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 2)
}
