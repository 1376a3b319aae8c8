package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
	"dailyplan/internal/testutil"
)

type stubSource struct {
	name       model.CandidateSource
	candidates []model.PlanningCandidate
	err        error
}

func (s stubSource) Name() model.CandidateSource { return s.name }

func (s stubSource) Candidates(context.Context, uint, time.Time) ([]model.PlanningCandidate, error) {
	return s.candidates, s.err
}

func TestSuggestionService_Suggest_Defaults(t *testing.T) {
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSuggestionService(repos.Tasks, zap.NewNop())
	user := testutil.CreateUser(t, db, "a@example.com")
	day := testutil.Date(2025, 3, 15)

	urgent := testutil.CreateTask(t, db, user.ID, "urgent", testutil.WithPriority(model.PriorityUrgent), testutil.WithEstimate(90))
	plain := testutil.CreateTask(t, db, user.ID, "plain", testutil.WithPriority(model.PriorityLow))

	candidates, err := svc.Suggest(context.Background(), user.ID, day)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, model.SourceBacklog, candidates[0].Source)
	assert.Equal(t, fmt.Sprint(urgent.ID), candidates[0].SourceID)
	require.NotNil(t, candidates[0].TaskID)
	assert.Equal(t, urgent.ID, *candidates[0].TaskID)
	assert.Equal(t, 90, candidates[0].EstimateMinutes)
	assert.Equal(t, model.CandidateHigh, candidates[0].Priority)

	assert.Equal(t, plain.ID, *candidates[1].TaskID)
	assert.Equal(t, model.DefaultCandidateEstimate, candidates[1].EstimateMinutes)
	assert.Equal(t, model.CandidateLow, candidates[1].Priority)
}

func TestSuggestionService_Suggest_CapsBacklog(t *testing.T) {
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewSuggestionService(repos.Tasks, zap.NewNop())
	user := testutil.CreateUser(t, db, "a@example.com")

	for i := 0; i < MaxBacklogCandidates+5; i++ {
		testutil.CreateTask(t, db, user.ID, fmt.Sprintf("task %d", i))
	}

	candidates, err := svc.Suggest(context.Background(), user.ID, testutil.Date(2025, 3, 15))
	require.NoError(t, err)
	assert.Len(t, candidates, MaxBacklogCandidates)
}

func TestSuggestionService_Suggest_NormalizesExternalSources(t *testing.T) {
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	gmail := stubSource{
		name: model.SourceGmail,
		candidates: []model.PlanningCandidate{
			{SourceID: "msg-1", Title: "  Reply to Ana  "},
		},
	}
	broken := stubSource{name: model.SourceNotion, err: errors.New("notion down")}
	svc := NewSuggestionService(repos.Tasks, zap.NewNop(), gmail, broken)
	user := testutil.CreateUser(t, db, "a@example.com")

	candidates, err := svc.Suggest(context.Background(), user.ID, testutil.Date(2025, 3, 15))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.SourceGmail, candidates[0].Source)
	assert.Equal(t, "Reply to Ana", candidates[0].Title)
	assert.Equal(t, model.DefaultCandidateEstimate, candidates[0].EstimateMinutes)
	assert.Equal(t, model.CandidateMedium, candidates[0].Priority)
	assert.Nil(t, candidates[0].TaskID)
}
