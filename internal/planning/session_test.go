package planning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/service"
)

type fakeCapacity struct {
	capacity service.Capacity
	err      error
}

func (f fakeCapacity) Compute(context.Context, uint, time.Time) (service.Capacity, error) {
	return f.capacity, f.err
}

type fakeCandidates []model.PlanningCandidate

func (f fakeCandidates) Suggest(context.Context, uint, time.Time) ([]model.PlanningCandidate, error) {
	return f, nil
}

type fakeCommitter struct {
	calls []service.CommitInput
	err   error
}

func (f *fakeCommitter) Commit(_ context.Context, in service.CommitInput) (service.CommitResult, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return service.CommitResult{}, f.err
	}
	return service.CommitResult{CreatedTasks: len(in.Selections)}, nil
}

func candidate(id string, estimate int, p model.CandidatePriority) model.PlanningCandidate {
	return model.PlanningCandidate{Source: model.SourceBacklog, SourceID: id, Title: "task " + id, EstimateMinutes: estimate, Priority: p}
}

func loadedSession(t *testing.T, available int, cands ...model.PlanningCandidate) *Session {
	t.Helper()
	s := NewSession(7, time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC))
	caps := fakeCapacity{capacity: service.Capacity{TotalMinutes: available, AvailableMinutes: available}}
	require.NoError(t, s.Load(context.Background(), caps, fakeCandidates(cands)))
	return s
}

func TestSession_Load_StartsOnPickWithDefaults(t *testing.T) {
	s := loadedSession(t, 360, candidate("1", 30, model.CandidateHigh), candidate("2", 45, model.CandidateLow))

	assert.Equal(t, StepPick, s.Step())
	assert.True(t, s.AutoSchedule())
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), s.Date)
	assert.Equal(t, 2, s.Len())
	assert.Empty(t, s.Selected())
	assert.Equal(t, 360, s.RemainingCapacity())
}

func TestSession_Load_PropagatesErrors(t *testing.T) {
	s := NewSession(7, time.Now())
	boom := errors.New("db down")
	err := s.Load(context.Background(), fakeCapacity{err: boom}, fakeCandidates(nil))
	assert.ErrorIs(t, err, boom)
}

func TestSession_EditsAreIsolated(t *testing.T) {
	s := loadedSession(t, 360,
		candidate("1", 30, model.CandidateLow),
		candidate("2", 45, model.CandidateMedium),
		candidate("3", 60, model.CandidateHigh),
	)
	before := s.Entries()

	require.NoError(t, s.Toggle(0))
	require.NoError(t, s.SetEstimate(0, 90))
	require.NoError(t, s.SetPriority(0, model.CandidateHigh))
	require.NoError(t, s.Toggle(2))

	after := s.Entries()
	require.Len(t, after, 3)
	assert.Equal(t, before[1], after[1])
	for i := range after {
		assert.Equal(t, before[i].Candidate, after[i].Candidate, "candidate %d", i)
	}
	assert.Equal(t, 90, after[0].EstimateMinutes)
	assert.Equal(t, model.CandidateHigh, after[0].Priority)

	sorted := s.SortedByPriority()
	require.Len(t, sorted, 2)
	assert.Equal(t, "1", sorted[0].Candidate.SourceID, "stable within the high tier")
	sorted[0].EstimateMinutes = 1
	assert.Equal(t, after, s.Entries(), "display sort works on a copy")
}

func TestSession_OverCapacity(t *testing.T) {
	s := loadedSession(t, 360,
		candidate("1", 180, model.CandidateHigh),
		candidate("2", 120, model.CandidateMedium),
		candidate("3", 120, model.CandidateLow),
	)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Toggle(i))
	}

	assert.Equal(t, 420, s.TotalPlannedMinutes())
	assert.Equal(t, -60, s.RemainingCapacity())
	assert.True(t, s.IsOverCapacity())

	require.NoError(t, s.SetEstimate(2, 60))
	assert.Equal(t, 0, s.RemainingCapacity())
	assert.False(t, s.IsOverCapacity())
}

func TestSession_Navigation(t *testing.T) {
	s := loadedSession(t, 360, candidate("1", 30, model.CandidateLow), candidate("2", 30, model.CandidateLow))
	committer := &fakeCommitter{}
	ctx := context.Background()

	_, err := s.Next(ctx, committer)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "pick requires a selection")
	assert.Equal(t, StepPick, s.Step())
	assert.False(t, s.Back())

	require.NoError(t, s.Toggle(1))
	_, err = s.Next(ctx, committer)
	require.NoError(t, err)
	assert.Equal(t, StepEstimate, s.Step())

	require.NoError(t, s.AdjustEstimate(1, 15))
	_, err = s.Next(ctx, committer)
	require.NoError(t, err)
	require.NoError(t, s.CyclePriority(1))
	_, err = s.Next(ctx, committer)
	require.NoError(t, err)
	assert.Equal(t, StepSchedule, s.Step())

	assert.True(t, s.Back())
	assert.True(t, s.Back())
	assert.Equal(t, StepEstimate, s.Step())
	entry, ok := s.Entry(1)
	require.True(t, ok)
	assert.Equal(t, 45, entry.EstimateMinutes, "back keeps edits")
	assert.Equal(t, model.CandidateMedium, entry.Priority)

	for s.Step() != StepSummary {
		_, err = s.Next(ctx, committer)
		require.NoError(t, err)
	}
	assert.Empty(t, committer.calls, "nothing commits before summary")

	s.SetAutoSchedule(false)
	result, err := s.Next(ctx, committer)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.CreatedTasks)
	assert.True(t, s.Committed())

	require.Len(t, committer.calls, 1)
	in := committer.calls[0]
	assert.Equal(t, uint(7), in.UserID)
	assert.False(t, in.AutoSchedule)
	require.Len(t, in.Selections, 1)
	assert.Equal(t, "2", in.Selections[0].SourceID)
	assert.Equal(t, 45, in.Selections[0].EstimateMinutes)
	assert.Equal(t, model.CandidateMedium, in.Selections[0].Priority)

	_, err = s.Next(ctx, committer)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "second commit refused")
	assert.True(t, apperr.Is(s.Toggle(0), apperr.KindValidation))
}

func TestSession_FailedCommitCanBeRetried(t *testing.T) {
	s := loadedSession(t, 360, candidate("1", 30, model.CandidateLow))
	committer := &fakeCommitter{err: apperr.Persistence("commit", errors.New("locked"))}
	ctx := context.Background()

	require.NoError(t, s.Toggle(0))
	for s.Step() != StepSummary {
		_, err := s.Next(ctx, committer)
		require.NoError(t, err)
	}

	_, err := s.Next(ctx, committer)
	require.Error(t, err)
	assert.False(t, s.Committed())
	assert.Equal(t, StepSummary, s.Step())

	committer.err = nil
	result, err := s.Next(ctx, committer)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedTasks)
}

func TestSession_UnknownEntry(t *testing.T) {
	s := loadedSession(t, 360, candidate("1", 30, model.CandidateLow))
	assert.True(t, apperr.Is(s.Toggle(5), apperr.KindNotFound))
	assert.True(t, apperr.Is(s.SetPriority(0, "urgent"), apperr.KindValidation))
	assert.True(t, apperr.Is(s.SetEstimate(0, -1), apperr.KindValidation))
	_, ok := s.Entry(-1)
	assert.False(t, ok)
}
