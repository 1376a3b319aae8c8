package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("07:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 7 * * *", spec)

	_, err = buildDailySpec("25:00")
	assert.Error(t, err)
}

func TestSchedulerService_ScheduleInterval(t *testing.T) {
	s := NewSchedulerService(time.UTC, zap.NewNop())
	noop := func(context.Context) error { return nil }

	_, err := s.ScheduleInterval("zero", 0, noop)
	assert.Error(t, err)

	id, err := s.ScheduleInterval("reports", 5*time.Hour, noop)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestSchedulerService_WrapRecoversAndPassesDeadline(t *testing.T) {
	s := NewSchedulerService(time.UTC, zap.NewNop())

	var hadDeadline bool
	s.wrap("check", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return errors.New("logged, not returned")
	})()
	assert.True(t, hadDeadline)

	assert.NotPanics(t, s.wrap("boom", func(context.Context) error { panic("boom") }))
}
