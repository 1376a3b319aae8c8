package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dailyplan/internal/config"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, logger *zap.Logger) *SchedulerService {
	return &SchedulerService{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(name, timeStr string, job func(ctx context.Context) error) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, s.wrap(name, job))
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(name string, interval time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	// Convert to cron spec: every N seconds.
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, s.wrap(name, job))
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SchedulerService) wrap(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
			}
		}()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

func buildDailySpec(timeStr string) (string, error) {
	offset, err := config.ParseClock(timeStr)
	if err != nil {
		return "", err
	}
	hour := int(offset / time.Hour)
	minute := int((offset % time.Hour) / time.Minute)
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
