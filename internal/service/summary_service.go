package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// SummaryService builds day reports and records the end-of-day shutdown.
type SummaryService struct {
	taskRepo *repository.TaskRepository
	plans    *repository.DailyPlanRepository
	capacity *CapacityService
	now      func() time.Time
}

func NewSummaryService(taskRepo *repository.TaskRepository, plans *repository.DailyPlanRepository, capacity *CapacityService) *SummaryService {
	return &SummaryService{taskRepo: taskRepo, plans: plans, capacity: capacity, now: time.Now}
}

// Summarize computes completion counts and estimate accuracy for the day's tasks.
// Accuracy compares estimates against actuals of DONE tasks that recorded time.
func Summarize(tasks []model.Task) model.DaySummary {
	var sum model.DaySummary
	estimatedDone, actualDone := 0, 0
	for _, task := range tasks {
		if task.Status == model.StatusCanceled {
			continue
		}
		sum.Total++
		sum.EstimatedMinutes += task.Estimate()
		sum.ActualMinutes += task.ActualMinutes
		switch task.Status {
		case model.StatusDone:
			sum.Completed++
			if task.ActualMinutes > 0 && task.Estimate() > 0 {
				estimatedDone += task.Estimate()
				actualDone += task.ActualMinutes
			}
		case model.StatusDeferred:
			sum.Deferred++
		default:
			sum.Incomplete++
		}
	}
	if sum.Total > 0 {
		sum.CompletionPercent = sum.Completed * 100 / sum.Total
	}
	if actualDone > 0 {
		sum.AccuracyPercent = estimatedDone * 100 / actualDone
	}
	return sum
}

// Shutdown closes the day: it stores the summary on the daily plan, creating
// the plan with the current capacity snapshot if it does not exist yet.
func (s *SummaryService) Shutdown(ctx context.Context, userID uint, date time.Time) (*model.DailyPlan, model.DaySummary, error) {
	tasks, err := s.taskRepo.ListByDate(ctx, userID, date)
	if err != nil {
		return nil, model.DaySummary{}, err
	}
	summary := Summarize(tasks)
	blob, err := json.Marshal(summary)
	if err != nil {
		return nil, summary, fmt.Errorf("encode summary: %w", err)
	}
	capacity, err := s.capacity.DailyCapacity(ctx, userID)
	if err != nil {
		return nil, summary, err
	}
	plan, err := s.plans.UpsertSummary(ctx, userID, date, capacity, string(blob), s.now().UTC())
	if err != nil {
		return nil, summary, err
	}
	return plan, summary, nil
}

// DailySummary renders the user's plan for now's date as Telegram HTML.
func (s *SummaryService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	date := model.DateOf(now)
	tasks, err := s.taskRepo.ListByDate(ctx, user.ID, date)
	if err != nil {
		return "", err
	}
	capacity, err := s.capacity.Compute(ctx, user.ID, date)
	if err != nil {
		return "", err
	}

	var open, done []model.Task
	for _, task := range tasks {
		switch task.Status {
		case model.StatusDone:
			done = append(done, task)
		case model.StatusPlanned, model.StatusScheduled, model.StatusInProgress:
			open = append(open, task)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>План на день</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))
	builder.WriteString(fmt.Sprintf("⏱ Занято %s из %s", FormatMinutes(capacity.UsedMinutes), FormatMinutes(capacity.TotalMinutes)))
	if capacity.AvailableMinutes < 0 {
		builder.WriteString(fmt.Sprintf(" — <b>перегруз на %s</b>", FormatMinutes(-capacity.AvailableMinutes)))
	}
	builder.WriteString("\n\n🔥 <b>Впереди</b>\n")
	if len(open) == 0 {
		builder.WriteString("— на сегодня ничего не запланировано\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task, now))
		}
	}

	if len(done) > 0 {
		builder.WriteString("\n✅ <b>Сделано</b>\n")
		for _, task := range done {
			builder.WriteString(fmt.Sprintf("✔️ %s\n", html.EscapeString(strings.TrimSpace(task.Title))))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.Status == model.StatusInProgress:
		icon = "▶️"
	case task.Priority == model.PriorityUrgent || task.Priority == model.PriorityHigh:
		icon = "🔴"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if task.ScheduledStart != nil && task.ScheduledEnd != nil {
		sb.WriteString(fmt.Sprintf("\n   🕘 %s–%s",
			task.ScheduledStart.In(now.Location()).Format("15:04"),
			task.ScheduledEnd.In(now.Location()).Format("15:04")))
	}
	if task.EstimateMinutes != nil {
		sb.WriteString(fmt.Sprintf("\n   ⏳ %s", FormatMinutes(*task.EstimateMinutes)))
	}
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s — <b>просрочено</b>", d.Format(model.DateLayout)))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s", d.Format(model.DateLayout)))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}

// FormatMinutes renders a duration in minutes as Russian hours and minutes.
func FormatMinutes(total int) string {
	if total < 60 {
		return fmt.Sprintf("%d мин", total)
	}
	if total%60 == 0 {
		return fmt.Sprintf("%d ч", total/60)
	}
	return fmt.Sprintf("%d ч %d мин", total/60, total%60)
}
