package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dailyplan/internal/model"
	"dailyplan/internal/planning"
	"dailyplan/internal/service"
)

var stepTitles = map[planning.Step]string{
	planning.StepPick:       "выбери задачи",
	planning.StepEstimate:   "оцени время",
	planning.StepPrioritize: "расставь приоритеты",
	planning.StepSchedule:   "расписание",
	planning.StepSummary:    "итог",
}

func priorityIcon(p model.CandidatePriority) string {
	switch p {
	case model.CandidateHigh:
		return "🔴"
	case model.CandidateMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

func helpText(name string) string {
	return fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я помогу спланировать день под твою ёмкость.</b>\n\nКоманды:\n"+
			"• /plan [ГГГГ-ММ-ДД] — спланировать день\n"+
			"• /capacity [ГГГГ-ММ-ДД] — сколько времени свободно\n"+
			"• /today — план на сегодня\n"+
			"• /shutdown [ГГГГ-ММ-ДД] — закрыть день и подвести итог\n"+
			"• /cancel — отменить планирование",
		escape(name),
	)
}

func capacityLine(total, planned int) string {
	remaining := total - planned
	line := fmt.Sprintf("⏱ Доступно %s, выбрано %s", service.FormatMinutes(total), service.FormatMinutes(planned))
	if remaining < 0 {
		return line + fmt.Sprintf(", <b>перегруз на %s</b>", service.FormatMinutes(-remaining))
	}
	return line + fmt.Sprintf(", осталось %s", service.FormatMinutes(remaining))
}

func renderCapacity(c service.Capacity) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", c.Date.Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("Ёмкость дня: %s\n", service.FormatMinutes(c.TotalMinutes)))
	sb.WriteString(fmt.Sprintf("Уже запланировано: %s\n", service.FormatMinutes(c.UsedMinutes)))
	if c.AvailableMinutes < 0 {
		sb.WriteString(fmt.Sprintf("<b>Перегруз на %s</b>", service.FormatMinutes(-c.AvailableMinutes)))
	} else {
		sb.WriteString(fmt.Sprintf("Свободно: %s", service.FormatMinutes(c.AvailableMinutes)))
	}
	return sb.String()
}

// renderStep draws the current wizard page and its keyboard.
func renderStep(s *planning.Session) (string, tgbotapi.InlineKeyboardMarkup) {
	step := s.Step()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 <b>План на %s</b>\nШаг %d из %d: %s\n",
		s.Date.Format("02.01.2006"), int(step)+1, int(planning.StepSummary)+1, stepTitles[step]))
	sb.WriteString(capacityLine(s.Capacity().AvailableMinutes, s.TotalPlannedMinutes()))
	sb.WriteString("\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	entries := s.Entries()
	switch step {
	case planning.StepPick:
		for i, e := range entries {
			mark := "⬜"
			if e.Selected {
				mark = "☑️"
			}
			label := fmt.Sprintf("%s %s · %s", mark, shortTitle(e.Candidate.Title, 28), service.FormatMinutes(e.EstimateMinutes))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, planData(actToggle, i)),
			))
		}
		sb.WriteString("Отметь задачи, которые берёшь в работу.")
	case planning.StepEstimate:
		for i, e := range entries {
			if !e.Selected {
				continue
			}
			sb.WriteString(fmt.Sprintf("• %s: %s\n", escape(e.Candidate.Title), service.FormatMinutes(e.EstimateMinutes)))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("−15", planData(actEstimate, i, -estimateStep)),
				tgbotapi.NewInlineKeyboardButtonData(shortTitle(e.Candidate.Title, 20), planData(actEstimate, i, 0)),
				tgbotapi.NewInlineKeyboardButtonData("+15", planData(actEstimate, i, estimateStep)),
			))
		}
	case planning.StepPrioritize:
		for i, e := range entries {
			if !e.Selected {
				continue
			}
			label := fmt.Sprintf("%s %s", priorityIcon(e.Priority), shortTitle(e.Candidate.Title, 28))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, planData(actPriority, i)),
			))
		}
		sb.WriteString("Нажми на задачу, чтобы сменить приоритет.\n\n")
		writeSorted(&sb, s)
	case planning.StepSchedule:
		if s.AutoSchedule() {
			sb.WriteString("Задачи будут расставлены по времени подряд, начиная с начала дня, и отправлены в календарь.")
		} else {
			sb.WriteString("Задачи попадут в план дня без времени.")
		}
		label := "⬜ Расставить по времени"
		if s.AutoSchedule() {
			label = "☑️ Расставить по времени"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, planData(actAuto)),
		))
	case planning.StepSummary:
		writeSorted(&sb, s)
		if s.IsOverCapacity() {
			sb.WriteString("\n⚠️ План больше ёмкости дня. Можно сохранить, но подумай, что отложить.")
		}
	}

	rows = append(rows, navRow(step))
	return strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func writeSorted(sb *strings.Builder, s *planning.Session) {
	for _, e := range s.SortedByPriority() {
		sb.WriteString(fmt.Sprintf("%s %s · %s\n", priorityIcon(e.Priority), escape(e.Candidate.Title), service.FormatMinutes(e.EstimateMinutes)))
	}
}

func navRow(step planning.Step) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if step != planning.StepPick {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", planData(actBack)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Отмена", planData(actCancel)))
	if step == planning.StepSummary {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Сохранить", planData(actNext)))
	} else {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Далее ➡️", planData(actNext)))
	}
	return row
}

func renderCommitted(s *planning.Session) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ <b>План на %s сохранён</b>\n", s.Date.Format("02.01.2006")))
	writeSorted(&sb, s)
	sb.WriteString(capacityLine(s.Capacity().AvailableMinutes, s.TotalPlannedMinutes()))
	if s.AutoSchedule() {
		sb.WriteString("\n🕘 Задачи расставлены по времени.")
	}
	return strings.TrimSpace(sb.String())
}

func renderShutdown(date time.Time, sum model.DaySummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🌙 <b>День %s закрыт</b>\n", date.Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("Сделано %d из %d (%d%%)\n", sum.Completed, sum.Total, sum.CompletionPercent))
	if sum.Deferred > 0 {
		sb.WriteString(fmt.Sprintf("Отложено: %d\n", sum.Deferred))
	}
	if sum.Incomplete > 0 {
		sb.WriteString(fmt.Sprintf("Не завершено: %d\n", sum.Incomplete))
	}
	sb.WriteString(fmt.Sprintf("Оценка %s, факт %s", service.FormatMinutes(sum.EstimatedMinutes), service.FormatMinutes(sum.ActualMinutes)))
	if sum.ActualMinutes > 0 {
		sb.WriteString(fmt.Sprintf(" (точность %d%%)", sum.AccuracyPercent))
	}
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-1]) + "…"
}
