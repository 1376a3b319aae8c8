package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dailyplan/internal/planning"
)

// Callback data is "plan:<action>[:<index>[:<delta>]]".
const (
	cbPlanPrefix = "plan:"

	actToggle   = "toggle"
	actEstimate = "est"
	actPriority = "prio"
	actAuto     = "auto"
	actNext     = "next"
	actBack     = "back"
	actCancel   = "cancel"

	estimateStep = 15
)

type planAction struct {
	name  string
	index int
	delta int
}

func parsePlanAction(data string) (planAction, bool) {
	if !strings.HasPrefix(data, cbPlanPrefix) {
		return planAction{}, false
	}
	parts := strings.Split(strings.TrimPrefix(data, cbPlanPrefix), ":")
	a := planAction{name: parts[0]}
	switch a.name {
	case actToggle, actPriority:
		if len(parts) != 2 {
			return planAction{}, false
		}
		i, err := strconv.Atoi(parts[1])
		if err != nil {
			return planAction{}, false
		}
		a.index = i
	case actEstimate:
		if len(parts) != 3 {
			return planAction{}, false
		}
		i, err := strconv.Atoi(parts[1])
		if err != nil {
			return planAction{}, false
		}
		d, err := strconv.Atoi(parts[2])
		if err != nil {
			return planAction{}, false
		}
		a.index, a.delta = i, d
	case actAuto, actNext, actBack, actCancel:
		if len(parts) != 1 {
			return planAction{}, false
		}
	default:
		return planAction{}, false
	}
	return a, true
}

func planData(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return cbPlanPrefix + strings.Join(s, ":")
}

func (b *Bot) session(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) dropSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

// handlePlan opens a fresh wizard for the chat, replacing any open one.
func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, err := b.commandDate(msg)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	s := planning.NewSession(user.ID, date)
	if err := s.Load(ctx, b.deps.Capacity, b.deps.Candidates); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if s.Len() == 0 {
		return b.sendText(msg.Chat.ID, "Бэклог пуст, планировать нечего. Добавь задачи и возвращайся.")
	}

	b.mu.Lock()
	b.sessions[msg.Chat.ID] = &chatSession{session: s}
	b.mu.Unlock()

	b.logger.Info("planning session opened",
		zap.Uint("user_id", user.ID),
		zap.Time("date", s.Date),
		zap.Int("candidates", s.Len()),
	)
	text, markup := renderStep(s)
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = markup
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleCancel(msg *tgbotapi.Message) error {
	if b.session(msg.Chat.ID) == nil {
		return b.sendText(msg.Chat.ID, "Нечего отменять.")
	}
	b.dropSession(msg.Chat.ID)
	return b.sendText(msg.Chat.ID, "⏪ Планирование отменено, ничего не сохранено.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	action, ok := parsePlanAction(cb.Data)
	if !ok {
		b.ack(cb, "")
		return nil
	}
	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID

	cs := b.session(chatID)
	if cs == nil {
		b.ack(cb, "Сессия устарела, начни заново: /plan")
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	s := cs.session

	if action.name == actCancel {
		b.dropSession(chatID)
		b.ack(cb, "")
		return b.edit(chatID, messageID, "⏪ Планирование отменено, ничего не сохранено.", nil)
	}

	notice, err := b.apply(ctx, s, action)
	if err != nil {
		b.ack(cb, "")
		return b.sendText(chatID, userMessage(err))
	}
	b.ack(cb, notice)

	if s.Committed() {
		b.dropSession(chatID)
		b.logger.Info("plan committed from chat", zap.Uint("user_id", s.UserID), zap.Int("tasks", len(s.Selected())))
		return b.edit(chatID, messageID, renderCommitted(s), nil)
	}
	text, markup := renderStep(s)
	return b.edit(chatID, messageID, text, &markup)
}

// apply runs one wizard action. The returned notice is shown as a toast.
func (b *Bot) apply(ctx context.Context, s *planning.Session, a planAction) (string, error) {
	switch a.name {
	case actToggle:
		return "", s.Toggle(a.index)
	case actEstimate:
		return "", s.AdjustEstimate(a.index, a.delta)
	case actPriority:
		return "", s.CyclePriority(a.index)
	case actAuto:
		s.SetAutoSchedule(!s.AutoSchedule())
		return "", nil
	case actBack:
		s.Back()
		return "", nil
	case actNext:
		if s.Step() == planning.StepPick && len(s.Selected()) == 0 {
			return "Выбери хотя бы одну задачу", nil
		}
		if _, err := s.Next(ctx, b.deps.Plans); err != nil {
			return "", err
		}
		return "", nil
	}
	return "", nil
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	_, err := b.api.Send(edit)
	return err
}
