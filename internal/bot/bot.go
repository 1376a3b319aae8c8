package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/planning"
	"dailyplan/internal/repository"
	"dailyplan/internal/service"
)

// sender is the part of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the services behind the bot commands.
type Deps struct {
	Users      *repository.UserRepository
	Capacity   planning.CapacityReader
	Candidates planning.CandidateLister
	Plans      planning.Committer
	Summaries  *service.SummaryService
}

// chatSession guards one planning wizard. Sessions of different chats are
// independent.
type chatSession struct {
	mu      sync.Mutex
	session *planning.Session
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      sender
	updates  *tgbotapi.BotAPI
	deps     Deps
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
	sessions map[int64]*chatSession
}

func New(token string, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	logger.Info("bot authorized", zap.String("account", api.Self.UserName))

	b := newBot(api, deps, logger)
	b.updates = api
	return b, nil
}

func newBot(api sender, deps Deps, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		deps:     deps,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int64]*chatSession),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.updates.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Error("handle callback", zap.Error(err))
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", zap.Error(err))
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Я понимаю только команды. Набери /plan, чтобы спланировать день, или /help.")
	}

	b.logger.Info("command",
		zap.Int64("telegram_id", msg.From.ID),
		zap.String("command", msg.Command()),
		zap.String("args", msg.CommandArguments()),
	)
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(ctx, msg)
	case "plan":
		return b.handlePlan(ctx, msg)
	case "cancel":
		return b.handleCancel(msg)
	case "capacity":
		return b.handleCapacity(ctx, msg)
	case "today", "report":
		return b.handleToday(ctx, msg)
	case "shutdown":
		return b.handleShutdown(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	return b.sendText(msg.Chat.ID, helpText(name))
}

func (b *Bot) handleCapacity(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, err := b.commandDate(msg)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	capacity, err := b.deps.Capacity.Compute(ctx, user.ID, date)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, renderCapacity(capacity))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.deps.Summaries.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleShutdown(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, err := b.commandDate(msg)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	_, summary, err := b.deps.Summaries.Shutdown(ctx, user.ID, date)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, renderShutdown(date, summary))
}

// SendDailyReports sends the day summary to every Telegram user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.deps.Users.ListWithTelegram(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		log := b.logger.With(zap.Uint("user_id", user.ID))
		text, err := b.deps.Summaries.DailySummary(ctx, user, now)
		if err != nil {
			log.Warn("build summary", zap.Error(err))
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			log.Warn("send summary", zap.Error(err))
		}
	}
	return nil
}

// commandDate parses an optional YYYY-MM-DD argument, defaulting to today.
func (b *Bot) commandDate(msg *tgbotapi.Message) (time.Time, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return model.DateOf(b.now()), nil
	}
	date, err := model.ParseDate(args)
	if err != nil {
		return time.Time{}, apperr.Validation("parse date", "Не могу распознать дату, нужен формат 2025-11-30.")
	}
	return date, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.Warn("callback ack", zap.Error(err))
	}
}

// userMessage turns an error into text safe to show in chat.
func userMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation:
			return "⚠️ " + escape(appErr.Message)
		case apperr.KindNotFound:
			return "Не нашёл: " + escape(appErr.Message)
		case apperr.KindNotConnected:
			return "Календарь не подключён."
		case apperr.KindTransient:
			return "Сервис временно недоступен, попробуй позже."
		}
	}
	return "Что-то пошло не так, попробуй ещё раз."
}

func escape(s string) string {
	return html.EscapeString(s)
}
