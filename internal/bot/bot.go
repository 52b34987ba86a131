package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

// Engine is the part of the counter engine the bot dispatches to.
type Engine interface {
	RegisterUser(ctx context.Context, userID, name string) (*model.User, error)
	AddTask(ctx context.Context, userID, name string) (*model.Task, error)
	CompleteTask(ctx context.Context, userID string, taskID uint) (service.CompleteResult, error)
	DeleteTask(ctx context.Context, userID string, taskID uint) (*model.Task, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.User, error)
	GetTasksForUser(ctx context.Context, userID string) ([]model.Task, error)
}

// Reporter renders a user's summary.
type Reporter interface {
	Summary(ctx context.Context, user model.User, now time.Time) (string, error)
}

// sender is the subset of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot maps Telegram commands and button presses onto engine operations.
// Telegram users are registered under their numeric Telegram id.
type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	engine   Engine
	reports  Reporter
	log      *slog.Logger
	awaiting map[int64]bool
	pending  map[int64]uint
	mu       sync.Mutex
}

func New(token string, engine Engine, reports Reporter, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, engine, reports, log)
	b.api = api
	b.log.Info("bot authorized", slog.String("account", api.Self.UserName))
	return b, nil
}

func newBot(out sender, engine Engine, reports Reporter, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		out:      out,
		engine:   engine,
		reports:  reports,
		log:      log,
		awaiting: make(map[int64]bool),
		pending:  make(map[int64]uint),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot has no telegram connection")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error("handle callback", slog.String("error", err.Error()))
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("handle message", slog.String("error", err.Error()))
		}
	}
}

// SendDailyReports sends a summary to every user registered through Telegram.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.engine.GetAllUsers(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chatID, ok := chatIDFor(user)
		if !ok {
			continue
		}
		text, err := b.reports.Summary(ctx, user, now)
		if err != nil {
			b.log.Error("build summary", slog.String("user_id", user.UserID), slog.String("error", err.Error()))
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error("send summary", slog.String("user_id", user.UserID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// ensureUser returns the engine user for a Telegram account, registering it on first contact.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	userID := userIDFor(from)
	user, err := b.engine.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, service.ErrUserNotFound) {
		return nil, err
	}

	user, err = b.engine.RegisterUser(ctx, userID, displayName(from))
	if errors.Is(err, service.ErrConflict) {
		return b.engine.GetUser(ctx, userID)
	}
	return user, err
}

func userIDFor(from *tgbotapi.User) string {
	return strconv.FormatInt(from.ID, 10)
}

func chatIDFor(user model.User) (int64, bool) {
	id, err := strconv.ParseInt(user.UserID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func displayName(from *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(from.FirstName) + " " + strings.TrimSpace(from.LastName))
	if name == "" {
		name = from.UserName
	}
	if name == "" {
		name = userIDFor(from)
	}
	return name
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) ackCallback(id string) {
	if _, err := b.out.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Warn("callback ack", slog.String("error", err.Error()))
	}
}

func (b *Bot) setAwaitingName(userID int64, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.awaiting[userID] = true
		return
	}
	delete(b.awaiting, userID)
}

func (b *Bot) isAwaitingName(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaiting[userID]
}

func (b *Bot) setPendingDelete(userID int64, taskID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] = taskID
}

// takePendingDelete returns and clears the task awaiting delete confirmation.
func (b *Bot) takePendingDelete(userID int64) (uint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	taskID, ok := b.pending[userID]
	delete(b.pending, userID)
	return taskID, ok
}
