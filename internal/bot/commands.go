package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

const (
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelMe      = "📊 My counters"
	menuLabelHelp    = "❓ Help"
	labelCancel      = "Cancel"

	maxTaskNameLen = 255
)

const helpText = "<b>Commands</b>\n" +
	"/add <i>name</i> – add a task\n" +
	"/tasks – list pending tasks\n" +
	"/done <i>id</i> – mark a task done\n" +
	"/delete <i>id</i> – delete a task\n" +
	"/me – show your counters\n" +
	"/report – send a summary now\n" +
	"/cancel – abort the current dialog"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)

	if b.isAwaitingName(msg.From.ID) && !msg.IsCommand() {
		if strings.EqualFold(text, labelCancel) {
			b.setAwaitingName(msg.From.ID, false)
			return b.sendText(msg.Chat.ID, "Cancelled.")
		}
		b.setAwaitingName(msg.From.ID, false)
		return b.addTask(ctx, msg.Chat.ID, msg.From, text)
	}

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}

	switch text {
	case menuLabelNewTask:
		return b.startNewTask(msg.Chat.ID, msg.From)
	case menuLabelTasks:
		return b.handleListTasks(ctx, msg)
	case menuLabelMe:
		return b.handleMe(ctx, msg)
	case menuLabelHelp:
		return b.sendText(msg.Chat.ID, helpText)
	}
	return b.sendText(msg.Chat.ID, "Unknown command. Send /help for the list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	b.setAwaitingName(msg.From.ID, false)

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "add", "newtask":
		name := strings.TrimSpace(msg.CommandArguments())
		if name == "" {
			return b.startNewTask(msg.Chat.ID, msg.From)
		}
		return b.addTask(ctx, msg.Chat.ID, msg.From, name)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "me":
		return b.handleMe(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.takePendingDelete(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	userID := userIDFor(msg.From)
	_, err := b.engine.RegisterUser(ctx, userID, displayName(msg.From))
	switch {
	case err == nil:
		b.log.Info("telegram user registered", slog.String("user_id", userID))
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Hi, %s! You are registered.\n\n%s", escape(displayName(msg.From)), helpText))
	case errors.Is(err, service.ErrConflict):
		return b.sendText(msg.Chat.ID, "Welcome back! You are already registered.\n\n"+helpText)
	default:
		return b.replyError(msg.Chat.ID, "register", err)
	}
}

func (b *Bot) startNewTask(chatID int64, from *tgbotapi.User) error {
	b.setAwaitingName(from.ID, true)
	return b.sendWithReplyMarkup(chatID, "What should the task be called?", cancelKeyboard())
}

func (b *Bot) addTask(ctx context.Context, chatID int64, from *tgbotapi.User, name string) error {
	name = normalizeTitle(name)
	if name == "" {
		return b.sendText(chatID, "Task name cannot be empty.")
	}
	if len([]rune(name)) > maxTaskNameLen {
		return b.sendText(chatID, fmt.Sprintf("Task name is longer than %d characters.", maxTaskNameLen))
	}

	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return b.replyError(chatID, "register", err)
	}

	task, err := b.engine.AddTask(ctx, user.UserID, name)
	if err != nil {
		return b.replyError(chatID, "add task", err)
	}
	return b.sendText(chatID, fmt.Sprintf("Added #%d <b>%s</b>.", task.TaskID, escape(task.TaskName)))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return b.replyError(msg.Chat.ID, "register", err)
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.engine.GetTasksForUser(ctx, user.UserID)
	if err != nil {
		return b.replyError(chatID, "list tasks", err)
	}

	var builder strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		if task.IsDone() {
			continue
		}
		builder.WriteString(fmt.Sprintf("🟢 #%d %s\n", task.TaskID, escape(task.TaskName)))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.TaskID, shortTitle(task.TaskName, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.TaskID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.TaskID)),
		))
	}

	if len(buttons) == 0 {
		return b.sendText(chatID, "No pending tasks. Add one with /add.")
	}

	text := "📋 <b>Pending tasks</b>\n\n" + builder.String()
	return b.sendWithReplyMarkup(chatID, strings.TrimSpace(text), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /done <i>id</i>")
	}
	return b.completeTask(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return b.replyError(chatID, "register", err)
	}

	res, err := b.engine.CompleteTask(ctx, user.UserID, taskID)
	if err != nil {
		return b.replyError(chatID, "complete task", err)
	}
	if res.AlreadyDone {
		return b.sendText(chatID, fmt.Sprintf("#%d is already done.", taskID))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ #%d <b>%s</b> done.", res.Task.TaskID, escape(res.Task.TaskName)))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /delete <i>id</i>")
	}
	return b.askDeleteConfirmation(msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) askDeleteConfirmation(chatID int64, from *tgbotapi.User, taskID uint) error {
	b.setPendingDelete(from.ID, taskID)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Delete", fmt.Sprintf("%s%d", cbConfirmPrefix, taskID)),
		tgbotapi.NewInlineKeyboardButtonData(labelCancel, fmt.Sprintf("%s%d", cbCancelPrefix, taskID)),
	))
	return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete #%d?", taskID), markup)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return b.replyError(chatID, "register", err)
	}

	task, err := b.engine.DeleteTask(ctx, user.UserID, taskID)
	if err != nil {
		return b.replyError(chatID, "delete task", err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 #%d <b>%s</b> deleted.", task.TaskID, escape(task.TaskName)))
}

func (b *Bot) handleMe(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return b.replyError(msg.Chat.ID, "register", err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("<b>%s</b>\nPending: <b>%d</b>\nDone: <b>%d</b>",
		escape(user.UserName), user.PendingCount, user.DoneCount))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return b.replyError(msg.Chat.ID, "register", err)
	}
	text, err := b.reports.Summary(ctx, *user, time.Now())
	if err != nil {
		return b.replyError(msg.Chat.ID, "report", err)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	b.ackCallback(cb.ID)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug("callback", slog.Int64("telegram_id", cb.From.ID), slog.String("data", data))

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.completeTask(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseTaskID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		pending, ok := b.takePendingDelete(cb.From.ID)
		if !ok || pending != taskID {
			return b.sendText(chatID, "This confirmation has expired.")
		}
		return b.deleteTask(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.takePendingDelete(cb.From.ID)
		return b.sendText(chatID, "Cancelled.")
	default:
		return nil
	}
}

// replyError tells the user what went wrong without leaking storage details.
func (b *Bot) replyError(chatID int64, op string, err error) error {
	var text string
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		text = "Task not found."
	case errors.Is(err, service.ErrUserNotFound):
		text = "You are not registered yet. Send /start."
	case errors.Is(err, service.ErrStorageUnavailable):
		text = "The service is busy right now, try again in a moment."
	default:
		text = "Something went wrong."
	}
	if service.Kind(err) == service.KindInternal || errors.Is(err, service.ErrStorageUnavailable) {
		b.log.Error("bot operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	return b.sendText(chatID, text)
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(data, prefix))
	raw = strings.TrimPrefix(raw, "#")
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, errors.New("task id must be positive")
	}
	return uint(value), nil
}
