package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-tracker/internal/metrics"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type testBot struct {
	*Bot
	out    *fakeSender
	engine *service.CounterEngine
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"), repository.PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	engine := service.NewCounterEngine(db, userRepo, taskRepo, log, metrics.New(prometheus.NewRegistry()), 5*time.Second)

	out := &fakeSender{}
	return &testBot{
		Bot:    newBot(out, engine, service.NewReportService(taskRepo), log),
		out:    out,
		engine: engine,
	}
}

var alice = &tgbotapi.User{ID: 4242, FirstName: "Alice"}

func command(from *tgbotapi.User, text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     from,
		Chat:     &tgbotapi.Chat{ID: from.ID, Type: "private"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func plain(from *tgbotapi.User, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: from,
		Chat: &tgbotapi.Chat{ID: from.ID, Type: "private"},
		Text: text,
	}}
}

func callback(from *tgbotapi.User, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    from,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from.ID, Type: "private"}},
		Data:    data,
	}}
}

func (b *testBot) counters(t *testing.T) (int, int) {
	t.Helper()
	user, err := b.engine.GetUser(context.Background(), "4242")
	require.NoError(t, err)
	return user.PendingCount, user.DoneCount
}

func TestStartRegistersOnce(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/start"))
	assert.Contains(t, b.out.last(t).Text, "You are registered")

	b.handleUpdate(ctx, command(alice, "/start"))
	assert.Contains(t, b.out.last(t).Text, "already registered")

	user, err := b.engine.GetUser(ctx, "4242")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.UserName)
}

func TestAddCompleteDeleteFlow(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/add buy milk"))
	assert.Contains(t, b.out.last(t).Text, "Added #1 <b>Buy milk</b>")
	pending, done := b.counters(t)
	assert.Equal(t, 1, pending)
	assert.Equal(t, 0, done)

	b.handleUpdate(ctx, command(alice, "/done 1"))
	assert.Contains(t, b.out.last(t).Text, "done.")
	b.handleUpdate(ctx, command(alice, "/done 1"))
	assert.Contains(t, b.out.last(t).Text, "already done")
	pending, done = b.counters(t)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, done)

	b.handleUpdate(ctx, command(alice, "/delete 1"))
	markup, ok := b.out.last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)

	b.handleUpdate(ctx, callback(alice, "confirm:1"))
	assert.Contains(t, b.out.last(t).Text, "deleted")
	pending, done = b.counters(t)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 0, done)
}

func TestAddConversation(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/add"))
	assert.Contains(t, b.out.last(t).Text, "What should the task be called?")

	b.handleUpdate(ctx, plain(alice, "water plants"))
	assert.Contains(t, b.out.last(t).Text, "Water plants")

	pending, _ := b.counters(t)
	assert.Equal(t, 1, pending)
}

func TestAddConversationCancel(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, plain(alice, menuLabelNewTask))
	b.handleUpdate(ctx, plain(alice, labelCancel))
	assert.Equal(t, "Cancelled.", b.out.last(t).Text)

	_, err := b.engine.GetUser(ctx, "4242")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestTaskListButtons(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/tasks"))
	assert.Contains(t, b.out.last(t).Text, "No pending tasks")

	b.handleUpdate(ctx, command(alice, "/add first"))
	b.handleUpdate(ctx, command(alice, "/add second"))
	b.handleUpdate(ctx, command(alice, "/done 1"))
	b.handleUpdate(ctx, command(alice, "/tasks"))

	msg := b.out.last(t)
	assert.Contains(t, msg.Text, "#2 Second")
	assert.NotContains(t, msg.Text, "#1 First")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "complete:2", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "delete:2", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestCompleteCallback(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/add task"))
	b.handleUpdate(ctx, callback(alice, "complete:1"))

	assert.Equal(t, 1, b.out.requests)
	pending, done := b.counters(t)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, done)
}

func TestDeleteConfirmationMustMatch(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/add task"))
	b.handleUpdate(ctx, callback(alice, "confirm:1"))
	assert.Contains(t, b.out.last(t).Text, "expired")

	b.handleUpdate(ctx, callback(alice, "delete:1"))
	b.handleUpdate(ctx, callback(alice, "cancel:1"))
	b.handleUpdate(ctx, callback(alice, "confirm:1"))
	assert.Contains(t, b.out.last(t).Text, "expired")

	pending, _ := b.counters(t)
	assert.Equal(t, 1, pending)
}

func TestForeignTaskIsNotFound(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	bob := &tgbotapi.User{ID: 7, FirstName: "Bob"}

	b.handleUpdate(ctx, command(alice, "/add mine"))
	b.handleUpdate(ctx, command(bob, "/done 1"))
	assert.Equal(t, "Task not found.", b.out.last(t).Text)

	pending, done := b.counters(t)
	assert.Equal(t, 1, pending)
	assert.Equal(t, 0, done)
}

func TestUsageErrors(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"/done", "Usage: /done"},
		{"/done abc", "Usage: /done"},
		{"/delete 0", "Usage: /delete"},
		{"/nope", "Unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b.handleUpdate(ctx, command(alice, tt.text))
			assert.Contains(t, b.out.last(t).Text, tt.want)
		})
	}
}

func TestMeAndReport(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, command(alice, "/add one"))
	b.handleUpdate(ctx, command(alice, "/me"))
	assert.Contains(t, b.out.last(t).Text, "Pending: <b>1</b>")

	b.handleUpdate(ctx, command(alice, "/report"))
	assert.Contains(t, b.out.last(t).Text, "Task report")
}

func TestSendDailyReportsSkipsNonTelegramUsers(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	_, err := b.engine.RegisterUser(ctx, "web-user", "Web")
	require.NoError(t, err)
	b.handleUpdate(ctx, command(alice, "/start"))
	before := b.out.count()

	require.NoError(t, b.SendDailyReports(ctx))
	assert.Equal(t, before+1, b.out.count())
	assert.Equal(t, int64(4242), b.out.last(t).ChatID)
}

func TestGroupChatsIgnored(t *testing.T) {
	b := newTestBot(t)
	upd := command(alice, "/start")
	upd.Message.Chat.Type = "group"

	b.handleUpdate(context.Background(), upd)
	assert.Zero(t, b.out.count())
}

func TestHelpers(t *testing.T) {
	id, err := parseTaskID("complete:12", cbCompletePrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	id, err = parseTaskID(" #7 ", "")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = parseTaskID("delete:x", cbDeletePrefix)
	assert.Error(t, err)

	assert.Equal(t, "Abcd…", shortTitle("abcdefgh", 5))
	assert.Equal(t, "Hi", shortTitle(" hi\n", 5))
	assert.Equal(t, "&lt;b&gt;", escape("<b>"))
	assert.Equal(t, "Alice", displayName(alice))
	assert.Equal(t, "99", displayName(&tgbotapi.User{ID: 99}))
}
