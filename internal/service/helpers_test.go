package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"task-tracker/internal/metrics"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
)

type fixture struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	taskRepo *repository.TaskRepository
	metrics  *metrics.Metrics
	engine   *CounterEngine
	audit    *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tasks.db")
	db, err := repository.NewDB(dsn, repository.PoolConfig{MaxOpenConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	return &fixture{
		db:       db,
		userRepo: userRepo,
		taskRepo: taskRepo,
		metrics:  m,
		engine:   NewCounterEngine(db, userRepo, taskRepo, log, m, 10*time.Second),
		audit:    NewAuditService(db, userRepo, taskRepo, log, m),
	}
}

// requireConsistent checks that the stored counters match the task rows.
func (f *fixture) requireConsistent(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	user, err := f.userRepo.FindByID(ctx, userID)
	require.NoError(t, err)
	counts, err := f.taskRepo.CountByStatus(ctx, userID)
	require.NoError(t, err)

	require.Equal(t, counts.Pending, user.PendingCount, "pending counter for %s", userID)
	require.Equal(t, counts.Done, user.DoneCount, "done counter for %s", userID)
}

func (f *fixture) counters(t *testing.T, userID string) (int, int) {
	t.Helper()
	user, err := f.engine.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return user.PendingCount, user.DoneCount
}

func taskNamed(id uint, name string) model.Task {
	return model.Task{TaskID: id, TaskName: name}
}
