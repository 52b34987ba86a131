package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"task-tracker/internal/metrics"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
)

const (
	counterPending = "pending"
	counterDone    = "done"
)

// CompleteResult reports the state of a task after CompleteTask.
type CompleteResult struct {
	Task model.Task
	// AlreadyDone is true when the call found the task done and changed nothing.
	AlreadyDone bool
}

// CounterEngine keeps every user's pending and done counters equal to the number of their
// task rows in each status. Each mutating call runs as one transaction that locks the owning
// user row before reading the counters, so same-user operations serialize while different
// users proceed in parallel.
type CounterEngine struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	taskRepo *repository.TaskRepository
	log      *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewCounterEngine(db *gorm.DB, userRepo *repository.UserRepository, taskRepo *repository.TaskRepository, log *slog.Logger, m *metrics.Metrics, timeout time.Duration) *CounterEngine {
	if log == nil {
		log = slog.Default()
	}
	return &CounterEngine{
		db:       db,
		userRepo: userRepo,
		taskRepo: taskRepo,
		log:      log,
		metrics:  m,
		timeout:  timeout,
	}
}

// RegisterUser creates a user with both counters at zero. Returns ErrConflict when the id exists.
func (e *CounterEngine) RegisterUser(ctx context.Context, userID, name string) (user *model.User, err error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	defer func() { e.observe("register_user", err) }()

	user, err = e.userRepo.Create(ctx, userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("register user %q: %w", userID, ErrConflict)
		}
		return nil, storageError("register user", err)
	}
	e.log.Info("user registered", slog.String("user_id", userID))
	return user, nil
}

// AddTask inserts a pending task and raises the user's pending counter in the same transaction.
func (e *CounterEngine) AddTask(ctx context.Context, userID, name string) (task *model.Task, err error) {
	defer func() { e.observe("add_task", err) }()

	err = e.inTx(ctx, func(ctx context.Context, users *repository.UserRepository, tasks *repository.TaskRepository) error {
		user, err := lockUser(ctx, users, userID)
		if err != nil {
			return err
		}

		created, err := tasks.Create(ctx, userID, name)
		if err != nil {
			if errors.Is(err, repository.ErrForeignKey) {
				return ErrUserNotFound
			}
			return storageError("create task", err)
		}

		if _, err := users.SetCounters(ctx, userID, user.PendingCount+1, user.DoneCount); err != nil {
			return storageError("update counters", err)
		}
		task = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("task created", slog.Uint64("task_id", uint64(task.TaskID)), slog.String("user_id", userID))
	return task, nil
}

// CompleteTask moves a pending task to done and shifts one unit from the pending counter to
// the done counter. Completing a task that is already done is a successful no-op.
func (e *CounterEngine) CompleteTask(ctx context.Context, userID string, taskID uint) (result CompleteResult, err error) {
	defer func() { e.observe("complete_task", err) }()

	err = e.inTx(ctx, func(ctx context.Context, users *repository.UserRepository, tasks *repository.TaskRepository) error {
		user, err := lockUser(ctx, users, userID)
		if err != nil {
			return err
		}

		task, err := findTask(ctx, tasks, userID, taskID)
		if err != nil {
			return err
		}
		if task.IsDone() {
			result = CompleteResult{Task: *task, AlreadyDone: true}
			return nil
		}

		n, err := tasks.SetStatus(ctx, userID, taskID, model.StatusPending, model.StatusDone)
		if err != nil {
			return storageError("complete task", err)
		}
		if n == 0 {
			return ErrTaskNotFound
		}

		pending := e.decrement(userID, counterPending, user.PendingCount)
		if _, err := users.SetCounters(ctx, userID, pending, user.DoneCount+1); err != nil {
			return storageError("update counters", err)
		}

		task.Status = model.StatusDone
		result = CompleteResult{Task: *task}
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	if result.AlreadyDone {
		e.log.Debug("task already done", slog.Uint64("task_id", uint64(taskID)), slog.String("user_id", userID))
	} else {
		e.log.Info("task completed", slog.Uint64("task_id", uint64(taskID)), slog.String("user_id", userID))
	}
	return result, nil
}

// DeleteTask removes a task in either status and lowers the matching counter.
// It returns the task as it was before deletion.
func (e *CounterEngine) DeleteTask(ctx context.Context, userID string, taskID uint) (deleted *model.Task, err error) {
	defer func() { e.observe("delete_task", err) }()

	err = e.inTx(ctx, func(ctx context.Context, users *repository.UserRepository, tasks *repository.TaskRepository) error {
		user, err := lockUser(ctx, users, userID)
		if err != nil {
			return err
		}

		task, err := findTask(ctx, tasks, userID, taskID)
		if err != nil {
			return err
		}

		pending, done := user.PendingCount, user.DoneCount
		if task.IsDone() {
			done = e.decrement(userID, counterDone, done)
		} else {
			pending = e.decrement(userID, counterPending, pending)
		}

		n, err := tasks.Delete(ctx, userID, taskID)
		if err != nil {
			return storageError("delete task", err)
		}
		if n == 0 {
			return ErrTaskNotFound
		}

		if _, err := users.SetCounters(ctx, userID, pending, done); err != nil {
			return storageError("update counters", err)
		}
		deleted = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("task deleted", slog.Uint64("task_id", uint64(taskID)), slog.String("user_id", userID), slog.String("status", deleted.Status.String()))
	return deleted, nil
}

func (e *CounterEngine) GetUser(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	user, err := e.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("get user", err)
	}
	return user, nil
}

func (e *CounterEngine) GetAllUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	users, err := e.userRepo.ListAll(ctx)
	if err != nil {
		return nil, storageError("get all users", err)
	}
	return users, nil
}

// GetTasksForUser lists a user's tasks. An unknown user simply has no tasks.
func (e *CounterEngine) GetTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	tasks, err := e.taskRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError("get tasks", err)
	}
	return tasks, nil
}

func (e *CounterEngine) GetAllTasks(ctx context.Context) ([]model.Task, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	tasks, err := e.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, storageError("get all tasks", err)
	}
	return tasks, nil
}

type txBody func(ctx context.Context, users *repository.UserRepository, tasks *repository.TaskRepository) error

// inTx runs body in one transaction with repositories bound to it.
func (e *CounterEngine) inTx(ctx context.Context, body txBody) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	err := repository.RunInTransaction(ctx, e.db, e.log, func(tx *gorm.DB) error {
		return body(ctx, e.userRepo.WithTx(tx), e.taskRepo.WithTx(tx))
	})
	return storageError("transaction", err)
}

func (e *CounterEngine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// decrement lowers a counter by one, flooring at zero. Hitting the floor means the counters
// had already drifted from the task rows; that is reported to operators, not to the caller.
func (e *CounterEngine) decrement(userID, counter string, value int) int {
	if value > 0 {
		return value - 1
	}
	e.log.Warn("counter clamped at zero",
		slog.String("user_id", userID),
		slog.String("counter", counter),
		slog.Int("value", value),
		slog.String("error", ErrInvariantViolation.Error()))
	e.metrics.ObserveClamp(counter)
	return 0
}

func (e *CounterEngine) observe(operation string, err error) {
	e.metrics.ObserveOperation(operation, Kind(err))
	if Kind(err) == KindInternal {
		e.log.Error("operation failed", slog.String("operation", operation), slog.String("error", err.Error()))
	}
}

func lockUser(ctx context.Context, users *repository.UserRepository, userID string) (*model.User, error) {
	user, err := users.FindForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("load user", err)
	}
	return user, nil
}

func findTask(ctx context.Context, tasks *repository.TaskRepository, userID string, taskID uint) (*model.Task, error) {
	task, err := tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, storageError("load task", err)
	}
	return task, nil
}
