package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/internal/model"
)

// TaskRepository handles CRUD for tasks. Every task-scoped call is keyed by the
// (taskID, userID) pair, so a task owned by somebody else looks absent.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

// Create inserts a pending task. Returns ErrForeignKey when the user does not exist.
func (r *TaskRepository) Create(ctx context.Context, userID, name string) (*model.Task, error) {
	task := model.Task{
		UserID:   userID,
		TaskName: name,
		Status:   model.StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", classify(err))
	}
	return &task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID string, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, fmt.Errorf("find task: %w", classify(err))
	}
	return &task, nil
}

// SetStatus moves a task from one status to another. The update only matches a row that is
// still in the from status, so a concurrent transition shows up as zero rows affected.
func (r *TaskRepository) SetStatus(ctx context.Context, userID string, taskID uint, from, to model.TaskStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("user_id = ? AND task_id = ? AND status = ?", userID, taskID, from).
		Update("status", to)
	if result.Error != nil {
		return 0, fmt.Errorf("set task status: %w", classify(result.Error))
	}
	return result.RowsAffected, nil
}

// Delete removes a task for the given user and reports how many rows went away.
func (r *TaskRepository) Delete(ctx context.Context, userID string, taskID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Delete(&model.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete task: %w", classify(result.Error))
	}
	return result.RowsAffected, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("task_id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", classify(err))
	}
	return tasks, nil
}

func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("task_id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list all tasks: %w", classify(err))
	}
	return tasks, nil
}

// StatusCounts is the number of tasks per status for one user.
type StatusCounts struct {
	Pending int
	Done    int
}

// CountByStatus counts a user's tasks grouped by status.
func (r *TaskRepository) CountByStatus(ctx context.Context, userID string) (StatusCounts, error) {
	var rows []struct {
		Status model.TaskStatus
		Total  int
	}
	err := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Select("status, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count tasks: %w", classify(err))
	}

	var counts StatusCounts
	for _, row := range rows {
		switch row.Status {
		case model.StatusPending:
			counts.Pending = row.Total
		case model.StatusDone:
			counts.Done = row.Total
		}
	}
	return counts, nil
}
