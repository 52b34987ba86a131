package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-tracker/internal/model"
)

// UserRepository handles CRUD for users. It holds no business rules: counters are
// written as absolute values computed by the caller.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts a user with both counters at zero. Returns ErrDuplicate when the id is taken.
func (r *UserRepository) Create(ctx context.Context, userID, name string) (*model.User, error) {
	user := model.User{
		UserID:   userID,
		UserName: name,
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", classify(err))
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("find user: %w", classify(err))
	}
	return &user, nil
}

// FindForUpdate reads the user and holds a row lock until the surrounding transaction ends.
// On SQLite the lock clause is dropped; the immediate transaction already holds the write lock.
func (r *UserRepository) FindForUpdate(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", classify(err))
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("user_id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	return users, nil
}

// SetCounters overwrites both counters. Returns the number of rows written, or ErrNotFound
// when the user does not exist.
func (r *UserRepository) SetCounters(ctx context.Context, userID string, pending, done int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"pending_count": pending,
			"done_count":    done,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("set counters: %w", classify(result.Error))
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("set counters: %w", ErrNotFound)
	}
	return result.RowsAffected, nil
}
