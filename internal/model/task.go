package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task. Only Pending and Done are representable.
type TaskStatus int8

const (
	StatusPending TaskStatus = 0
	StatusDone    TaskStatus = 1
)

func (s TaskStatus) Valid() bool {
	return s == StatusPending || s == StatusDone
}

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int8(s))
	}
}

// ParseTaskStatus accepts the text form produced by String.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch raw {
	case "pending":
		return StatusPending, nil
	case "done":
		return StatusDone, nil
	default:
		return 0, fmt.Errorf("unknown task status %q", raw)
	}
}

func (s TaskStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid task status %d", int8(s))
	}
	return []byte(s.String()), nil
}

func (s *TaskStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the status as 0/1.
func (s TaskStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid task status %d", int8(s))
	}
	return int64(s), nil
}

// Scan rejects anything other than 0 and 1 so a corrupted row never becomes a third state.
func (s *TaskStatus) Scan(src any) error {
	var raw int64
	switch v := src.(type) {
	case int64:
		raw = v
	case int32:
		raw = int64(v)
	case int16:
		raw = int64(v)
	case int8:
		raw = int64(v)
	case int:
		raw = int64(v)
	case bool:
		if v {
			raw = 1
		}
	case []byte:
		if len(v) != 1 {
			return fmt.Errorf("scan task status from %q", v)
		}
		raw = int64(v[0] - '0')
	default:
		return fmt.Errorf("scan task status from %T", src)
	}
	status := TaskStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("invalid task status %d", raw)
	}
	*s = status
	return nil
}

// Task represents a single item owned by a user.
type Task struct {
	TaskID    uint       `gorm:"primaryKey;column:task_id" json:"task_id"`
	UserID    string     `gorm:"column:user_id;size:128;not null;index" json:"user_id"`
	TaskName  string     `gorm:"column:task_name;not null" json:"task_name"`
	Status    TaskStatus `gorm:"column:status;type:smallint;not null;default:0;check:chk_tasks_status,status IN (0, 1)" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t Task) IsDone() bool {
	return t.Status == StatusDone
}
