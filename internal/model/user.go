package model

import "time"

// User owns tasks and carries denormalized counters of their pending and done tasks.
// Counters are written only by the counter engine.
type User struct {
	UserID       string    `gorm:"primaryKey;column:user_id;size:128" json:"user_id"`
	UserName     string    `gorm:"column:user_name;not null" json:"user_name"`
	PendingCount int       `gorm:"column:pending_count;not null;default:0;check:chk_users_pending,pending_count >= 0" json:"pending_count"`
	DoneCount    int       `gorm:"column:done_count;not null;default:0;check:chk_users_done,done_count >= 0" json:"done_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Tasks        []Task    `gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (User) TableName() string {
	return "users"
}
