package admin

import (
	"time"

	"gorm.io/datatypes"
)

// Admin is an operations user on the verification side.
type Admin struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Mobile   string `gorm:"size:20" json:"mobile"`
	Password string `gorm:"size:255;not null" json:"-"`

	// 0 unverified, 1 active, 2 suspended
	Status int16 `gorm:"default:0;index" json:"status"`

	Role string `gorm:"size:50;default:'admin'" json:"role"`

	LoginToken  *string        `gorm:"type:text" json:"-"`
	TokenExpiry *time.Time     `json:"-"`
	Permissions datatypes.JSON `gorm:"type:jsonb" json:"permissions"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}
