package branch

import (
	"time"

	"gorm.io/datatypes"
)

// Branch is a customer's operating unit. It logs in and creates
// applications on behalf of the customer.
type Branch struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CustomerID uint   `gorm:"not null;index" json:"customer_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Email      string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string `gorm:"size:255;not null" json:"-"`

	// 0 unverified, 1 active, 2 suspended
	Status int16 `gorm:"default:0;index" json:"status"`

	IsHead bool `gorm:"default:false" json:"is_head"`

	LoginToken  *string        `gorm:"type:text" json:"-"`
	TokenExpiry *time.Time     `json:"-"`
	Permissions datatypes.JSON `gorm:"type:jsonb" json:"permissions"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Branch) TableName() string {
	return "branches"
}

// SubUser is an additional login under a branch with its own credentials
// and permission map.
type SubUser struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	BranchID   uint   `gorm:"not null;index" json:"branch_id"`
	CustomerID uint   `gorm:"not null;index" json:"customer_id"`
	Email      string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string `gorm:"size:255;not null" json:"-"`

	Status int16 `gorm:"default:0;index" json:"status"`

	LoginToken  *string        `gorm:"type:text" json:"-"`
	TokenExpiry *time.Time     `json:"-"`
	Permissions datatypes.JSON `gorm:"type:jsonb" json:"permissions"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SubUser) TableName() string {
	return "branch_sub_users"
}
