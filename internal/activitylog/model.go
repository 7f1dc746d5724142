package activitylog

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is one append-only audit row. Result is 1 for success, 0 for
// failure, mirroring the status codes the frontend tracker expects.
type ActivityLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   uint           `gorm:"index" json:"actor_id"`
	ActorKind string         `gorm:"size:20;not null;index" json:"actor_kind"` // admin, branch, sub_user
	Module    string         `gorm:"size:100;not null;index" json:"module"`
	Action    string         `gorm:"size:100;not null;index" json:"action"`
	Result    int16          `gorm:"not null;index" json:"result"` // 1 success, 0 failure
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`    // request diff / detail
	Error     string         `gorm:"type:text" json:"error"`
	IPAddress string         `gorm:"size:45" json:"ip_address"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// Filter narrows the admin listing endpoint.
type Filter struct {
	ActorID   *uint      `json:"actor_id"`
	ActorKind string     `json:"actor_kind"`
	Module    string     `json:"module"`
	Action    string     `json:"action"`
	Result    *int16     `json:"result"`
	FromDate  *time.Time `json:"from_date"`
	ToDate    *time.Time `json:"to_date"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

type PaginatedLogs struct {
	Data       []ActivityLog `json:"data"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}
