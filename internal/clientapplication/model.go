package clientapplication

import (
	"strings"
	"time"
)

// ClientApplication is one applicant's verification case, created by a
// branch against its customer.
type ClientApplication struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ApplicationID string `gorm:"size:100;uniqueIndex;not null" json:"application_id"`
	BranchID      uint   `gorm:"index;not null" json:"branch_id"`
	CustomerID    uint   `gorm:"index;not null" json:"customer_id"`

	Name       string `gorm:"size:255;not null" json:"name"`
	EmployeeID string `gorm:"size:100;uniqueIndex;not null" json:"employee_id"`
	Location   string `gorm:"size:255" json:"location"`
	Mobile     string `gorm:"size:20" json:"mobile"`
	Email      string `gorm:"size:255" json:"email"`
	SpocID     uint   `json:"spoc_id"`

	// Comma-joined service id list, e.g. "1,4,7".
	Services string `gorm:"type:text" json:"services"`
	Package  string `gorm:"size:100" json:"package"`

	OverallStatus string `gorm:"size:100;default:'pending';index" json:"overall_status"`

	PhotoPath     string `gorm:"type:text" json:"photo_path"`
	DocumentPaths string `gorm:"type:text" json:"document_paths"` // comma-joined

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ClientApplication) TableName() string {
	return "client_applications"
}

// DocumentList splits the comma-joined document path string, dropping blanks.
func (a *ClientApplication) DocumentList() []string {
	var out []string
	for _, p := range strings.Split(a.DocumentPaths, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Filter narrows application listings.
type Filter struct {
	BranchID   uint
	CustomerID uint
	Status     string
	Search     string // matches name / employee_id / application_id
	Page       int
	Limit      int
}

// PaginatedApplications is the list-endpoint envelope.
type PaginatedApplications struct {
	Data       []ClientApplication `json:"data"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"total_pages"`
}
