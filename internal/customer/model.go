package customer

import (
	"strings"
	"time"
)

// Customer is a client company. Branches log in under a customer and create
// applications against it.
type Customer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ClientUniqueID string    `gorm:"size:100;uniqueIndex;not null" json:"client_unique_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Emails         string    `gorm:"type:text" json:"emails"` // comma-joined contact list
	MobileNumber   string    `gorm:"size:20" json:"mobile_number"`
	Status         int16     `gorm:"default:1" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// EmailList splits the comma-joined contact string, dropping blanks.
func (c *Customer) EmailList() []string {
	var out []string
	for _, e := range strings.Split(c.Emails, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
