package cmt

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// CMTApplication is the aggregate verification-report record for one
// applicant. The typed columns drive the notification decision; everything
// else the report form carries lands in Extra.
type CMTApplication struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ApplicationID string `gorm:"size:100;uniqueIndex;not null" json:"application_id"`
	BranchID      uint   `gorm:"index" json:"branch_id"`
	CustomerID    uint   `gorm:"index" json:"customer_id"`

	CandidateName string `gorm:"size:255" json:"candidate_name"`
	Gender        string `gorm:"size:20" json:"gender"`
	MaritalStatus string `gorm:"size:30" json:"marital_status"`
	GenderTitle   string `gorm:"size:10" json:"gender_title"`

	OverallStatus string `gorm:"size:100;index" json:"overall_status"`
	IsVerify      string `gorm:"size:10" json:"is_verify"`

	// Flattened report fields outside the annexure sub-forms.
	Extra datatypes.JSON `gorm:"type:jsonb" json:"extra"`

	DocumentPaths string `gorm:"type:text" json:"document_paths"` // comma-joined

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CMTApplication) TableName() string {
	return "cmt_applications"
}

// DocumentList splits the comma-joined document path string, dropping blanks.
func (a *CMTApplication) DocumentList() []string {
	var out []string
	for _, p := range strings.Split(a.DocumentPaths, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AnnexureRecord holds one per-service structured sub-form of the report.
// One row per (cmt_application_id, service_table).
type AnnexureRecord struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CMTApplicationID uint           `gorm:"column:cmt_application_id;uniqueIndex:idx_annexure_cmt_table;not null" json:"cmt_application_id"`
	ServiceTable     string         `gorm:"size:100;uniqueIndex:idx_annexure_cmt_table;not null" json:"service_table"`
	ColorStatus      string         `gorm:"size:50" json:"color_status"`
	Data             datatypes.JSON `gorm:"type:jsonb" json:"data"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AnnexureRecord) TableName() string {
	return "annexure_records"
}

// serviceTables is the fixed allow-list of annexure form names. Caller
// input never reaches SQL as an identifier; it only selects one of these.
var serviceTables = map[string]bool{
	"address_verification":    true,
	"education_verification":  true,
	"employment_verification": true,
	"criminal_verification":   true,
	"identity_verification":   true,
	"reference_verification":  true,
	"database_verification":   true,
	"drug_test":               true,
	"credit_check":            true,
}

// NormalizeServiceTable maps a caller-supplied table name onto the
// allow-list, folding case and dashes. Returns false for anything outside
// the list.
func NormalizeServiceTable(name string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(name))
	t = strings.ReplaceAll(t, "-", "_")
	if !serviceTables[t] {
		return "", false
	}
	return t, true
}

// Notification codes. Final report and QC check fire on a completed status
// depending on is_verify; ready-for-report fires when every annexure's
// color status signals completion.
const (
	EmailNone           = 0
	EmailFinalReport    = 1
	EmailQCCheck        = 2
	EmailReadyForReport = 3
)

// TrackerRow is one line of the client-master-tracker listing.
type TrackerRow struct {
	CustomerID       uint   `json:"customer_id"`
	CustomerName     string `json:"customer_name"`
	ClientUniqueID   string `json:"client_unique_id"`
	BranchCount      int64  `json:"branch_count"`
	ApplicationCount int64  `json:"application_count"`
	CompletedCount   int64  `json:"completed_count"`
	PendingCount     int64  `json:"pending_count"`
}
