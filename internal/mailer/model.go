package mailer

import "time"

// EmailTemplate holds one templated message keyed by (module, action).
// Status 1 selects the active row; older revisions stay with status 0.
type EmailTemplate struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Module   string `gorm:"size:100;not null;index:idx_template_module_action" json:"module"`
	Action   string `gorm:"size:100;not null;index:idx_template_module_action" json:"action"`
	Title    string `gorm:"size:255;not null" json:"title"`    // subject line, may carry placeholders
	Template string `gorm:"type:text;not null" json:"template"` // HTML body with {{placeholder}} tokens
	Status   int16  `gorm:"default:1;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

// SMTPCredential is the sending account for one (module, action) pair.
type SMTPCredential struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Module    string `gorm:"size:100;not null;index:idx_smtp_module_action" json:"module"`
	Action    string `gorm:"size:100;not null;index:idx_smtp_module_action" json:"action"`
	Host      string `gorm:"size:255;not null" json:"host"`
	Port      string `gorm:"size:10;not null" json:"port"`
	Username  string `gorm:"size:255;not null" json:"username"`
	Password  string `gorm:"size:255;not null" json:"-"`
	FromName  string `gorm:"size:255" json:"from_name"`
	FromEmail string `gorm:"size:255" json:"from_email"`
	Status    int16  `gorm:"default:1;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SMTPCredential) TableName() string {
	return "smtp_credentials"
}

// Job is one queued send. Attachments are URLs; each is existence-probed
// before it is fetched and attached.
type Job struct {
	Module         string            `json:"module"`
	Action         string            `json:"action"`
	Vars           map[string]string `json:"vars"`
	To             []string          `json:"to"`
	CC             []string          `json:"cc,omitempty"`
	AttachmentURLs []string          `json:"attachment_urls,omitempty"`
}
