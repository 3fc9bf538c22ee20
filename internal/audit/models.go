package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Entry records one command invocation
type Entry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Command    string         `gorm:"index;not null" json:"command"`
	UserID     string         `gorm:"index;not null" json:"user_id"`
	Username   string         `json:"username"`
	Args       datatypes.JSON `gorm:"not null" json:"args"` // JSON array of the raw string arguments
	Whisper    bool           `json:"whisper"`
	Success    bool           `gorm:"not null" json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Entry
func (Entry) TableName() string {
	return "audit_entry"
}
