package owners

import "time"

// Owner is a user allowed to run owner only commands. UserID is empty for
// owners added by name while they were not in the room; it is filled in the
// first time they run a command.
type Owner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index" json:"user_id"`
	Username  string    `gorm:"index" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Owner
func (Owner) TableName() string {
	return "owner"
}

// Display returns the mention used in chat replies
func (o Owner) Display() string {
	if o.Username != "" {
		return "@" + o.Username
	}
	return o.UserID
}
