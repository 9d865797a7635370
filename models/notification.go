package models

import "time"

// Notification is a per-user task entry. At most one open row exists per
// (user_id, type, tablename, record_id): IsOpen is true while the row is
// active and NULL once retracted, so the unique index only binds open rows.
type Notification struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    int       `gorm:"not null;uniqueIndex:idx_notification_open" json:"user_id"`
	Type      string    `gorm:"size:32;not null;uniqueIndex:idx_notification_open" json:"type"`
	Tablename string    `gorm:"size:64;not null;uniqueIndex:idx_notification_open" json:"tablename"`
	RecordId  int       `gorm:"not null;uniqueIndex:idx_notification_open" json:"record_id"`
	IsOpen    *bool     `gorm:"uniqueIndex:idx_notification_open" json:"is_open"`
	Name      string    `gorm:"size:255" json:"name"`
	Url       string    `gorm:"size:255" json:"url"`
	Language  string    `gorm:"size:16" json:"language"`
	Deleted   bool      `gorm:"not null;default:false;index" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Notification) TableName() string { return "auth_user_notification" }

// NotificationFilter selects open notifications. Zero fields are ignored;
// an empty UserIds means all users.
type NotificationFilter struct {
	UserIds   []int
	Type      string
	Tablename string
	RecordId  int
}

func (f NotificationFilter) Matches(n *Notification) bool {
	if n.Deleted {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Tablename != "" && n.Tablename != f.Tablename {
		return false
	}
	if f.RecordId != 0 && n.RecordId != f.RecordId {
		return false
	}
	if len(f.UserIds) > 0 {
		found := false
		for _, id := range f.UserIds {
			if id == n.UserId {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SiteOperator is one row of the operators-of-sites query.
type SiteOperator struct {
	SiteId   int    `json:"site_id"`
	SiteName string `json:"site_name"`
	UserId   int    `json:"user_id"`
	PeId     int    `json:"pe_id"`
	Email    string `json:"email"`
	Language string `json:"language"`
}

type EmailOutbox struct {
	ID            int        `gorm:"primary_key" json:"id"`
	PeId          int        `gorm:"index" json:"pe_id"`
	Recipient     string     `gorm:"size:255;not null" json:"recipient"`
	Subject       string     `gorm:"size:255" json:"subject"`
	Body          string     `gorm:"type:text" json:"body"`
	Status        string     `gorm:"size:16;index;not null" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:64" json:"locked_by"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EmailOutbox) TableName() string { return "msg_email_outbox" }
