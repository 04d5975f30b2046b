package models

import "time"

// WaitlistEntry is a single email signup. Rows are never updated or deleted;
// queue position is derived from (CreatedAt, ID) rather than stored.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Source    string    `gorm:"size:64;not null;default:website" json:"source,omitempty"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}
