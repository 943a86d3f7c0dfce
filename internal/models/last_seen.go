package models

import "time"

// LastSeen is the most recent moment presence was confirmed for a user.
// One row per username; rows are upserted and never deleted.
type LastSeen struct {
	Username string    `gorm:"primaryKey;size:191" bson:"username" json:"username"`
	LastSeen time.Time `gorm:"not null;index" bson:"lastSeen" json:"lastSeen"`
}

func (LastSeen) TableName() string {
	return "users_status"
}
