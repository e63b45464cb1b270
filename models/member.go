package models

import "time"

// Member is a participant of the instant-transfer scheme, mirrored from the
// gateway's directory. Reference data only.
type Member struct {
	MemberID      string    `gorm:"size:32;primaryKey" json:"member_id"`
	MemberName    string    `gorm:"size:255" json:"member_name"`
	MemberNameRus string    `gorm:"size:255" json:"member_name_rus"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Member) TableName() string {
	return "members"
}
