package model

import "time"

// MaxApprovedComments caps approvals per (url, nickname) pair.
const MaxApprovedComments = 2

// ApprovedComment is one comment counted against a CommentLimitRecord.
type ApprovedComment struct {
	TaskID      string    `json:"taskId"`
	Content     string    `json:"content"`
	Fingerprint string    `json:"fingerprint"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

// ApprovedComments is stored as a JSON array.
type ApprovedComments []ApprovedComment

// CommentLimitRecord aggregates approved comments per (normalized url, nickname).
// ApprovedCount always equals len(ApprovedComments).
type CommentLimitRecord struct {
	ID               uint             `gorm:"primaryKey"`
	NormalizedURL    string           `gorm:"size:512;not null;uniqueIndex:idx_comment_limit_pair"`
	AuthorNickname   string           `gorm:"size:128;not null;uniqueIndex:idx_comment_limit_pair"`
	ApprovedCount    int              `gorm:"not null;default:0"`
	ApprovedComments ApprovedComments `gorm:"type:text"`
	LastApprovedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Device is a handset registered to a worker, identified on the platform by its nickname.
type Device struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;not null;index"`
	Nickname  string `gorm:"size:128;not null;index"`
	Platform  string `gorm:"size:32"`
	CreatedAt time.Time
}

// DeviceNoteHistory is an append-only log of posts published from a device.
type DeviceNoteHistory struct {
	ID       uint      `gorm:"primaryKey"`
	DeviceID string    `gorm:"size:64;not null;index:idx_device_note_at,priority:1"`
	UserID   string    `gorm:"size:64;not null"`
	TaskID   string    `gorm:"size:36"`
	URL      string    `gorm:"size:2048;not null"`
	At       time.Time `gorm:"not null;index:idx_device_note_at,priority:2"`
}
