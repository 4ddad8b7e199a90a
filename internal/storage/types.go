package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a campaign id has no row.
	ErrNotFound = errors.New("campaign not found")
	// ErrInvalidStatus is returned for a status value outside the known set.
	ErrInvalidStatus = errors.New("invalid campaign status")
)

// Status is the campaign lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDeleted   Status = "deleted"
)

// ValidStatus reports whether s is a known campaign status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether a campaign in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDeleted
}

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Campaign is one tracked reaction-driven reminder.
type Campaign struct {
	ID        int64
	Title     string
	ChannelID string
	MessageID string
	Emoji     string
	RemindAt  time.Time
	CreatedAt time.Time
	Status    Status
}

// OptIn is one user's recorded participation in a campaign.
type OptIn struct {
	ID         int64
	CampaignID int64
	UserID     string
	Username   string
	TalliedAt  time.Time
}

// ReminderLog is one audit record of a send attempt. Append-only.
type ReminderLog struct {
	ID             int64
	CampaignID     int64
	SentAt         time.Time
	RecipientCount int
	MessageChunks  int
	Success        bool
	ErrorMessage   string
}
