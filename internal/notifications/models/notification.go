package models

import "time"

// Preference is the notifications context's replica of one user's settings,
// converged from SettingsChanged events.
type Preference struct {
	UserID              string
	NotificationEnabled bool
	Language            string
	UpdatedAt           time.Time
}

// Notification is one message queued for delivery to a user.
type Notification struct {
	UserID    string
	EventID   string
	Kind      string
	Message   string
	CreatedAt time.Time
}
