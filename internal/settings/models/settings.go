package models

import (
	"errors"
	"time"
)

// Settings are one user's notification and display preferences.
type Settings struct {
	UserID              string
	NotificationEnabled bool
	Language            string
	DarkModeEnabled     bool
	UpdatedAt           time.Time
}

func (s Settings) Validate() error {
	if s.UserID == "" {
		return errors.New("user id is required")
	}
	if s.Language == "" {
		return errors.New("language is required")
	}
	return nil
}
