package models

import (
	"errors"
	"time"

	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
)

// Review is the current KYC verification state of one user.
type Review struct {
	UserID    string
	Status    events.KycStatus
	UpdatedAt time.Time
}

func (r Review) Validate() error {
	if r.UserID == "" {
		return errors.New("user id is required")
	}
	if !r.Status.Valid() {
		return errors.New("unknown kyc status")
	}
	return nil
}
