package events

import (
	"errors"
	"fmt"
	"time"
)

// TransferCompleted is emitted by the transfers service once a money transfer
// has committed locally. Amount is in minor units of Currency.
type TransferCompleted struct {
	FromAccount string    `json:"fromAccount"`
	ToAccount   string    `json:"toAccount"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (TransferCompleted) Kind() Kind { return KindTransferCompleted }

// PartitionKey orders a transfer within the source account's history.
func (p TransferCompleted) PartitionKey() string { return p.FromAccount }

func (p TransferCompleted) Validate() error {
	if p.FromAccount == "" {
		return errors.New("fromAccount is required")
	}
	if p.ToAccount == "" {
		return errors.New("toAccount is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", p.Amount)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", p.Currency)
	}
	if p.OccurredAt.IsZero() {
		return errors.New("occurredAt is required")
	}
	return nil
}

// KycStatus is the outcome of a KYC review.
type KycStatus string

const (
	KycStatusApproved KycStatus = "APPROVED"
	KycStatusRejected KycStatus = "REJECTED"
	KycStatusPending  KycStatus = "PENDING"
)

func (s KycStatus) Valid() bool {
	switch s {
	case KycStatusApproved, KycStatusRejected, KycStatusPending:
		return true
	}
	return false
}

// KycStatusChanged is emitted by the KYC service whenever a user's
// verification status transitions.
type KycStatusChanged struct {
	UserID    string    `json:"userId"`
	Status    KycStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

func (KycStatusChanged) Kind() Kind { return KindKycStatusChanged }

func (p KycStatusChanged) PartitionKey() string { return p.UserID }

func (p KycStatusChanged) Validate() error {
	if p.UserID == "" {
		return errors.New("userId is required")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown kyc status %q", p.Status)
	}
	if p.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// SettingsChanged is emitted by the settings service after a user's
// preferences commit. Consumers replicate it into their own local state.
type SettingsChanged struct {
	UserID              string `json:"userId"`
	NotificationEnabled bool   `json:"notificationEnabled"`
	Language            string `json:"language"`
	DarkModeEnabled     bool   `json:"darkModeEnabled"`
}

func (SettingsChanged) Kind() Kind { return KindSettingsChanged }

func (p SettingsChanged) PartitionKey() string { return p.UserID }

func (p SettingsChanged) Validate() error {
	if p.UserID == "" {
		return errors.New("userId is required")
	}
	if p.Language == "" {
		return errors.New("language is required")
	}
	return nil
}
