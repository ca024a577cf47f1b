package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transfer is a completed money movement between two accounts. Amount is in
// minor units of Currency.
type Transfer struct {
	ID          uuid.UUID
	FromAccount string
	ToAccount   string
	Amount      int64
	Currency    string
	CompletedAt time.Time
}

func (t Transfer) Validate() error {
	if t.FromAccount == "" {
		return errors.New("from account is required")
	}
	if t.ToAccount == "" {
		return errors.New("to account is required")
	}
	if t.FromAccount == t.ToAccount {
		return errors.New("from and to accounts must differ")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", t.Amount)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", t.Currency)
	}
	return nil
}
