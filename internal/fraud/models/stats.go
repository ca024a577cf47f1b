package models

import "time"

// AccountStats is the fraud context's running view of one account's outgoing
// transfers. It is local state rebuilt purely from consumed events.
type AccountStats struct {
	Account       string
	TransferCount int64
	TotalAmount   int64
	LastTransfer  time.Time
}

// Flag marks one suspicious transfer for review.
type Flag struct {
	Account   string
	EventID   string
	Amount    int64
	Currency  string
	Reason    string
	FlaggedAt time.Time
}
