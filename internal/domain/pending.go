package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Action names a user-initiated marketplace operation.
type Action string

const (
	ActionDeposit Action = "deposit"
	ActionBuy     Action = "buy"
	ActionRandom  Action = "random"
)

// PendingTx is transient state held while an action is in flight.
// It is destroyed on success, failure or dismissal.
type PendingTx struct {
	ID        uuid.UUID    `json:"id"`
	Action    Action       `json:"action"`
	Target    ListingKey   `json:"target"`
	Amount    *uint256.Int `json:"amount,omitempty"`
	Recipient string       `json:"recipient,omitempty"`
	StartedAt time.Time    `json:"started_at"`

	// OnDone is invoked once with the outcome unless the transaction was dismissed.
	OnDone func(error) `json:"-"`
}

// NewPendingTx creates a pending transaction with a fresh ID
func NewPendingTx(action Action, target ListingKey, amount *uint256.Int) *PendingTx {
	return &PendingTx{
		ID:        uuid.New(),
		Action:    action,
		Target:    target,
		Amount:    amount,
		StartedAt: time.Now(),
	}
}
