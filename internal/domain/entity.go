package domain

import (
	"time"
)

// TxRecord is a journaled outcome of one marketplace action
type TxRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Action      string    `json:"action" gorm:"index"` // "deposit", "buy", "random"
	Mode        string    `json:"mode"`
	ContractRef string    `json:"contract"`
	ItemID      uint64    `json:"item_id"`
	Amount      string    `json:"amount"` // wei, decimal
	Recipient   string    `json:"recipient,omitempty"`
	Status      string    `json:"status" gorm:"index"` // "ok" or "failed"
	Error       string    `json:"error,omitempty"`
	Dismissed   bool      `json:"dismissed"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	TxStatusOK     = "ok"
	TxStatusFailed = "failed"
)

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
