package infra

import (
	"strings"
	"sync"
)

// StaticAccount is an AccountProvider backed by a configured address.
// An empty address means no account is connected.
type StaticAccount struct {
	mu      sync.RWMutex
	address string
}

func NewStaticAccount(address string) *StaticAccount {
	return &StaticAccount{address: strings.TrimSpace(address)}
}

func (a *StaticAccount) Address() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.address
}

// Set replaces the connected address.
func (a *StaticAccount) Set(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.address = strings.TrimSpace(address)
}
