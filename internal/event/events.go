package event

import (
	"nft_market/internal/domain"
	"nft_market/internal/rotation"
	"nft_market/internal/source"
)

// Type names an event kind for logging.
type Type string

const (
	TypeModeChanged   Type = "MODE_CHANGED"
	TypeQueryResolved Type = "QUERY_RESOLVED"
	TypeRefetch       Type = "REFETCH"
	TypeRotation      Type = "ROTATION"
	TypeMutate        Type = "MUTATE"
)

// Event is anything the market loop processes.
type Event interface {
	GetType() Type
}

// ModeChangedEvent switches the data source. The previous set is discarded.
type ModeChangedEvent struct {
	Mode domain.Mode
}

func (e *ModeChangedEvent) GetType() Type { return TypeModeChanged }

// QueryResolvedEvent carries a ledger read outcome tagged with the generation that issued it.
type QueryResolvedEvent struct {
	Generation uint64
	Result     source.QueryResult
}

func (e *QueryResolvedEvent) GetType() Type { return TypeQueryResolved }

// RefetchEvent requests reconciliation with the ledger.
type RefetchEvent struct{}

func (e *RefetchEvent) GetType() Type { return TypeRefetch }

// RotationEvent feeds one input into the featured cursor.
type RotationEvent struct {
	Input rotation.Input
}

func (e *RotationEvent) GetType() Type { return TypeRotation }

// MutateEvent applies an optimistic local change. Fn runs on a copy; the copy is committed
// only when Fn returns nil. The outcome is sent on Reply (buffered, capacity 1).
type MutateEvent struct {
	Mode  domain.Mode // Mode the caller expects; mismatches are rejected
	Fn    func(set *domain.ListingSet) error
	Reply chan error
}

func (e *MutateEvent) GetType() Type { return TypeMutate }
