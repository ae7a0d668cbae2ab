package execution

import (
	"context"

	"github.com/holiman/uint256"

	"nft_market/internal/domain"
)

// Book is the canonical listing store the orchestrator reads and mutates.
// engine.Market satisfies it.
type Book interface {
	Mode() domain.Mode
	Listings() domain.ListingSet
	Mutate(ctx context.Context, mode domain.Mode, fn func(set *domain.ListingSet) error) error
	Refetch(ctx context.Context) error
}

// Orchestrator executes user-initiated marketplace actions.
type Orchestrator interface {
	// Deposit lists a new item for sale.
	Deposit(ctx context.Context, req DepositRequest) error

	// Buy purchases the listing identified by key. A nil price pays the listed price.
	Buy(ctx context.Context, key domain.ListingKey, price *uint256.Int) error

	// RandomAssign sends a uniformly chosen unsold listing to recipient.
	RandomAssign(ctx context.Context, recipient string) (domain.Listing, error)
}

// Strategy applies an already validated action in one mode.
type Strategy interface {
	Mode() domain.Mode
	Deposit(ctx context.Context, l domain.Listing) error
	Buy(ctx context.Context, target domain.Listing, value *uint256.Int) error
	Assign(ctx context.Context, target domain.Listing, recipient string) error
}
