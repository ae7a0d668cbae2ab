package execution

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"nft_market/internal/domain"
)

// SimulationStrategy applies actions optimistically to the local set. No external call is made.
type SimulationStrategy struct {
	book Book
}

func NewSimulationStrategy(book Book) *SimulationStrategy {
	return &SimulationStrategy{book: book}
}

func (s *SimulationStrategy) Mode() domain.Mode { return domain.ModeSimulation }

// Deposit inserts the listing at its price rank.
func (s *SimulationStrategy) Deposit(ctx context.Context, l domain.Listing) error {
	err := s.book.Mutate(ctx, domain.ModeSimulation, func(set *domain.ListingSet) error {
		if set.Index(l.Key()) >= 0 {
			return domain.NewValidationError("item_id", "already listed")
		}
		*set = set.InsertRanked(l)
		return nil
	})
	if err == nil {
		slog.Info("SIMULATION: Listing deposited", slog.String("key", l.Key().String()), slog.String("price", domain.FormatAmount(l.Price)))
	}
	return err
}

// Buy marks the target sold in place.
func (s *SimulationStrategy) Buy(ctx context.Context, target domain.Listing, value *uint256.Int) error {
	key := target.Key()
	err := s.book.Mutate(ctx, domain.ModeSimulation, func(set *domain.ListingSet) error {
		i, err := unsoldIndex(*set, key)
		if err != nil {
			return err
		}
		(*set)[i].MarkSold()
		return nil
	})
	if err == nil {
		slog.Info("SIMULATION: Listing bought", slog.String("key", key.String()), slog.String("value", domain.FormatAmount(value)))
	}
	return err
}

// Assign marks the target sold and binds it to recipient.
func (s *SimulationStrategy) Assign(ctx context.Context, target domain.Listing, recipient string) error {
	key := target.Key()
	err := s.book.Mutate(ctx, domain.ModeSimulation, func(set *domain.ListingSet) error {
		i, err := unsoldIndex(*set, key)
		if err != nil {
			return err
		}
		(*set)[i].MarkSold()
		(*set)[i].Owner = recipient
		return nil
	})
	if err == nil {
		slog.Info("SIMULATION: Listing assigned", slog.String("key", key.String()), slog.String("recipient", recipient))
	}
	return err
}

// unsoldIndex re-checks the target against the committed set.
func unsoldIndex(set domain.ListingSet, key domain.ListingKey) (int, error) {
	i := set.Index(key)
	if i < 0 {
		return -1, &domain.PurchaseError{Key: key, Reason: "not found"}
	}
	if set[i].IsSold {
		return -1, &domain.PurchaseError{Key: key, Reason: "already sold"}
	}
	return i, nil
}
