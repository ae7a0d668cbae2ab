package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/holiman/uint256"

	"nft_market/internal/domain"
)

// LiveStrategy submits actions to the external ledger and reconciles by refetching.
// The local set is never edited directly in live mode.
type LiveStrategy struct {
	ledger domain.LedgerWriter
	book   Book
}

func NewLiveStrategy(ledger domain.LedgerWriter, book Book) *LiveStrategy {
	return &LiveStrategy{ledger: ledger, book: book}
}

func (s *LiveStrategy) Mode() domain.Mode { return domain.ModeLive }

func (s *LiveStrategy) Deposit(ctx context.Context, l domain.Listing) error {
	return s.submit(ctx, "listNFT", func(ctx context.Context) error {
		return s.ledger.ListNFT(ctx, l.ContractRef, l.ItemID, l.Price, l.MediaRef, l.DisplayName)
	})
}

// Buy pays value for the target. The ledger identifies listings by item id.
func (s *LiveStrategy) Buy(ctx context.Context, target domain.Listing, value *uint256.Int) error {
	return s.submit(ctx, "buyNFT", func(ctx context.Context) error {
		return s.ledger.BuyNFT(ctx, target.ItemID, value)
	})
}

func (s *LiveStrategy) Assign(ctx context.Context, target domain.Listing, recipient string) error {
	return s.submit(ctx, "sendRandomNFT", func(ctx context.Context) error {
		return s.ledger.SendRandomNFT(ctx, target.ItemID, recipient)
	})
}

func (s *LiveStrategy) submit(ctx context.Context, op string, call func(ctx context.Context) error) error {
	if s.ledger == nil {
		return domain.NewFatalExternalCallError(op, domain.ErrLedgerUnavailable)
	}

	// The write and its reconciliation outlive the caller; dismissal and disconnects do not abort them.
	ctx = context.WithoutCancel(ctx)

	if err := call(ctx); err != nil {
		slog.Warn("LIVE: Ledger write failed", slog.String("op", op), slog.Any("error", err))
		return wrapWriteError(op, err)
	}

	slog.Info("LIVE: Ledger write confirmed", slog.String("op", op))
	if err := s.book.Refetch(ctx); err != nil {
		slog.Warn("LIVE: Refetch request failed", slog.String("op", op), slog.Any("error", err))
	}
	return nil
}

func wrapWriteError(op string, err error) error {
	var ext *domain.ExternalCallError
	if errors.As(err, &ext) {
		return err
	}
	return domain.NewExternalCallError(op, err)
}
