package source

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"nft_market/internal/domain"
)

// QueryResult is the outcome of one ledger read.
// Pending means the ledger has no data yet, which is not the same as a confirmed empty Items.
type QueryResult struct {
	Pending bool
	Items   []domain.RawListing
	Err     error
}

// PendingResult is the state of a live read that has not resolved.
var PendingResult = QueryResult{Pending: true}

// Resolve produces the current listing set. It is a pure function of (mode, query).
// In simulation mode the query is ignored.
func Resolve(mode domain.Mode, q QueryResult) (domain.ListingSet, error) {
	if mode == domain.ModeSimulation {
		return Seed(), nil
	}

	if q.Err != nil {
		return domain.ListingSet{}, wrapReadError(q.Err)
	}
	if q.Pending {
		return domain.ListingSet{}, nil
	}

	return Normalize(q.Items), nil
}

// Normalize converts raw ledger rows to listings and ranks them by price.
// Rows that cannot be parsed are dropped; duplicate identities keep the first occurrence.
func Normalize(raw []domain.RawListing) domain.ListingSet {
	set := make(domain.ListingSet, 0, len(raw))
	seen := make(map[domain.ListingKey]struct{}, len(raw))

	for i, r := range raw {
		l, err := normalizeOne(r)
		if err != nil {
			slog.Warn("Dropping malformed listing", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		key := l.Key()
		if _, dup := seen[key]; dup {
			slog.Warn("Dropping duplicate listing", slog.String("key", key.String()))
			continue
		}
		seen[key] = struct{}{}
		set = append(set, l)
	}

	set.RankByPrice()
	return set
}

func normalizeOne(r domain.RawListing) (domain.Listing, error) {
	contract := strings.ToLower(strings.TrimSpace(r.NFTContract))
	if contract == "" {
		return domain.Listing{}, fmt.Errorf("missing contract")
	}

	id, err := strconv.ParseUint(strings.TrimSpace(r.TokenID), 0, 64)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("token id %q: %w", r.TokenID, err)
	}

	price, err := domain.ParseWei(r.Price)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("price %q: %w", r.Price, err)
	}

	return domain.Listing{
		ContractRef: contract,
		ItemID:      id,
		Owner:       strings.ToLower(strings.TrimSpace(r.Owner)),
		Price:       price,
		IsListed:    r.IsListed,
		IsSold:      r.IsSold,
		MediaRef:    strings.TrimSpace(r.ImageURI),
		DisplayName: strings.TrimSpace(r.Name),
	}, nil
}

func wrapReadError(err error) error {
	var ext *domain.ExternalCallError
	if errors.As(err, &ext) {
		return err
	}
	return domain.NewExternalCallError("getAllListedNFTs", err)
}
