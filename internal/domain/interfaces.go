package domain

import (
	"context"

	"github.com/holiman/uint256"
)

// RawListing is a listing as returned by the external ledger, before normalization.
type RawListing struct {
	NFTContract string `json:"nftContract"`
	TokenID     string `json:"tokenId"`
	Owner       string `json:"owner"`
	Price       string `json:"price"` // wei, decimal or 0x-hex
	IsListed    bool   `json:"isListed"`
	IsSold      bool   `json:"isSold"`
	ImageURI    string `json:"imageUri"`
	Name        string `json:"name"`
}

// LedgerReader is the read side of the external ledger.
// ready is false while the ledger has no data yet; that is distinct from an empty slice.
type LedgerReader interface {
	GetAllListedNFTs(ctx context.Context) (items []RawListing, ready bool, err error)
}

// LedgerWriter is the write side of the external ledger. Each call eventually succeeds or fails.
type LedgerWriter interface {
	ListNFT(ctx context.Context, contractRef string, itemID uint64, price *uint256.Int, mediaRef, displayName string) error
	BuyNFT(ctx context.Context, listingID uint64, value *uint256.Int) error
	SendRandomNFT(ctx context.Context, itemID uint64, recipient string) error
}

// Ledger combines both sides.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// AccountProvider supplies the current user's address, or "" when none is connected.
type AccountProvider interface {
	Address() string
}

// Journal records transaction outcomes for later inspection.
type Journal interface {
	Record(rec *TxRecord) error
}
