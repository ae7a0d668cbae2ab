package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PlaceholderMedia is served when a listing carries no media reference.
const PlaceholderMedia = "/placeholder-nft.svg"

// ListingKey identifies a listing across the visible set.
type ListingKey struct {
	ContractRef string `json:"contract"`
	ItemID      uint64 `json:"item_id"`
}

// NewListingKey normalizes the contract reference so keys compare case-insensitively.
func NewListingKey(contractRef string, itemID uint64) ListingKey {
	return ListingKey{ContractRef: strings.ToLower(strings.TrimSpace(contractRef)), ItemID: itemID}
}

func (k ListingKey) String() string {
	return k.ContractRef + "-" + strconv.FormatUint(k.ItemID, 10)
}

// Listing is the canonical record for one sellable item.
// Price is held in the smallest currency unit (wei).
type Listing struct {
	ContractRef string       `json:"contract"`
	ItemID      uint64       `json:"item_id"`
	Owner       string       `json:"owner"`
	Price       *uint256.Int `json:"price"`
	IsListed    bool         `json:"is_listed"`
	IsSold      bool         `json:"is_sold"`
	MediaRef    string       `json:"media,omitempty"`
	DisplayName string       `json:"name,omitempty"`
}

// Key returns the identity of the listing.
func (l *Listing) Key() ListingKey {
	return NewListingKey(l.ContractRef, l.ItemID)
}

// Title returns the display name, falling back to "NFT #<id>".
func (l *Listing) Title() string {
	if name := strings.TrimSpace(l.DisplayName); name != "" {
		return name
	}
	return "NFT #" + strconv.FormatUint(l.ItemID, 10)
}

// Media returns the media reference or the placeholder.
func (l *Listing) Media() string {
	if ref := strings.TrimSpace(l.MediaRef); ref != "" {
		return ref
	}
	return PlaceholderMedia
}

// PriceOrZero never returns nil.
func (l *Listing) PriceOrZero() *uint256.Int {
	if l.Price == nil {
		return new(uint256.Int)
	}
	return l.Price
}

// Purchasable reports whether the listing counts as active inventory.
func (l *Listing) Purchasable() bool {
	return l.IsListed && !l.IsSold
}

// MarkSold is the only sale-state transition. There is no inverse.
func (l *Listing) MarkSold() {
	l.IsSold = true
}

// OwnedBy compares the owner against a viewer address, ignoring case.
func (l *Listing) OwnedBy(viewer string) bool {
	return SameAddress(l.Owner, viewer)
}

// SameAddress compares two account identities case-insensitively.
// Empty identities never match.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

// Clone returns a deep copy (Price included).
func (l Listing) Clone() Listing {
	if l.Price != nil {
		l.Price = l.Price.Clone()
	}
	return l
}

// ListingSet is an ordered sequence of listings. Order is a ranking.
type ListingSet []Listing

// Clone deep-copies the set.
func (s ListingSet) Clone() ListingSet {
	if s == nil {
		return ListingSet{}
	}
	out := make(ListingSet, len(s))
	for i := range s {
		out[i] = s[i].Clone()
	}
	return out
}

// Index returns the position of key, or -1.
func (s ListingSet) Index(key ListingKey) int {
	for i := range s {
		if s[i].Key() == key {
			return i
		}
	}
	return -1
}

// Find returns a copy of the listing with the given key.
func (s ListingSet) Find(key ListingKey) (Listing, bool) {
	if i := s.Index(key); i >= 0 {
		return s[i], true
	}
	return Listing{}, false
}

// Unsold returns the listings not yet sold, in set order.
func (s ListingSet) Unsold() ListingSet {
	out := make(ListingSet, 0, len(s))
	for _, l := range s {
		if !l.IsSold {
			out = append(out, l)
		}
	}
	return out
}

// RankByPrice sorts in place by price descending. Ties keep source order.
func (s ListingSet) RankByPrice() {
	slices.SortStableFunc(s, func(a, b Listing) int {
		return b.PriceOrZero().Cmp(a.PriceOrZero())
	})
}

// InsertRanked places l after every listing priced at or above it.
func (s ListingSet) InsertRanked(l Listing) ListingSet {
	price := l.PriceOrZero()
	pos := len(s)
	for i := range s {
		if s[i].PriceOrZero().Cmp(price) < 0 {
			pos = i
			break
		}
	}
	return slices.Insert(s, pos, l)
}
