package source

import (
	"strconv"

	"nft_market/internal/domain"
)

const (
	seedContract = "0x1234567890123456789012345678901234567890"
	seedOwner    = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
)

type seedRow struct {
	name  string
	price string
	sold  bool
}

// Ordered by price descending.
var seedRows = []seedRow{
	{"Golden Dragon #1", "3.2", false},
	{"Cyber Cat #2", "2.8", false},
	{"Space Monkey #3", "2.1", false},
	{"Sold Out NFT #4", "1.5", true},
	{"Digital Art #5", "0.9", false},
	{"Abstract NFT #6", "0.7", false},
	{"Pixel Art #7", "0.4", false},
	{"Minimalist #8", "0.2", false},
	{"Cool Frog #9", "0.15", false},
	{"Purple Frens #10", "0.12", false},
	{"Party Squad #11", "0.08", false},
}

// Seed returns a fresh copy of the fixed simulation set.
func Seed() domain.ListingSet {
	set := make(domain.ListingSet, 0, len(seedRows))
	for i, row := range seedRows {
		id := uint64(i + 1)
		set = append(set, domain.Listing{
			ContractRef: seedContract,
			ItemID:      id,
			Owner:       seedOwner,
			Price:       domain.MustParseAmount(row.price),
			IsListed:    true,
			IsSold:      row.sold,
			MediaRef:    "/nft" + strconv.FormatUint(id, 10) + ".jpeg",
			DisplayName: row.name,
		})
	}
	return set
}
