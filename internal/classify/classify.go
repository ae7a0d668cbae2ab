package classify

import (
	"fmt"
	"strings"

	"nft_market/internal/domain"
)

// DefaultTopK is the size of the rank-based top tier.
const DefaultTopK = 3

// DefaultTerms are the name fragments of the distinguished category.
var DefaultTerms = []string{"Dragon", "Cat", "Monkey"}

// Policy decides top-tier membership. Implementations must be pure.
type Policy interface {
	// TopIndices returns the positions in set that belong to the top tier, in set order.
	TopIndices(set domain.ListingSet) []int
	Name() string
}

// RankPolicy puts the first K listings of the ranked set in the top tier.
type RankPolicy struct {
	K int
}

func (p RankPolicy) Name() string { return "rank" }

func (p RankPolicy) TopIndices(set domain.ListingSet) []int {
	k := min(max(p.K, 0), len(set))
	out := make([]int, k)
	for i := range out {
		out[i] = i
	}
	return out
}

// NamePolicy puts every listing whose display name contains one of Terms in the top tier.
// Matching is case-insensitive.
type NamePolicy struct {
	Terms []string
}

func (p NamePolicy) Name() string { return "name" }

func (p NamePolicy) TopIndices(set domain.ListingSet) []int {
	terms := make([]string, 0, len(p.Terms))
	for _, t := range p.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}

	var out []int
	for i := range set {
		name := strings.ToLower(set[i].DisplayName)
		for _, t := range terms {
			if strings.Contains(name, t) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Tiers is the classified view of one listing set.
type Tiers struct {
	Top      domain.ListingSet `json:"top"`
	Standard domain.ListingSet `json:"standard"`
	Sold     domain.ListingSet `json:"sold"`
}

// Classify partitions set into tiers. Sold is computed independently of tier membership.
func Classify(set domain.ListingSet, policy Policy) Tiers {
	tiers := Tiers{
		Top:      domain.ListingSet{},
		Standard: domain.ListingSet{},
		Sold:     domain.ListingSet{},
	}

	top := make(map[int]bool)
	for _, i := range policy.TopIndices(set) {
		top[i] = true
	}

	for i, l := range set {
		if top[i] {
			tiers.Top = append(tiers.Top, l)
		} else {
			tiers.Standard = append(tiers.Standard, l)
		}
		if l.IsSold {
			tiers.Sold = append(tiers.Sold, l)
		}
	}
	return tiers
}

// Stats are the marketplace counters.
type Stats struct {
	Total  int `json:"total"`
	Sold   int `json:"sold"`
	Active int `json:"active"` // listed and not sold
}

// Summarize counts the set.
func Summarize(set domain.ListingSet) Stats {
	s := Stats{Total: len(set)}
	for i := range set {
		if set[i].IsSold {
			s.Sold++
		}
		if set[i].Purchasable() {
			s.Active++
		}
	}
	return s
}

// PolicyFromConfig builds the configured policy. There is no implicit fallback.
func PolicyFromConfig(name string, k int, terms []string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rank":
		if k <= 0 {
			return nil, fmt.Errorf("rank policy needs a positive k, got %d", k)
		}
		return RankPolicy{K: k}, nil
	case "name":
		if len(terms) == 0 {
			return nil, fmt.Errorf("name policy needs at least one term")
		}
		return NamePolicy{Terms: terms}, nil
	default:
		return nil, fmt.Errorf("unknown tier policy: %q", name)
	}
}
