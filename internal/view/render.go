package view

import (
	"github.com/holiman/uint256"

	"nft_market/internal/domain"
	"nft_market/internal/engine"
)

// Badges shown on cards.
const (
	BadgeLegendary = "LEGENDARY"
	BadgeRare      = "RARE"
	BadgeSoldOut   = "SOLD OUT"
)

// DefaultCurrency is the unit suffix for formatted prices.
const DefaultCurrency = "MONAD"

// Formatter turns a wei amount into display text.
type Formatter func(v *uint256.Int) string

// MediaResolver maps a media ref to the URL a client should load.
type MediaResolver interface {
	Resolve(ref string) string
}

// CurrencyFormatter formats with domain.FormatAmount and appends a unit.
func CurrencyFormatter(unit string) Formatter {
	return func(v *uint256.Int) string {
		return domain.FormatAmount(v) + " " + unit
	}
}

// Card is one rendered listing.
type Card struct {
	Key       string `json:"key"`
	Contract  string `json:"contract"`
	ItemID    uint64 `json:"item_id"`
	Title     string `json:"title"`
	Media     string `json:"media"`
	Owner     string `json:"owner"`
	Price     string `json:"price"`     // formatted
	PriceWei  string `json:"price_wei"` // decimal wei
	Badge     string `json:"badge"`
	Rank      int    `json:"rank,omitempty"` // 1-based, top tier only
	IsSold    bool   `json:"is_sold"`
	IsOwner   bool   `json:"is_owner"`
	CanBuy    bool   `json:"can_buy"`
	IsFeature bool   `json:"is_featured,omitempty"`
}

// Featured is the showcase slot. Placeholder is set when the top tier is empty.
type Featured struct {
	Card        *Card `json:"card,omitempty"`
	Index       int   `json:"index"`
	Count       int   `json:"count"`
	Placeholder bool  `json:"placeholder"`
}

// Stats mirrors the marketplace counters.
type Stats struct {
	Total  int `json:"total"`
	Sold   int `json:"sold"`
	Active int `json:"active"`
}

// Page is the full presentation model.
type Page struct {
	Mode       string   `json:"mode"`
	Loading    bool     `json:"loading"`
	Error      string   `json:"error,omitempty"`
	Viewer     string   `json:"viewer,omitempty"`
	Policy     string   `json:"policy"`
	Featured   Featured `json:"featured"`
	Top        []Card   `json:"top"`
	Standard   []Card   `json:"standard"`
	Stats      Stats    `json:"stats"`
	Generation uint64   `json:"generation"`
}

// Renderer holds the formatting collaborators. Its zero value is usable.
type Renderer struct {
	Format Formatter
	Media  MediaResolver
}

// Render is a pure projection of one state snapshot for one viewer.
func (r Renderer) Render(st engine.State, viewer string) Page {
	format := r.Format
	if format == nil {
		format = CurrencyFormatter(DefaultCurrency)
	}

	page := Page{
		Mode:       st.Mode.String(),
		Loading:    st.Loading && st.Mode == domain.ModeLive,
		Error:      st.LastError,
		Viewer:     viewer,
		Policy:     st.Policy,
		Top:        make([]Card, 0, len(st.Tiers.Top)),
		Standard:   make([]Card, 0, len(st.Tiers.Standard)),
		Stats:      Stats{Total: st.Stats.Total, Sold: st.Stats.Sold, Active: st.Stats.Active},
		Generation: st.Generation,
	}

	for i, l := range st.Tiers.Top {
		c := r.card(l, viewer, format)
		c.Rank = i + 1
		if !l.IsSold {
			c.Badge = BadgeLegendary
		}
		c.IsFeature = st.HasFeatured && st.Featured == i
		page.Top = append(page.Top, c)
	}
	for _, l := range st.Tiers.Standard {
		c := r.card(l, viewer, format)
		if !l.IsSold {
			c.Badge = BadgeRare
		}
		page.Standard = append(page.Standard, c)
	}

	page.Featured = Featured{Count: len(page.Top), Placeholder: true}
	if st.HasFeatured && st.Featured < len(page.Top) {
		c := page.Top[st.Featured]
		page.Featured = Featured{Card: &c, Index: st.Featured, Count: len(page.Top)}
	}

	return page
}

// Render uses the default renderer.
func Render(st engine.State, viewer string) Page {
	return Renderer{}.Render(st, viewer)
}

func (r Renderer) card(l domain.Listing, viewer string, format Formatter) Card {
	media := l.Media()
	if r.Media != nil {
		media = r.Media.Resolve(media)
	}

	isOwner := l.OwnedBy(viewer)
	c := Card{
		Key:      l.Key().String(),
		Contract: l.ContractRef,
		ItemID:   l.ItemID,
		Title:    l.Title(),
		Media:    media,
		Owner:    l.Owner,
		Price:    format(l.PriceOrZero()),
		PriceWei: l.PriceOrZero().Dec(),
		IsSold:   l.IsSold,
		IsOwner:  isOwner,
		CanBuy:   l.Purchasable() && !isOwner,
	}
	if l.IsSold {
		c.Badge = BadgeSoldOut
	}
	return c
}
