package execution

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nft_market/internal/domain"
)

// DepositRequest is the raw deposit form. Every field is required.
type DepositRequest struct {
	ContractRef string `json:"contract"`
	ItemID      string `json:"item_id"`
	Price       string `json:"price"` // whole units, e.g. "3.2"
	MediaRef    string `json:"media"`
	DisplayName string `json:"name"`
}

// Validate converts the form into a listing owned by owner.
func (r DepositRequest) Validate(owner string) (domain.Listing, error) {
	contract := strings.TrimSpace(r.ContractRef)
	itemID := strings.TrimSpace(r.ItemID)
	price := strings.TrimSpace(r.Price)
	media := strings.TrimSpace(r.MediaRef)
	name := strings.TrimSpace(r.DisplayName)

	required := []struct{ field, value string }{
		{"contract", contract},
		{"item_id", itemID},
		{"price", price},
		{"media", media},
		{"name", name},
	}
	for _, f := range required {
		if f.value == "" {
			return domain.Listing{}, domain.NewValidationError(f.field, "required")
		}
	}

	if !common.IsHexAddress(contract) {
		return domain.Listing{}, domain.NewValidationError("contract", "not a hex address")
	}

	id, err := strconv.ParseUint(itemID, 10, 64)
	if err != nil {
		return domain.Listing{}, domain.NewValidationError("item_id", "not an unsigned integer")
	}

	amount, err := domain.ParseAmount(price)
	if err != nil {
		return domain.Listing{}, domain.NewValidationError("price", err.Error())
	}
	if amount.IsZero() {
		return domain.Listing{}, domain.NewValidationError("price", "must be positive")
	}

	if strings.TrimSpace(owner) == "" {
		return domain.Listing{}, domain.NewValidationError("account", "no connected account")
	}

	return domain.Listing{
		ContractRef: strings.ToLower(contract),
		ItemID:      id,
		Owner:       strings.ToLower(strings.TrimSpace(owner)),
		Price:       amount,
		IsListed:    true,
		MediaRef:    media,
		DisplayName: name,
	}, nil
}
