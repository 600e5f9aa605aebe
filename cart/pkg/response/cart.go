package response

import (
	"github.com/shopspring/decimal"

	"github.com/sienaconfecciones/storefront/internal/identifier"
)

func init() {
	// Money travels as JSON numbers to the order store and to storefront clients.
	decimal.MarshalJSONWithoutQuotes = true
}

type Personalization struct {
	Color   string `json:"color"             validate:"omitempty,hexcolor"`
	LogoURL string `json:"logoUrl,omitempty" validate:"omitempty,url"`
	Texto   string `json:"texto,omitempty"   validate:"max=140"`
}

// CartEntry is one cart line. LineID tells apart lines of the same product with different
// personalizations and is only meaningful inside the cart.
type CartEntry struct {
	LineID          string           `json:"lineId,omitempty"`
	ID              identifier.ID    `json:"id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	Quantity        int              `json:"quantity"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	Personalization *Personalization `json:"personalization,omitempty"`
}

// LineTotal is price times quantity. A missing quantity counts as one unit.
func (e CartEntry) LineTotal() decimal.Decimal {
	quantity := e.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	return e.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

type Cart struct {
	SessionID string          `json:"sessionId"`
	Entries   []CartEntry     `json:"entries"`
	Total     decimal.Decimal `json:"total"`
}

func Total(entries []CartEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.LineTotal())
	}
	return total
}
