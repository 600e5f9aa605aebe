package request

import (
	"github.com/shopspring/decimal"

	"github.com/sienaconfecciones/storefront/cart/pkg/response"
	"github.com/sienaconfecciones/storefront/internal/identifier"
)

type AddCartEntry struct {
	ProductID       string                    `validate:"required"                json:"id"`
	Name            string                    `validate:"required"                json:"name"`
	Price           decimal.Decimal           `validate:"gte=0"                   json:"price"`
	Quantity        int                       `validate:"required,gte=1"          json:"quantity"`
	ImageURL        string                    `validate:"omitempty,url"           json:"imageUrl"`
	Personalization *response.Personalization `validate:"omitempty"               json:"personalization"`
}

func (r AddCartEntry) Entry() response.CartEntry {
	return response.CartEntry{
		ID:              identifier.New(r.ProductID),
		Name:            r.Name,
		Price:           r.Price,
		Quantity:        r.Quantity,
		ImageURL:        r.ImageURL,
		Personalization: r.Personalization,
	}
}

type UpdateQuantity struct {
	Quantity int `validate:"required,gte=1" json:"quantity"`
}
