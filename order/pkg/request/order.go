package request

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

// Customer holds the checkout form fields.
type Customer struct {
	Nombre     string                 `validate:"required"                       json:"nombre"`
	Direccion  string                 `validate:"required"                       json:"direccion"`
	Telefono   string                 `validate:"required,telefono"              json:"telefono"`
	Correo     string                 `validate:"required,correo"                json:"correo"`
	MetodoPago response.PaymentMethod `validate:"required,oneof=contraentrega"   json:"metodoPago"`
}

func (cu Customer) MarshalZerologObject(e *zerolog.Event) {
	e.Str("nombre", cu.Nombre).Str("metodoPago", string(cu.MetodoPago))
}

type Checkout struct {
	Customer
	IdempotencyKey string `json:"idempotencyKey"`
}

// CreateOrder is the order record sent to the store. The store assigns the id.
type CreateOrder struct {
	Nombre     string                   `json:"nombre"`
	Direccion  string                   `json:"direccion"`
	Telefono   string                   `json:"telefono"`
	Correo     string                   `json:"correo"`
	MetodoPago response.PaymentMethod   `json:"metodoPago"`
	Cart       []cartResponse.CartEntry `json:"cart"`
	Total      decimal.Decimal          `json:"total"`
	Date       time.Time                `json:"date"`
	Status     response.Status          `json:"status"`
}

func (o CreateOrder) Notification() response.Notification {
	return response.Notification{
		Nombre:     o.Nombre,
		Direccion:  o.Direccion,
		Telefono:   o.Telefono,
		Correo:     o.Correo,
		MetodoPago: o.MetodoPago,
		Cart:       o.Cart,
		Total:      o.Total,
	}
}

type EditOrder struct {
	Status    response.Status `validate:"required" json:"status"`
	Direccion string          `validate:"required" json:"direccion"`
}
