package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	"github.com/sienaconfecciones/storefront/internal/identifier"
)

type Status string

const (
	StatusInProcess     Status = "en proceso"
	StatusManufacturing Status = "fabricación"
	StatusShipped       Status = "enviado"
)

var Statuses = []Status{StatusInProcess, StatusManufacturing, StatusShipped}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

type PaymentMethod string

const PaymentCashOnDelivery PaymentMethod = "contraentrega"

type Order struct {
	ID         identifier.ID            `json:"id"`
	Nombre     string                   `json:"nombre"`
	Direccion  string                   `json:"direccion"`
	Telefono   string                   `json:"telefono"`
	Correo     string                   `json:"correo"`
	MetodoPago PaymentMethod            `json:"metodoPago"`
	Cart       []cartResponse.CartEntry `json:"cart"`
	Total      decimal.Decimal          `json:"total"`
	Date       Date                     `json:"date"`
	Status     Status                   `json:"status"`

	raw map[string]json.RawMessage
}

type orderFields Order

// UnmarshalJSON keeps the record exactly as the store sent it next to the typed fields, so
// fields this service does not model survive an update.
func (o *Order) UnmarshalJSON(data []byte) error {
	fields := orderFields{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order(fields)
	o.raw = raw
	return nil
}

// Record is the stored order with only status and direccion taken from o. Orders that were
// not decoded from the store are encoded from their typed fields.
func (o Order) Record() (json.RawMessage, error) {
	if o.raw == nil {
		return json.Marshal(orderFields(o))
	}

	record := make(map[string]json.RawMessage, len(o.raw)+2)
	for k, v := range o.raw {
		record[k] = v
	}
	status, err := json.Marshal(o.Status)
	if err != nil {
		return nil, fmt.Errorf("failed marshaling status with error=%w", err)
	}
	direccion, err := json.Marshal(o.Direccion)
	if err != nil {
		return nil, fmt.Errorf("failed marshaling direccion with error=%w", err)
	}
	record["status"] = status
	record["direccion"] = direccion
	return json.Marshal(record)
}

// Date is the order timestamp. Text the store holds that is not RFC 3339 is kept as is and
// leaves Time zero.
type Date struct {
	Time time.Time
	raw  json.RawMessage
}

func (d *Date) UnmarshalJSON(data []byte) error {
	d.raw = append(json.RawMessage(nil), data...)
	d.Time = time.Time{}

	text := ""
	if err := json.Unmarshal(data, &text); err != nil {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		d.Time = t
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(d.raw)) > 0 {
		return d.raw, nil
	}
	return json.Marshal(d.Time)
}

// Notification is the body of the order confirmation email request.
type Notification struct {
	Nombre     string                   `json:"nombre"`
	Direccion  string                   `json:"direccion"`
	Telefono   string                   `json:"telefono"`
	Correo     string                   `json:"correo"`
	MetodoPago PaymentMethod            `json:"metodoPago"`
	Cart       []cartResponse.CartEntry `json:"cart"`
	Total      decimal.Decimal          `json:"total"`
}
