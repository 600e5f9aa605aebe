package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

func validCustomer() request.Customer {
	return request.Customer{
		Nombre:     "Ana",
		Direccion:  "Calle 1 # 2-3",
		Telefono:   "3001234567",
		Correo:     "ana@x.com",
		MetodoPago: response.PaymentCashOnDelivery,
	}
}

func TestValidateCustomer(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*request.Customer)
		expected string
	}{
		{
			name:     "given complete customer should pass",
			modify:   func(*request.Customer) {},
			expected: "",
		},
		{
			name:     "given empty nombre should ask for all fields",
			modify:   func(cu *request.Customer) { cu.Nombre = "" },
			expected: MsgIncompleteFields,
		},
		{
			name:     "given empty direccion should ask for all fields",
			modify:   func(cu *request.Customer) { cu.Direccion = "" },
			expected: MsgIncompleteFields,
		},
		{
			name:     "given empty metodoPago should ask for all fields",
			modify:   func(cu *request.Customer) { cu.MetodoPago = "" },
			expected: MsgIncompleteFields,
		},
		{
			name: "given empty field and invalid phone should report empty field first",
			modify: func(cu *request.Customer) {
				cu.Correo = ""
				cu.Telefono = "123"
			},
			expected: MsgIncompleteFields,
		},
		{
			name:     "given phone not starting with 3 should reject phone",
			modify:   func(cu *request.Customer) { cu.Telefono = "2001234567" },
			expected: MsgInvalidTelefono,
		},
		{
			name:     "given phone with 9 digits should reject phone",
			modify:   func(cu *request.Customer) { cu.Telefono = "300123456" },
			expected: MsgInvalidTelefono,
		},
		{
			name:     "given phone with 11 digits should reject phone",
			modify:   func(cu *request.Customer) { cu.Telefono = "30012345678" },
			expected: MsgInvalidTelefono,
		},
		{
			name:     "given phone with separators should reject phone",
			modify:   func(cu *request.Customer) { cu.Telefono = "300-123-4567" },
			expected: MsgInvalidTelefono,
		},
		{
			name: "given invalid phone and email should report phone first",
			modify: func(cu *request.Customer) {
				cu.Telefono = "1"
				cu.Correo = "ana"
			},
			expected: MsgInvalidTelefono,
		},
		{
			name:     "given email without at should reject email",
			modify:   func(cu *request.Customer) { cu.Correo = "ana.x.com" },
			expected: MsgInvalidCorreo,
		},
		{
			name:     "given email with two at should reject email",
			modify:   func(cu *request.Customer) { cu.Correo = "ana@@x.com" },
			expected: MsgInvalidCorreo,
		},
		{
			name:     "given email without dot in domain should reject email",
			modify:   func(cu *request.Customer) { cu.Correo = "ana@x" },
			expected: MsgInvalidCorreo,
		},
		{
			name:     "given email with whitespace should reject email",
			modify:   func(cu *request.Customer) { cu.Correo = "a na@x.com" },
			expected: MsgInvalidCorreo,
		},
		{
			name:     "given unknown payment method should reject payment",
			modify:   func(cu *request.Customer) { cu.MetodoPago = "tarjeta" },
			expected: MsgInvalidMetodoPago,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			customer := validCustomer()
			test.modify(&customer)

			err := ValidateCustomer(context.Background(), customer)
			if test.expected == "" {
				assert.NoError(t, err)
				return
			}

			validationErr := &ValidationError{}
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, test.expected, validationErr.Message)
		})
	}
}
