package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/sienaconfecciones/storefront/internal/validate"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
)

const (
	MsgIncompleteFields   = "Por favor, complete todos los campos."
	MsgInvalidTelefono    = "El número de teléfono debe comenzar con 3 y tener 10 dígitos."
	MsgInvalidCorreo      = "Por favor, ingrese un correo electrónico válido."
	MsgInvalidMetodoPago  = "Por favor, seleccione un método de pago válido."
	MsgOrderRejected      = "Error al realizar el pedido. Intente de nuevo."
	MsgStoreUnreachable   = "Error al conectar con la API. Intente de nuevo."
	MsgOrderSubmitSuccess = "¡Pedido Exitoso! Tu pedido ha sido registrado correctamente."
)

// ValidationError carries the message shown to the customer for the first failing rule.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// rules in the order they are reported.
var rules = []struct {
	matches func(validator.FieldError) bool
	message string
}{
	{func(fe validator.FieldError) bool { return fe.Tag() == "required" }, MsgIncompleteFields},
	{func(fe validator.FieldError) bool { return fe.StructField() == "Telefono" }, MsgInvalidTelefono},
	{func(fe validator.FieldError) bool { return fe.StructField() == "Correo" }, MsgInvalidCorreo},
	{func(fe validator.FieldError) bool { return fe.StructField() == "MetodoPago" }, MsgInvalidMetodoPago},
}

// ValidateCustomer checks the checkout form without touching the network and returns a
// *ValidationError for the highest priority failure.
func ValidateCustomer(c context.Context, customer request.Customer) error {
	err := validate.Get().StructCtx(c, customer)
	if err == nil {
		return nil
	}

	fieldErrs := validator.ValidationErrors{}
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed validating customer with error=%w", err)
	}

	for _, rule := range rules {
		for _, fe := range fieldErrs {
			if rule.matches(fe) {
				return &ValidationError{Message: rule.message}
			}
		}
	}
	return &ValidationError{Message: MsgIncompleteFields}
}
