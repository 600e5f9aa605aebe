package errors

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrMissingSession   = errors.New("missing session id")
	ErrOrderNotFound    = errors.New("order not found")
	ErrNoEditSession    = errors.New("order is not being edited")
	ErrInvalidStatus    = errors.New("invalid order status")
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
