package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/identifier"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/metrics"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/order/internal/otel"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type CartStore interface {
	FindCart(c context.Context, sessionID string) (cartResponse.Cart, error)
	ClearCart(c context.Context, sessionID string) error
}

type OrderCreator interface {
	CreateOrder(
		c context.Context,
		order request.CreateOrder,
		idempotencyKey string,
	) (response.Order, error)
}

// Notifier delivers the order confirmation. A non-nil error is a warning: the order exists.
type Notifier interface {
	Deliver(c context.Context, notification response.Notification) error
}

// Form is the checkout form together with the state shown back to the customer.
type Form struct {
	request.Customer
	IdempotencyKey  string `json:"idempotencyKey,omitempty"`
	Error           string `json:"error,omitempty"`
	Succeeded       bool   `json:"succeeded"`
	EmptyCartPrompt bool   `json:"emptyCartPrompt"`
}

// Reset empties the fields and forgets the idempotency key of the resolved submission.
func (f *Form) Reset() {
	*f = Form{}
}

type Result struct {
	OrderID         identifier.ID `json:"orderId"`
	NotificationErr error         `json:"-"`
}

type CheckoutService struct {
	carts    CartStore
	store    OrderCreator
	notifier Notifier
	now      func() time.Time
}

func NewCheckoutService(carts CartStore, store OrderCreator, notifier Notifier) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BuildOrder snapshots the cart into a new order with the total computed from the entries.
func BuildOrder(
	customer request.Customer,
	entries []cartResponse.CartEntry,
	date time.Time,
) request.CreateOrder {
	snapshot := make([]cartResponse.CartEntry, len(entries))
	copy(snapshot, entries)
	for i := range snapshot {
		snapshot[i].LineID = ""
	}
	return request.CreateOrder{
		Nombre:     customer.Nombre,
		Direccion:  customer.Direccion,
		Telefono:   customer.Telefono,
		Correo:     customer.Correo,
		MetodoPago: customer.MetodoPago,
		Cart:       snapshot,
		Total:      cartResponse.Total(snapshot),
		Date:       date,
		Status:     response.StatusInProcess,
	}
}

// SubmitOrder validates the form against the session cart, creates the order and then
// sends the confirmation. Form carries the outcome shown to the customer: on a failed create
// the fields and the idempotency key stay so a resubmission is recognised by the store.
func (s *CheckoutService) SubmitOrder(
	c context.Context,
	sessionID string,
	form *Form,
) (Result, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService SubmitOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService SubmitOrder").
		Str(log.KeySessionID, sessionID).
		Object(log.KeyRequest, form.Customer).
		Logger()

	form.Error = ""
	form.Succeeded = false
	form.EmptyCartPrompt = false

	logger = logger.With().Str(log.KeyProcess, "finding cart").Logger()
	logger.Info().Msg("finding cart")
	c = logger.WithContext(c)
	cart, err := s.carts.FindCart(c, sessionID)
	if err != nil {
		err = fmt.Errorf("failed finding cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{}, err
	}
	logger.Info().Int(log.KeyCartEntries, len(cart.Entries)).Msg("found cart")

	if len(cart.Entries) == 0 {
		form.EmptyCartPrompt = true
		metrics.OrderSubmissions.WithLabelValues("empty_cart").Inc()
		logger.Info().Msg("cart is empty, prompting customer")
		return Result{}, inErrors.ErrEmptyCart
	}

	logger = logger.With().Str(log.KeyProcess, "validating customer").Logger()
	logger.Info().Msg("validating customer")
	err = ValidateCustomer(c, form.Customer)
	if err != nil {
		validationErr := &ValidationError{}
		if errors.As(err, &validationErr) {
			form.Error = validationErr.Message
		}
		metrics.OrderSubmissions.WithLabelValues("invalid").Inc()
		logger.Info().Err(err).Msg("customer is invalid")
		return Result{}, err
	}
	logger.Info().Msg("validated customer")

	if form.IdempotencyKey == "" {
		form.IdempotencyKey = uuid.NewString()
	}
	order := BuildOrder(form.Customer, cart.Entries, s.now())

	logger = logger.With().
		Str(log.KeyProcess, "creating order").
		Str(log.KeyIdempotencyKey, form.IdempotencyKey).
		Str(log.KeyTotal, order.Total.StringFixed(2)).
		Logger()
	logger.Info().Msg("creating order")
	c = logger.WithContext(c)
	created, err := s.store.CreateOrder(c, order, form.IdempotencyKey)
	if err != nil {
		if orderstore.IsStatusError(err) {
			form.Error = MsgOrderRejected
			metrics.OrderSubmissions.WithLabelValues("rejected").Inc()
		} else {
			form.Error = MsgStoreUnreachable
			metrics.OrderSubmissions.WithLabelValues("unreachable").Inc()
		}
		err = fmt.Errorf("failed creating order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{}, err
	}
	logger = logger.With().Str(log.KeyOrderID, created.ID.String()).Logger()
	logger.Info().Msg("created order")

	result := Result{OrderID: created.ID}

	logger = logger.With().Str(log.KeyProcess, "delivering notification").Logger()
	logger.Info().Msg("delivering notification")
	c = logger.WithContext(c)
	err = s.notifier.Deliver(c, order.Notification())
	if err != nil {
		result.NotificationErr = err
		logger.Warn().Err(err).Msg("notification not delivered")
	} else {
		logger.Info().Msg("delivered notification")
	}

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	logger.Info().Msg("clearing cart")
	err = s.carts.ClearCart(c, sessionID)
	if err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("cleared cart")
	}

	form.Reset()
	form.Succeeded = true
	metrics.OrderSubmissions.WithLabelValues("success").Inc()

	return result, nil
}
