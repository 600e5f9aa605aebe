package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	inHttp "github.com/sienaconfecciones/storefront/internal/http"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/middleware"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/order/internal/otel"
	"github.com/sienaconfecciones/storefront/order/internal/service"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
)

type CheckoutController struct {
	service *service.CheckoutService
}

func AttachCheckoutController(router *mux.Router, service *service.CheckoutService) {
	controller := CheckoutController{service: service}

	orders := router.PathPrefix("/orders").Subrouter()
	orders.Use(middleware.Session)
	orders.HandleFunc("/checkout", controller.Checkout).Methods(http.MethodPost)
}

func (ctrl *CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController Checkout").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.Checkout{}
	err := json.NewDecoder(r.Body).Decode(&param)
	if err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, "request body is invalid")
		return
	}
	logger.Info().Msg("decoded request body")

	form := service.Form{Customer: param.Customer, IdempotencyKey: param.IdempotencyKey}
	if key := r.Header.Get(constants.HeaderIdempotencyKey); key != "" {
		form.IdempotencyKey = key
	}

	logger = logger.With().Str(log.KeyProcess, "submitting order").Logger()
	logger.Info().Msg("submitting order")
	c = logger.WithContext(c)
	result, err := ctrl.service.SubmitOrder(c, middleware.SessionIDFromContext(c), &form)
	if err != nil {
		inErrors.HandleError(err, span)
		data := map[string]interface{}{"form": form}

		validationErr := &service.ValidationError{}
		switch {
		case errors.Is(err, inErrors.ErrEmptyCart):
			logger.Info().Msg("cart is empty")
			inHttp.WriteFailedWithData(c, w, http.StatusConflict, err.Error(), data)
		case errors.As(err, &validationErr):
			logger.Info().Err(err).Msg("customer is invalid")
			inHttp.WriteFailedWithData(c, w, http.StatusUnprocessableEntity, form.Error, data)
		case orderstore.IsStatusError(err):
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteFailedWithData(c, w, http.StatusBadGateway, form.Error, data)
		case form.Error != "":
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteFailedWithData(c, w, http.StatusServiceUnavailable, form.Error, data)
		default:
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteFailed(c, w, http.StatusInternalServerError, "failed submitting order")
		}
		return
	}
	logger.Info().Str(log.KeyOrderID, result.OrderID.String()).Msg("submitted order")

	data := map[string]interface{}{"orderId": result.OrderID, "form": form}
	if result.NotificationErr != nil {
		data["notificationWarning"] = result.NotificationErr.Error()
	}
	inHttp.WriteSuccess(c, w, http.StatusCreated, service.MsgOrderSubmitSuccess, data)
}
