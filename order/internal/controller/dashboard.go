package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	inHttp "github.com/sienaconfecciones/storefront/internal/http"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/internal/validate"
	"github.com/sienaconfecciones/storefront/order/internal/otel"
	"github.com/sienaconfecciones/storefront/order/internal/service"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type DashboardController struct {
	service *service.DashboardService
}

type orderView struct {
	response.Order
	VisibleItems []cartResponse.CartEntry `json:"visibleItems"`
	Expanded     bool                     `json:"expanded"`
	Editing      *service.EditSession     `json:"editing,omitempty"`
}

func AttachDashboardController(router *mux.Router, service *service.DashboardService) {
	controller := DashboardController{service: service}

	orders := router.PathPrefix("/admin/orders").Subrouter()
	orders.HandleFunc("", controller.ListOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{orderId}", controller.CommitEdit).Methods(http.MethodPut)
	orders.HandleFunc("/{orderId}", controller.DeleteOrder).Methods(http.MethodDelete)
	orders.HandleFunc("/{orderId}/edit", controller.BeginEdit).Methods(http.MethodPost)
	orders.HandleFunc("/{orderId}/edit", controller.Dismiss).Methods(http.MethodDelete)
	orders.HandleFunc("/{orderId}/expand", controller.ToggleExpand).Methods(http.MethodPost)
}

func (ctrl *DashboardController) ListOrders(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController ListOrders")
	defer span.End()

	query := r.URL.Query().Get("q")
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardController ListOrders").
		Str(log.KeyQuery, query).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "listing orders").Logger()
	logger.Info().Msg("listing orders")
	c = logger.WithContext(c)
	orders, err := ctrl.service.List(c, refresh)
	if err != nil {
		err = fmt.Errorf("failed listing orders with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), "failed listing orders")
		return
	}

	filtered := service.Filter(orders, query)
	views := make([]orderView, 0, len(filtered))
	for _, order := range filtered {
		view := orderView{
			Order:        order,
			VisibleItems: ctrl.service.VisibleItems(order),
			Expanded:     ctrl.service.Expanded(order.ID.String()),
		}
		if session, ok := ctrl.service.Session(order.ID.String()); ok {
			view.Editing = &session
		}
		views = append(views, view)
	}
	logger.Info().Int(log.KeyOrdersCount, len(views)).Msg("listed orders")

	inHttp.WriteSuccess(c, w, http.StatusOK, "listed orders", map[string]interface{}{
		"orders": views,
		"total":  len(orders),
	})
}

func (ctrl *DashboardController) BeginEdit(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController BeginEdit")
	defer span.End()

	orderID := mux.Vars(r)["orderId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardController BeginEdit").
		Str(log.KeyOrderID, orderID).
		Str(log.KeyProcess, "beginning edit").
		Logger()

	logger.Info().Msg("beginning edit")
	session, err := ctrl.service.BeginEdit(orderID)
	if err != nil {
		err = fmt.Errorf("failed beginning edit with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Any(log.KeyEditSession, session).Msg("began edit")

	inHttp.WriteSuccess(c, w, http.StatusOK, "began edit", map[string]interface{}{
		"editing": session,
	})
}

func (ctrl *DashboardController) Dismiss(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController Dismiss")
	defer span.End()

	orderID := mux.Vars(r)["orderId"]
	zerolog.Ctx(c).Info().Str(log.KeyOrderID, orderID).Msg("dismissing edit")
	ctrl.service.Dismiss(orderID)

	inHttp.WriteSuccess(c, w, http.StatusOK, "dismissed edit", map[string]interface{}{})
}

func (ctrl *DashboardController) CommitEdit(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController CommitEdit")
	defer span.End()

	orderID := mux.Vars(r)["orderId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardController CommitEdit").
		Str(log.KeyOrderID, orderID).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.EditOrder{}
	err := json.NewDecoder(r.Body).Decode(&param)
	if err == nil {
		err = validate.Get().StructCtx(c, param)
	}
	if err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, "request body is invalid")
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "committing edit").Logger()
	logger.Info().Msg("committing edit")
	c = logger.WithContext(c)
	order, err := ctrl.service.CommitEdit(c, orderID, param)
	if err != nil {
		err = fmt.Errorf("failed committing edit with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Msg("committed edit")

	inHttp.WriteSuccess(c, w, http.StatusOK, "updated order", map[string]interface{}{
		"order": order,
	})
}

func (ctrl *DashboardController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController DeleteOrder")
	defer span.End()

	orderID := mux.Vars(r)["orderId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardController DeleteOrder").
		Str(log.KeyOrderID, orderID).
		Str(log.KeyProcess, "deleting order").
		Logger()

	logger.Info().Msg("deleting order")
	c = logger.WithContext(c)
	err := ctrl.service.DeleteOrder(c, orderID)
	if err != nil {
		err = fmt.Errorf("failed deleting order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Msg("deleted order")

	inHttp.WriteSuccess(c, w, http.StatusOK, "deleted order", map[string]interface{}{})
}

func (ctrl *DashboardController) ToggleExpand(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "DashboardController ToggleExpand")
	defer span.End()

	orderID := mux.Vars(r)["orderId"]
	expanded := ctrl.service.ToggleExpand(orderID)
	zerolog.Ctx(c).Debug().Str(log.KeyOrderID, orderID).Bool("expanded", expanded).Msg("toggled")

	inHttp.WriteSuccess(c, w, http.StatusOK, "toggled order", map[string]interface{}{
		"expanded": expanded,
	})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, inErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrNoEditSession):
		return http.StatusConflict
	case errors.Is(err, inErrors.ErrInvalidStatus):
		return http.StatusBadRequest
	case orderstore.IsStatusError(err):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
