package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/cart/internal/otel"
	"github.com/sienaconfecciones/storefront/cart/internal/service"
	"github.com/sienaconfecciones/storefront/cart/pkg/request"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	inHttp "github.com/sienaconfecciones/storefront/internal/http"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/middleware"
	"github.com/sienaconfecciones/storefront/internal/validate"
)

type CartController struct {
	service *service.CartService
}

func AttachCartController(router *mux.Router, service *service.CartService) {
	controller := CartController{service: service}

	carts := router.PathPrefix("/carts").Subrouter()
	carts.Use(middleware.Session)
	carts.HandleFunc("", controller.FindCart).Methods(http.MethodGet)
	carts.HandleFunc("", controller.ClearCart).Methods(http.MethodDelete)
	carts.HandleFunc("/items", controller.AddEntry).Methods(http.MethodPost)
	carts.HandleFunc("/items/{lineId}", controller.UpdateQuantity).Methods(http.MethodPut)
	carts.HandleFunc("/items/{lineId}", controller.RemoveEntry).Methods(http.MethodDelete)
}

func (ctrl *CartController) FindCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController FindCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController FindCart").
		Str(log.KeyProcess, "finding cart").
		Logger()

	logger.Info().Msg("finding cart")
	c = logger.WithContext(c)
	cart, err := ctrl.service.FindCart(c, middleware.SessionIDFromContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusInternalServerError, "failed finding cart")
		return
	}
	logger.Info().Msg("found cart")

	inHttp.WriteSuccess(c, w, http.StatusOK, "found cart", map[string]interface{}{"cart": cart})
}

func (ctrl *CartController) AddEntry(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddEntry")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddEntry").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.AddCartEntry{}
	err := json.NewDecoder(r.Body).Decode(&param)
	if err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, "request body is invalid")
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	err = validate.Get().StructCtx(c, param)
	if err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, "request body is invalid")
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "adding cart entry").Logger()
	logger.Info().Msg("adding cart entry")
	c = logger.WithContext(c)
	cart, err := ctrl.service.AddEntry(c, middleware.SessionIDFromContext(c), param.Entry())
	if err != nil {
		err = fmt.Errorf("failed adding cart entry with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Msg("added cart entry")

	inHttp.WriteSuccess(c, w, http.StatusOK, "added cart entry", map[string]interface{}{"cart": cart})
}

func (ctrl *CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateQuantity")
	defer span.End()

	lineID := mux.Vars(r)["lineId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateQuantity").
		Str(log.KeyLineID, lineID).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.UpdateQuantity{}
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

	logger = logger.With().Str(log.KeyProcess, "updating quantity").Logger()
	logger.Info().Msg("updating quantity")
	c = logger.WithContext(c)
	cart, err := ctrl.service.UpdateQuantity(
		c,
		middleware.SessionIDFromContext(c),
		lineID,
		param.Quantity,
	)
	if err != nil {
		err = fmt.Errorf("failed updating quantity with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Msg("updated quantity")

	inHttp.WriteSuccess(c, w, http.StatusOK, "updated quantity", map[string]interface{}{"cart": cart})
}

func (ctrl *CartController) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveEntry")
	defer span.End()

	lineID := mux.Vars(r)["lineId"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemoveEntry").
		Str(log.KeyLineID, lineID).
		Str(log.KeyProcess, "removing cart entry").
		Logger()

	logger.Info().Msg("removing cart entry")
	c = logger.WithContext(c)
	cart, err := ctrl.service.RemoveEntry(c, middleware.SessionIDFromContext(c), lineID)
	if err != nil {
		err = fmt.Errorf("failed removing cart entry with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusCode(err), err.Error())
		return
	}
	logger.Info().Msg("removed cart entry")

	inHttp.WriteSuccess(c, w, http.StatusOK, "removed cart entry", map[string]interface{}{"cart": cart})
}

func (ctrl *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController ClearCart").
		Str(log.KeyProcess, "clearing cart").
		Logger()

	logger.Info().Msg("clearing cart")
	c = logger.WithContext(c)
	err := ctrl.service.ClearCart(c, middleware.SessionIDFromContext(c))
	if err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusInternalServerError, "failed clearing cart")
		return
	}
	logger.Info().Msg("cleared cart")

	inHttp.WriteSuccess(c, w, http.StatusOK, "cleared cart", map[string]interface{}{})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, inErrors.ErrCartItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCartConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
