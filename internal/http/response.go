package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/otel"
)

func WriteJsonResponse(
	c context.Context,
	w http.ResponseWriter,
	header map[string]string,
	body map[string]interface{},
) {
	c, span := otel.Tracer.Start(c, "WriteJsonResponse")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "http WriteJsonResponse").Logger()

	w.Header().Set(constants.HeaderContentType, constants.HeaderValueJson)
	for k, v := range header {
		w.Header().Add(k, v)
	}

	statusCode := http.StatusOK
	if v, ok := body["statusCode"].(int); ok {
		statusCode = v
	}
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msgf("failed encoding response body with error=%s", err.Error())
		return
	}
}

func WriteFailed(c context.Context, w http.ResponseWriter, statusCode int, message string) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    message,
	})
}

// WriteFailedWithData is WriteFailed carrying state the client needs to retry, such as the
// checkout form.
func WriteFailedWithData(
	c context.Context,
	w http.ResponseWriter,
	statusCode int,
	message string,
	data map[string]interface{},
) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    message,
		"data":       data,
	})
}

func WriteSuccess(
	c context.Context,
	w http.ResponseWriter,
	statusCode int,
	message string,
	data map[string]interface{},
) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": statusCode,
		"message":    message,
		"data":       data,
	})
}
