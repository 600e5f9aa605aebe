package middleware

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	inHttp "github.com/sienaconfecciones/storefront/internal/http"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/otel"
)

func RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, span := otel.Tracer.Start(r.Context(), "middleware RecoverPanic")
		defer span.End()

		logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware RecoverPanic").Logger()
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				inErrors.HandleError(err, span)
				logger.Error().Err(err).Stack().Msg("recovered from panic")
				inHttp.WriteFailed(c, w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()

		next.ServeHTTP(w, r.WithContext(c))
	})
}
