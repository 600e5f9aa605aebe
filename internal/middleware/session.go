package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	inHttp "github.com/sienaconfecciones/storefront/internal/http"
	"github.com/sienaconfecciones/storefront/internal/log"
)

type sessionID struct{}

func SessionIDFromContext(c context.Context) string {
	id, ok := c.Value(sessionID{}).(string)
	if !ok {
		return ""
	}
	return id
}

func AttachSessionIDToContext(c context.Context, id string) context.Context {
	return context.WithValue(c, sessionID{}, id)
}

// Session rejects requests without the X-Session-ID header. The cart of a visitor is keyed
// by this id.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := r.Context()
		id := r.Header.Get(constants.HeaderSessionID)
		if id == "" {
			logger := zerolog.Ctx(c).With().Str(log.KeyTag, "middleware Session").Logger()
			logger.Error().Err(inErrors.ErrMissingSession).Msg(inErrors.ErrMissingSession.Error())
			inHttp.WriteFailed(c, w, http.StatusBadRequest, inErrors.ErrMissingSession.Error())
			return
		}

		logger := zerolog.Ctx(c).With().Str(log.KeySessionID, id).Logger()
		c = logger.WithContext(c)
		c = AttachSessionIDToContext(c, id)
		next.ServeHTTP(w, r.WithContext(c))
	})
}
