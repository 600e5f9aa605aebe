package cmd

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/cart/internal/controller"
	"github.com/sienaconfecciones/storefront/cart/internal/service"
	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/log"
)

// AttachCart mounts the cart routes and returns the cart store shared with checkout.
func AttachCart(
	c context.Context,
	router *mux.Router,
	cache *redis.Client,
	cfg config.Cart,
) *service.CartService {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "cmd AttachCart").
		Str(log.KeyProcess, "initializing cart controller").
		Logger()

	logger.Info().Msg("initializing cart controller")
	svc := service.NewCartService(cache, cfg.TTL)
	controller.AttachCartController(router, svc)
	logger.Info().Msg("initialized cart controller")
	return svc
}
