package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"golang.org/x/sync/errgroup"

	cartCmd "github.com/sienaconfecciones/storefront/cart/cmd"
	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/infra"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/middleware"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	inOtel "github.com/sienaconfecciones/storefront/internal/otel"
	"github.com/sienaconfecciones/storefront/notification/pkg/outbox"
	"github.com/sienaconfecciones/storefront/notification/pkg/sender"
	"github.com/sienaconfecciones/storefront/order/internal/controller"
	"github.com/sienaconfecciones/storefront/order/internal/otel"
	"github.com/sienaconfecciones/storefront/order/internal/service"
)

const shutdownTimeout = 15 * time.Second

func RunStorefrontService(c context.Context) {
	c, span := otel.Tracer.Start(c, "RunStorefrontService")
	defer span.End()

	cfg := config.Get(c, constants.AppStorefrontService)

	logger := log.Get(
		filepath.Join("/var/log/", constants.AppStorefrontService+".log"),
		cfg.Application.Env,
	).
		With().
		Str(log.KeyAppName, constants.AppStorefrontService).
		Str(log.KeyTag, "main RunStorefrontService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware(constants.AppStorefrontService),
		middleware.Logging,
		middleware.RecoverPanic,
	)
	router.Handle("/metrics", promhttp.Handler())
	logger.Info().Msg("initialized router")

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := inOtel.InitOtelSdk(c, constants.AppStorefrontService, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		sc, cancel := context.WithTimeout(context.WithoutCancel(c), shutdownTimeout)
		defer cancel()
		if err := inOtel.ShutdownOtel(sc, shutdownFuncs); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	logger = logger.With().Str(log.KeyProcess, "initializing cache").Logger()
	logger.Info().Msg("initializing cache")
	c = logger.WithContext(c)
	cache := infra.NewCacheClient(c, cfg.Cache)
	defer func() {
		logger = logger.With().Str(log.KeyProcess, "closing cache").Logger()
		logger.Info().Msg("closing cache")
		if err := cache.Close(); err != nil {
			err = fmt.Errorf("failed closing cache with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("closed cache")
	}()
	logger.Info().Msg("initialized cache")

	logger = logger.With().Str(log.KeyProcess, "initializing order store client").Logger()
	logger.Info().Str(log.KeyURL, cfg.OrderStore.BaseURL).Msg("initializing order store client")
	store := orderstore.NewClient(cfg.OrderStore)
	notifier := sender.New(store, outbox.New(cache), cfg.Notification)
	logger.Info().Msg("initialized order store client")

	logger = logger.With().Str(log.KeyProcess, "initializing controllers").Logger()
	logger.Info().Msg("initializing controllers")
	c = logger.WithContext(c)
	carts := cartCmd.AttachCart(c, router, cache, cfg.Cart)
	controller.AttachCheckoutController(router, service.NewCheckoutService(carts, store, notifier))
	controller.AttachDashboardController(
		router,
		service.NewDashboardService(store, cfg.Dashboard.ResetStatusOnEdit),
	)
	logger.Info().Msg("initialized controllers")

	server := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Application.Host, cfg.Application.Port),
		BaseContext: func(net.Listener) context.Context {
			lg := logger.With().
				Reset().
				Timestamp().
				Caller().
				Stack().
				Str(log.KeyAppName, constants.AppStorefrontService).
				Logger()
			return lg.WithContext(context.WithoutCancel(c))
		},
		Handler:      router,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}

	g, gc := errgroup.WithContext(c)
	g.Go(func() error {
		logger := logger.With().Str(log.KeyProcess, "start server").Logger()
		logger.Info().Msgf("start listening request at %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("encounter error=%w while running server", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gc.Done()
		logger := logger.With().Str(log.KeyProcess, "shutdown server").Logger()
		logger.Info().Msg("received interuption signal shutting down")
		sc, cancel := context.WithTimeout(context.WithoutCancel(gc), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sc); err != nil {
			return fmt.Errorf("failed shutting down server with error=%w", err)
		}
		logger.Info().Msg("shutdown server")
		return nil
	})

	if err := g.Wait(); err != nil {
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}
}
