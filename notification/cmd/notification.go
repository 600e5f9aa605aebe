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
	"golang.org/x/sync/errgroup"

	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/infra"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/middleware"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	inOtel "github.com/sienaconfecciones/storefront/internal/otel"
	"github.com/sienaconfecciones/storefront/notification/internal/otel"
	"github.com/sienaconfecciones/storefront/notification/internal/worker"
	"github.com/sienaconfecciones/storefront/notification/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

// RunNotificationService runs the outbox relay next to a small server exposing its metrics.
func RunNotificationService(c context.Context) {
	c, span := otel.Tracer.Start(c, "RunNotificationService")
	defer span.End()

	cfg := config.Get(c, constants.AppNotificationService)

	logger := log.Get(
		filepath.Join("/var/log/", constants.AppNotificationService+".log"),
		cfg.Application.Env,
	).
		With().
		Str(log.KeyAppName, constants.AppNotificationService).
		Str(log.KeyTag, "main RunNotificationService").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := inOtel.InitOtelSdk(c, constants.AppNotificationService, cfg.Otel)
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
		if err := cache.Close(); err != nil {
			err = fmt.Errorf("failed closing cache with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
		}
	}()
	logger.Info().Msg("initialized cache")

	relay := worker.NewRelay(outbox.New(cache), orderstore.NewClient(cfg.OrderStore), cfg.Notification)

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Handle("/metrics", promhttp.Handler())
	logger.Info().Msg("initialized router")

	server := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Application.Host, cfg.Application.Port),
		BaseContext: func(net.Listener) context.Context {
			return logger.WithContext(context.WithoutCancel(c))
		},
		Handler:      router,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}

	g, gc := errgroup.WithContext(c)
	g.Go(func() error {
		logger := logger.With().
			Str(log.KeyProcess, "start relay").
			Str(log.KeyAppName, constants.AppNotificationRelay).
			Logger()
		logger.Info().Msg("start notification relay")
		return relay.Run(logger.WithContext(gc))
	})
	g.Go(func() error {
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
	logger.Info().Msg("server completely shutdown")
}
