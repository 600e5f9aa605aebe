// Package sender delivers order confirmations to the order store, retrying with exponential
// backoff and handing the payload to the outbox once the retries are exhausted.
package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/internal/config"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/metrics"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/internal/otel"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

// ErrQueued reports that the notification was not delivered inline and waits in the outbox.
var ErrQueued = errors.New("notification queued for redelivery")

type Client interface {
	SendNotification(c context.Context, notification response.Notification) error
}

type Queue interface {
	Enqueue(c context.Context, notification response.Notification) error
}

type Sender struct {
	client Client
	queue  Queue
	cfg    config.Notification
}

func New(client Client, queue Queue, cfg config.Notification) *Sender {
	return &Sender{client: client, queue: queue, cfg: cfg}
}

func (s *Sender) newBackOff(c context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if s.cfg.MaxAttempts > 1 {
		retries = s.cfg.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), c)
}

// Deliver sends the notification. When every attempt fails the payload is queued and the
// returned error wraps ErrQueued; only a failed enqueue loses the notification.
func (s *Sender) Deliver(c context.Context, notification response.Notification) error {
	c, span := otel.Tracer.Start(c, "Sender Deliver")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Sender Deliver").
		Str(log.KeyTotal, notification.Total.StringFixed(2)).
		Str(log.KeyProcess, "sending notification").
		Logger()

	attempts := 0
	operation := func() error {
		attempts++
		err := s.client.SendNotification(logger.WithContext(c), notification)
		if orderstore.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int(log.KeyAttempts, attempts).
			Dur("retryIn", wait).
			Msg("retrying notification")
	}

	logger.Info().Msg("sending notification")
	err := backoff.RetryNotify(operation, s.newBackOff(c), notify)
	if err == nil {
		metrics.Notifications.WithLabelValues("delivered").Inc()
		logger.Info().Int(log.KeyAttempts, attempts).Msg("sent notification")
		return nil
	}
	logger.Warn().Err(err).Int(log.KeyAttempts, attempts).Msg("notification attempts exhausted")

	logger = logger.With().Str(log.KeyProcess, "queuing notification").Logger()
	logger.Info().Msg("queuing notification")
	if queueErr := s.queue.Enqueue(logger.WithContext(c), notification); queueErr != nil {
		metrics.Notifications.WithLabelValues("lost").Inc()
		err = fmt.Errorf("failed delivering notification with error=%w", errors.Join(err, queueErr))
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	metrics.Notifications.WithLabelValues("queued").Inc()
	logger.Info().Msg("queued notification")

	return fmt.Errorf("%w after %d attempts with error=%w", ErrQueued, attempts, err)
}
