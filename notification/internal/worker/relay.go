package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/internal/config"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/metrics"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/notification/internal/otel"
	"github.com/sienaconfecciones/storefront/notification/pkg/outbox"
	"github.com/sienaconfecciones/storefront/notification/pkg/sender"
)

type Outbox interface {
	Claim(c context.Context, max int) ([]outbox.Message, error)
	Ack(c context.Context, msg outbox.Message) error
	Requeue(c context.Context, msg outbox.Message, cause error) error
	DeadLetter(c context.Context, msg outbox.Message, cause error) error
	Recover(c context.Context) (int, error)
}

const defaultRelayInterval = 5 * time.Second

// Relay periodically redelivers queued notifications.
type Relay struct {
	outbox Outbox
	client sender.Client
	cfg    config.Notification
}

func NewRelay(outbox Outbox, client sender.Client, cfg config.Notification) *Relay {
	return &Relay{outbox: outbox, client: client, cfg: cfg}
}

func (r *Relay) Run(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Relay Run").
		Str(log.KeyProcess, "starting relay").
		Logger()

	recovered, err := r.outbox.Recover(c)
	if err != nil {
		err = fmt.Errorf("failed recovering outbox with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int("recovered", recovered).Msg("started relay")

	interval := r.cfg.RelayInterval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			logger.Info().Msg("stopping relay")
			return nil
		case <-ticker.C:
			requestID := uuid.NewString()
			batchLogger := logger.With().Str(log.KeyRequestID, requestID).Logger()
			bc := batchLogger.WithContext(log.AttachRequestIDToContext(c, requestID))
			if _, err := r.RelayBatch(bc); err != nil {
				batchLogger.Error().Err(err).Msg(err.Error())
			}
		}
	}
}

// RelayBatch claims one batch and tries each message once. Messages that reach the attempt
// limit or that the store rejects outright go to the dead letter list.
func (r *Relay) RelayBatch(c context.Context) (int, error) {
	c, span := otel.Tracer.Start(c, "Relay RelayBatch")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Relay RelayBatch").
		Str(log.KeyProcess, "claiming batch").
		Logger()

	messages, err := r.outbox.Claim(c, r.cfg.RelayBatchSize)
	if err != nil {
		err = fmt.Errorf("failed claiming batch with error=%w", err)
		inErrors.HandleError(err, span)
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	logger.Info().Int("claimed", len(messages)).Msg("claimed batch")

	delivered := 0
	for _, msg := range messages {
		msgLogger := logger.With().
			Str(log.KeyProcess, "relaying notification").
			Str(log.KeyOutboxMessageID, msg.ID).
			Int(log.KeyAttempts, msg.Attempts).
			Logger()
		mc := msgLogger.WithContext(c)

		sendErr := r.client.SendNotification(mc, msg.Notification)
		if sendErr == nil {
			if err := r.outbox.Ack(mc, msg); err != nil {
				msgLogger.Error().Err(err).Msg(err.Error())
			}
			delivered++
			metrics.Notifications.WithLabelValues("relayed").Inc()
			msgLogger.Info().Msg("relayed notification")
			continue
		}

		if orderstore.IsPermanent(sendErr) || msg.Attempts+1 >= r.cfg.MaxRelayAttempts {
			if err := r.outbox.DeadLetter(mc, msg, sendErr); err != nil {
				msgLogger.Error().Err(err).Msg(err.Error())
			}
			metrics.Notifications.WithLabelValues("dead_letter").Inc()
			msgLogger.Error().Err(sendErr).Msg("notification moved to dead letter")
			continue
		}
		if err := r.outbox.Requeue(mc, msg, sendErr); err != nil {
			msgLogger.Error().Err(err).Msg(err.Error())
		}
		msgLogger.Warn().Err(sendErr).Msg("notification requeued")
	}
	return delivered, nil
}
