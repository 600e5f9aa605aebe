// Package outbox holds order notifications that could not be delivered inline until the
// relay delivers them.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/otel"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

const (
	KeyPending    = "notification:outbox:pending"
	KeyProcessing = "notification:outbox:processing"
	KeyDead       = "notification:outbox:dead"
)

type Message struct {
	ID           string                `json:"id"`
	Attempts     int                   `json:"attempts"`
	EnqueuedAt   time.Time             `json:"enqueuedAt"`
	LastError    string                `json:"lastError,omitempty"`
	Notification response.Notification `json:"notification"`

	raw string
}

// Outbox is a reliable queue on three redis lists. Claimed messages sit in the processing list
// until they are acked, requeued or dead-lettered, so a crashed relay loses nothing.
type Outbox struct {
	cache *redis.Client
}

func New(cache *redis.Client) *Outbox {
	return &Outbox{cache: cache}
}

func (o *Outbox) Enqueue(c context.Context, notification response.Notification) error {
	c, span := otel.Tracer.Start(c, "Outbox Enqueue")
	defer span.End()

	msg := Message{
		ID:           uuid.NewString(),
		EnqueuedAt:   time.Now().UTC(),
		Notification: notification,
	}
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Outbox Enqueue").
		Str(log.KeyOutboxMessageID, msg.ID).
		Str(log.KeyProcess, "enqueuing notification").
		Logger()

	logger.Info().Msg("enqueuing notification")
	payload, err := json.Marshal(msg)
	if err != nil {
		err = fmt.Errorf("failed marshaling outbox message with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if err = o.cache.LPush(c, KeyPending, payload).Err(); err != nil {
		err = fmt.Errorf("failed enqueuing notification with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("enqueued notification")
	return nil
}

// Claim moves up to max of the oldest pending messages to the processing list.
func (o *Outbox) Claim(c context.Context, max int) ([]Message, error) {
	c, span := otel.Tracer.Start(c, "Outbox Claim")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Outbox Claim").
		Str(log.KeyProcess, "claiming notifications").
		Logger()

	if max <= 0 {
		max = 1
	}
	messages := make([]Message, 0, max)
	for len(messages) < max {
		raw, err := o.cache.LMove(c, KeyPending, KeyProcessing, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			err = fmt.Errorf("failed claiming notification with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return messages, err
		}

		msg := Message{}
		if err = json.Unmarshal([]byte(raw), &msg); err != nil {
			logger.Error().Err(err).Msg("moving undecodable outbox message to dead letter")
			_, _ = o.cache.TxPipelined(c, func(pipe redis.Pipeliner) error {
				pipe.LRem(c, KeyProcessing, 1, raw)
				pipe.LPush(c, KeyDead, raw)
				return nil
			})
			continue
		}
		msg.raw = raw
		messages = append(messages, msg)
	}
	logger.Debug().Int("claimed", len(messages)).Msg("claimed notifications")
	return messages, nil
}

func (o *Outbox) Ack(c context.Context, msg Message) error {
	if err := o.cache.LRem(c, KeyProcessing, 1, msg.raw).Err(); err != nil {
		return fmt.Errorf("failed acking outbox message=%s with error=%w", msg.ID, err)
	}
	return nil
}

// Requeue returns a message to the back of the pending list with one more recorded attempt.
func (o *Outbox) Requeue(c context.Context, msg Message, cause error) error {
	return o.move(c, msg, KeyPending, cause)
}

func (o *Outbox) DeadLetter(c context.Context, msg Message, cause error) error {
	return o.move(c, msg, KeyDead, cause)
}

func (o *Outbox) move(c context.Context, msg Message, dst string, cause error) error {
	next := msg
	next.Attempts++
	if cause != nil {
		next.LastError = cause.Error()
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed marshaling outbox message=%s with error=%w", msg.ID, err)
	}
	_, err = o.cache.TxPipelined(c, func(pipe redis.Pipeliner) error {
		pipe.LRem(c, KeyProcessing, 1, msg.raw)
		pipe.LPush(c, dst, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed moving outbox message=%s to %s with error=%w", msg.ID, dst, err)
	}
	return nil
}

// Recover returns messages left in the processing list by a relay that stopped mid-batch.
func (o *Outbox) Recover(c context.Context) (int, error) {
	recovered := 0
	for {
		err := o.cache.LMove(c, KeyProcessing, KeyPending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("failed recovering outbox with error=%w", err)
		}
		recovered++
	}
}

func (o *Outbox) Len(c context.Context, key string) (int64, error) {
	return o.cache.LLen(c, key).Result()
}
