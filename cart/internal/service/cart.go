package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sienaconfecciones/storefront/cart/internal/otel"
	"github.com/sienaconfecciones/storefront/cart/pkg/response"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/log"
)

const (
	keyCart       = "cart:%s"
	maxTxAttempts = 5
)

var ErrCartConflict = errors.New("cart was modified concurrently")

// CartService owns the session carts. Add, UpdateQuantity, Remove and Clear are the only
// operations that change a cart.
type CartService struct {
	cache *redis.Client
	ttl   time.Duration
}

func NewCartService(cache *redis.Client, ttl time.Duration) *CartService {
	return &CartService{cache: cache, ttl: ttl}
}

func cartKey(sessionID string) string {
	return fmt.Sprintf(keyCart, sessionID)
}

func (s *CartService) FindCart(c context.Context, sessionID string) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService FindCart")
	defer span.End()

	key := cartKey(sessionID)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService FindCart").
		Str(log.KeySessionID, sessionID).
		Str(log.KeyCacheKey, key).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Info().Msg("finding cart in cache")
	entries, err := readEntries(c, s.cache, key)
	if err != nil {
		err = fmt.Errorf("failed finding cart in cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Int(log.KeyCartEntries, len(entries)).Msg("found cart in cache")

	return newCart(sessionID, entries), nil
}

func (s *CartService) AddEntry(
	c context.Context,
	sessionID string,
	entry response.CartEntry,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddEntry")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddEntry").
		Str(log.KeySessionID, sessionID).
		Str(log.KeyProductID, entry.ID.String()).
		Str(log.KeyProcess, "adding cart entry").
		Logger()

	if entry.Quantity < 1 {
		err := fmt.Errorf("failed adding cart entry with error=%w", inErrors.ErrInvalidQuantity)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	logger.Info().Msg("adding cart entry")
	entries, err := s.mutate(c, sessionID, func(entries []response.CartEntry) ([]response.CartEntry, error) {
		for i, existing := range entries {
			if existing.ID.String() == entry.ID.String() &&
				samePersonalization(existing.Personalization, entry.Personalization) {
				entries[i].Quantity += entry.Quantity
				return entries, nil
			}
		}
		entry.LineID = uuid.NewString()
		return append(entries, entry), nil
	})
	if err != nil {
		err = fmt.Errorf("failed adding cart entry with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("added cart entry")

	return newCart(sessionID, entries), nil
}

// UpdateQuantity sets the quantity of the line identified by lineID.
func (s *CartService) UpdateQuantity(
	c context.Context,
	sessionID string,
	lineID string,
	quantity int,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateQuantity").
		Str(log.KeySessionID, sessionID).
		Str(log.KeyLineID, lineID).
		Int("quantity", quantity).
		Str(log.KeyProcess, "updating cart entry quantity").
		Logger()

	if quantity < 1 {
		err := fmt.Errorf("failed updating quantity with error=%w", inErrors.ErrInvalidQuantity)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	logger.Info().Msg("updating cart entry quantity")
	entries, err := s.mutate(c, sessionID, func(entries []response.CartEntry) ([]response.CartEntry, error) {
		for i, existing := range entries {
			if existing.LineID == lineID {
				entries[i].Quantity = quantity
				return entries, nil
			}
		}
		return nil, inErrors.ErrCartItemNotFound
	})
	if err != nil {
		err = fmt.Errorf("failed updating quantity with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("updated cart entry quantity")

	return newCart(sessionID, entries), nil
}

func (s *CartService) RemoveEntry(
	c context.Context,
	sessionID string,
	lineID string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService RemoveEntry")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveEntry").
		Str(log.KeySessionID, sessionID).
		Str(log.KeyLineID, lineID).
		Str(log.KeyProcess, "removing cart entry").
		Logger()

	logger.Info().Msg("removing cart entry")
	entries, err := s.mutate(c, sessionID, func(entries []response.CartEntry) ([]response.CartEntry, error) {
		remaining := make([]response.CartEntry, 0, len(entries))
		for _, existing := range entries {
			if existing.LineID != lineID {
				remaining = append(remaining, existing)
			}
		}
		if len(remaining) == len(entries) {
			return nil, inErrors.ErrCartItemNotFound
		}
		return remaining, nil
	})
	if err != nil {
		err = fmt.Errorf("failed removing cart entry with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("removed cart entry")

	return newCart(sessionID, entries), nil
}

func (s *CartService) ClearCart(c context.Context, sessionID string) error {
	c, span := otel.Tracer.Start(c, "CartService ClearCart")
	defer span.End()

	key := cartKey(sessionID)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClearCart").
		Str(log.KeySessionID, sessionID).
		Str(log.KeyCacheKey, key).
		Str(log.KeyProcess, "deleting cart from cache").
		Logger()

	logger.Info().Msg("deleting cart from cache")
	err := s.cache.Del(c, key).Err()
	if err != nil {
		err = fmt.Errorf("failed deleting cart from cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("deleted cart from cache")

	return nil
}

// mutate applies fn to the stored entries under WATCH so concurrent writers to the same
// session never lose an update.
func (s *CartService) mutate(
	c context.Context,
	sessionID string,
	fn func([]response.CartEntry) ([]response.CartEntry, error),
) ([]response.CartEntry, error) {
	key := cartKey(sessionID)

	var result []response.CartEntry
	txf := func(tx *redis.Tx) error {
		entries, err := readEntries(c, tx, key)
		if err != nil {
			return err
		}

		next, err := fn(entries)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed marshaling cart with error=%w", err)
		}

		_, err = tx.TxPipelined(c, func(pipe redis.Pipeliner) error {
			pipe.Set(c, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for range maxTxAttempts {
		err := s.cache.Watch(c, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrCartConflict
}

type getter interface {
	Get(c context.Context, key string) *redis.StringCmd
}

func readEntries(c context.Context, cmd getter, key string) ([]response.CartEntry, error) {
	payload, err := cmd.Get(c, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []response.CartEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := []response.CartEntry{}
	err = json.Unmarshal(payload, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed unmarshaling cart with error=%w", err)
	}
	return entries, nil
}

func newCart(sessionID string, entries []response.CartEntry) response.Cart {
	return response.Cart{
		SessionID: sessionID,
		Entries:   entries,
		Total:     response.Total(entries),
	}
}

func samePersonalization(a, b *response.Personalization) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
