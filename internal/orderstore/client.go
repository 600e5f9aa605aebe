// Package orderstore is the HTTP client of the external order store, the service of record
// for orders and the sender of order confirmation emails.
package orderstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/constants"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/identifier"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/otel"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

const (
	pathOrders    = "/orders"
	pathSendEmail = "/send-email"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("order store returned status code=%d for %s %s", e.StatusCode, e.Method, e.Path)
}

func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// IsPermanent reports a 4xx rejection that resending the same request will not change.
// Timeouts and rate limiting stay retryable.
func IsPermanent(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return statusErr.StatusCode >= http.StatusBadRequest &&
		statusErr.StatusCode < http.StatusInternalServerError
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.OrderStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
	}
}

// ListOrders fetches every order. A record that cannot be decoded is logged and skipped so
// the rest of the list still loads.
func (cl *Client) ListOrders(c context.Context) ([]response.Order, error) {
	records := []json.RawMessage{}
	err := cl.do(c, "orderstore ListOrders", http.MethodGet, pathOrders, nil, nil, &records)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "orderstore ListOrders").
		Str(log.KeyProcess, "decoding orders").
		Logger()

	orders := make([]response.Order, 0, len(records))
	for i, record := range records {
		order := response.Order{}
		if err := json.Unmarshal(record, &order); err != nil {
			logger.Warn().
				Err(err).
				Int("index", i).
				RawJSON(log.KeyOrder, record).
				Msg("skipping order that failed decoding")
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// CreateOrder posts a new order. The idempotency key lets the store recognise a resubmission
// of an order it already persisted.
func (cl *Client) CreateOrder(
	c context.Context,
	order request.CreateOrder,
	idempotencyKey string,
) (response.Order, error) {
	header := map[string]string{}
	if idempotencyKey != "" {
		header[constants.HeaderIdempotencyKey] = idempotencyKey
	}

	created := response.Order{}
	err := cl.do(c, "orderstore CreateOrder", http.MethodPost, pathOrders, header, order, &created)
	if err != nil {
		return response.Order{}, err
	}
	return created, nil
}

// UpdateOrder replaces the stored record. Fields the store sent that Order does not model are
// sent back unchanged.
func (cl *Client) UpdateOrder(c context.Context, order response.Order) (response.Order, error) {
	record, err := order.Record()
	if err != nil {
		err = fmt.Errorf("failed building order record with error=%w", err)
		zerolog.Ctx(c).Error().Err(err).Str(log.KeyOrderID, order.ID.String()).Msg(err.Error())
		return response.Order{}, err
	}

	updated := response.Order{}
	err = cl.do(
		c,
		"orderstore UpdateOrder",
		http.MethodPut,
		orderPath(order.ID),
		nil,
		record,
		&updated,
	)
	if err != nil {
		return response.Order{}, err
	}
	return updated, nil
}

func (cl *Client) DeleteOrder(c context.Context, id identifier.ID) error {
	return cl.do(c, "orderstore DeleteOrder", http.MethodDelete, orderPath(id), nil, nil, nil)
}

func (cl *Client) SendNotification(c context.Context, notification response.Notification) error {
	return cl.do(
		c,
		"orderstore SendNotification",
		http.MethodPost,
		pathSendEmail,
		nil,
		notification,
		nil,
	)
}

func orderPath(id identifier.ID) string {
	return pathOrders + "/" + url.PathEscape(id.String())
}

// do sends one request. A nil out skips decoding; an empty or unparseable success body
// leaves out untouched since only the status is authoritative.
func (cl *Client) do(
	c context.Context,
	tag string,
	method string,
	path string,
	header map[string]string,
	in interface{},
	out interface{},
) error {
	c, span := otel.Tracer.Start(c, tag)
	defer span.End()

	endpoint := cl.baseURL + path
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, tag).
		Str(log.KeyRequestMethod, method).
		Str(log.KeyURL, endpoint).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "creating request").Logger()
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			err = fmt.Errorf("failed marshaling request body with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(c, method, endpoint, body)
	if err != nil {
		err = fmt.Errorf("failed creating request with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if in != nil {
		req.Header.Set(constants.HeaderContentType, constants.HeaderValueJson)
	}
	if requestID := log.RequestIDFromContext(c); requestID != "" {
		req.Header.Set(constants.HeaderRequestID, requestID)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	logger = logger.With().Str(log.KeyProcess, "sending request").Logger()
	logger.Info().Msg("sending request to order store")
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed sending %s %s with error=%w", method, path, err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	defer resp.Body.Close()
	logger = logger.With().Int(log.KeyResponseStatusCode, resp.StatusCode).Logger()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		err = &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("sent request to order store")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	logger = logger.With().Str(log.KeyProcess, "decoding response body").Logger()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed reading response body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		if method == http.MethodGet {
			err = fmt.Errorf("failed decoding response body with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
		logger.Warn().Err(err).Msg("ignoring unparseable response body")
	}
	return nil
}
