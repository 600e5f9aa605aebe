package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/identifier"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   map[string]interface{}
}

func newStore(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	calls := &[]recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		payload, _ := io.ReadAll(r.Body)
		if len(payload) > 0 {
			rec.body = map[string]interface{}{}
			_ = json.Unmarshal(payload, &rec.body)
		}
		*calls = append(*calls, rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newClient(url string) *Client {
	return NewClient(config.OrderStore{BaseURL: url + "/", Timeout: 5 * time.Second})
}

func TestListOrders(t *testing.T) {
	srv, calls := newStore(t, http.StatusOK, `[
		{"id": 7, "nombre": "Ana", "total": 20, "status": "en proceso", "cart": [{"id": 1, "name": "Camiseta", "price": "10.00", "quantity": 2}]},
		{"id": "b2", "nombre": "Luis", "total": 5.5, "status": "enviado", "cart": []}
	]`)

	orders, err := newClient(srv.URL).ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "7", orders[0].ID.String())
	assert.Equal(t, "b2", orders[1].ID.String())
	assert.True(t, decimal.RequireFromString("10").Equal(orders[0].Cart[0].Price))
	assert.Equal(t, response.StatusShipped, orders[1].Status)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/orders", (*calls)[0].path)
}

func TestCreateOrder(t *testing.T) {
	srv, calls := newStore(t, http.StatusCreated, `{"id": 11, "nombre": "Ana"}`)

	order := request.CreateOrder{
		Nombre:     "Ana",
		Direccion:  "Calle 1",
		Telefono:   "3001234567",
		Correo:     "ana@x.com",
		MetodoPago: response.PaymentCashOnDelivery,
		Cart: []cartResponse.CartEntry{
			{ID: identifier.New("1"), Name: "Camiseta", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		Total:  decimal.RequireFromString("20.00"),
		Date:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status: response.StatusInProcess,
	}

	created, err := newClient(srv.URL).CreateOrder(context.Background(), order, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "11", created.ID.String())

	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/orders", call.path)
	assert.Equal(t, "key-1", call.header.Get("Idempotency-Key"))
	assert.Equal(t, "application/json", call.header.Get("Content-Type"))
	assert.NotContains(t, call.body, "id")
	assert.EqualValues(t, 20, call.body["total"])
	assert.Equal(t, "en proceso", call.body["status"])
}

func TestCreateOrderWithEmptyBody(t *testing.T) {
	srv, _ := newStore(t, http.StatusCreated, ``)

	created, err := newClient(srv.URL).CreateOrder(context.Background(), request.CreateOrder{}, "")
	require.NoError(t, err)
	assert.True(t, created.ID.IsZero())
}

func TestStatusError(t *testing.T) {
	srv, _ := newStore(t, http.StatusInternalServerError, `{"message":"boom"}`)

	_, err := newClient(srv.URL).CreateOrder(context.Background(), request.CreateOrder{}, "")
	require.Error(t, err)
	assert.True(t, IsStatusError(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestTransportError(t *testing.T) {
	srv, _ := newStore(t, http.StatusOK, `[]`)
	url := srv.URL
	srv.Close()

	_, err := newClient(url).ListOrders(context.Background())
	require.Error(t, err)
	assert.False(t, IsStatusError(err))
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	srv, calls := newStore(t, http.StatusOK, `{}`)
	cl := newClient(srv.URL)

	var id identifier.ID
	require.NoError(t, json.Unmarshal([]byte(`7`), &id))

	_, err := cl.UpdateOrder(context.Background(), response.Order{
		ID:        id,
		Nombre:    "Ana",
		Direccion: "Carrera 2",
		Status:    response.StatusShipped,
	})
	require.NoError(t, err)
	require.NoError(t, cl.DeleteOrder(context.Background(), id))

	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPut, (*calls)[0].method)
	assert.Equal(t, "/orders/7", (*calls)[0].path)
	assert.EqualValues(t, 7, (*calls)[0].body["id"])
	assert.Equal(t, "enviado", (*calls)[0].body["status"])
	assert.Equal(t, http.MethodDelete, (*calls)[1].method)
	assert.Equal(t, "/orders/7", (*calls)[1].path)
}

func TestSendNotification(t *testing.T) {
	srv, calls := newStore(t, http.StatusOK, `not json`)

	err := newClient(srv.URL).SendNotification(context.Background(), response.Notification{
		Nombre: "Ana",
		Total:  decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/send-email", (*calls)[0].path)
	assert.EqualValues(t, 20, (*calls)[0].body["total"])
	assert.NotContains(t, (*calls)[0].body, "date")
}

func TestListOrdersWithIrregularRecords(t *testing.T) {
	srv, _ := newStore(t, http.StatusOK, `[
		{"id": 1, "nombre": "Ana", "date": "2025-01-01T00:00:00.000Z", "status": "en proceso"},
		{"id": 2, "nombre": "Luis", "date": "", "status": "enviado"},
		{"id": 3, "nombre": "Marta", "date": "01/02/2025", "status": "enviado"},
		{"id": {"nested": true}, "nombre": "Roto"},
		{"id": 5, "nombre": "Sofía", "total": "no es numero"}
	]`)

	orders, err := newClient(srv.URL).ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, []string{"1", "2", "3"}, []string{
		orders[0].ID.String(),
		orders[1].ID.String(),
		orders[2].ID.String(),
	})
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), orders[0].Date.Time.UTC())
	assert.True(t, orders[1].Date.Time.IsZero())
	assert.True(t, orders[2].Date.Time.IsZero())

	payload, err := json.Marshal(orders[2].Date)
	require.NoError(t, err)
	assert.JSONEq(t, `"01/02/2025"`, string(payload))
}

func TestUpdateOrderKeepsStoreFields(t *testing.T) {
	srv, calls := newStore(t, http.StatusOK, `[{
		"id": 7,
		"nombre": "Ana",
		"direccion": "Calle 1",
		"cart": [{"id": 1, "name": "Camiseta", "price": 10, "quantity": 2, "image": "/img/c.png", "talla": "M"}],
		"total": 20,
		"date": "2025-01-01T00:00:00.000Z",
		"status": "en proceso",
		"notas": "entregar tarde"
	}]`)
	cl := newClient(srv.URL)

	orders, err := cl.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	order.Status = response.StatusShipped
	order.Direccion = "Calle 99"
	_, err = cl.UpdateOrder(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	put := (*calls)[1]
	assert.Equal(t, http.MethodPut, put.method)
	assert.Equal(t, "/orders/7", put.path)
	assert.Equal(t, "enviado", put.body["status"])
	assert.Equal(t, "Calle 99", put.body["direccion"])
	assert.Equal(t, "entregar tarde", put.body["notas"])
	assert.Equal(t, "2025-01-01T00:00:00.000Z", put.body["date"])
	assert.EqualValues(t, 7, put.body["id"])

	cart, ok := put.body["cart"].([]interface{})
	require.True(t, ok)
	require.Len(t, cart, 1)
	line, ok := cart[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/img/c.png", line["image"])
	assert.Equal(t, "M", line["talla"])
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "given bad request should be permanent", err: &StatusError{StatusCode: 400}, expected: true},
		{name: "given wrapped unprocessable should be permanent", err: fmt.Errorf("failed with error=%w", &StatusError{StatusCode: 422}), expected: true},
		{name: "given request timeout should be retryable", err: &StatusError{StatusCode: 408}, expected: false},
		{name: "given too many requests should be retryable", err: &StatusError{StatusCode: 429}, expected: false},
		{name: "given server error should be retryable", err: &StatusError{StatusCode: 503}, expected: false},
		{name: "given transport error should be retryable", err: errors.New("connection refused"), expected: false},
		{name: "given nil should not be permanent", err: nil, expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsPermanent(test.err))
		})
	}
}
