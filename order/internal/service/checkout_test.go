package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	"github.com/sienaconfecciones/storefront/internal/config"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/identifier"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/notification/pkg/sender"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type fakeCarts struct {
	mu      sync.Mutex
	entries map[string][]cartResponse.CartEntry
}

func (f *fakeCarts) FindCart(_ context.Context, sessionID string) (cartResponse.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.entries[sessionID]
	return cartResponse.Cart{
		SessionID: sessionID,
		Entries:   entries,
		Total:     cartResponse.Total(entries),
	}, nil
}

func (f *fakeCarts) ClearCart(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
	return nil
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []response.Notification
}

func (f *fakeQueue) Enqueue(_ context.Context, notification response.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, notification)
	return nil
}

type storeCall struct {
	path           string
	idempotencyKey string
	body           map[string]interface{}
}

// fakeStore answers /orders with createStatus and /send-email with notifyStatus.
type fakeStore struct {
	mu           sync.Mutex
	calls        []storeCall
	createStatus int
	notifyStatus int
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		call := storeCall{path: r.URL.Path, idempotencyKey: r.Header.Get("Idempotency-Key")}
		_ = json.Unmarshal(payload, &call.body)

		f.mu.Lock()
		f.calls = append(f.calls, call)
		status := f.createStatus
		if r.URL.Path == "/send-email" {
			status = f.notifyStatus
		}
		f.mu.Unlock()

		w.WriteHeader(status)
		if r.URL.Path == "/orders" && status < 300 {
			_, _ = w.Write([]byte(`{"id": 42}`))
		}
	})
}

func (f *fakeStore) callsTo(path string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := []storeCall{}
	for _, call := range f.calls {
		if call.path == path {
			calls = append(calls, call)
		}
	}
	return calls
}

type checkoutFixture struct {
	svc   *CheckoutService
	carts *fakeCarts
	store *fakeStore
	queue *fakeQueue
	url   string
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	store := &fakeStore{createStatus: http.StatusCreated, notifyStatus: http.StatusOK}
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	return newCheckoutFixtureWithURL(t, store, srv.URL)
}

func newCheckoutFixtureWithURL(t *testing.T, store *fakeStore, url string) *checkoutFixture {
	t.Helper()

	client := orderstore.NewClient(config.OrderStore{BaseURL: url, Timeout: 5 * time.Second})
	queue := &fakeQueue{}
	notifier := sender.New(client, queue, config.Notification{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	carts := &fakeCarts{entries: map[string][]cartResponse.CartEntry{}}

	svc := NewCheckoutService(carts, client, notifier)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return &checkoutFixture{svc: svc, carts: carts, store: store, queue: queue, url: url}
}

func testContext() context.Context {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}).
		WithContext(context.Background())
}

func camiseta(quantity int) cartResponse.CartEntry {
	return cartResponse.CartEntry{
		LineID:   "line-1",
		ID:       identifier.New("1"),
		Name:     "Camiseta",
		Price:    decimal.RequireFromString("10.00"),
		Quantity: quantity,
	}
}

func TestSubmitOrder(t *testing.T) {
	c := testContext()

	t.Run("given valid customer and cart should create order notify and clear cart", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.carts.entries["s1"] = []cartResponse.CartEntry{camiseta(2)}
		form := &Form{Customer: validCustomer()}

		result, err := f.svc.SubmitOrder(c, "s1", form)
		require.NoError(t, err)
		assert.Equal(t, "42", result.OrderID.String())
		assert.NoError(t, result.NotificationErr)

		creates := f.store.callsTo("/orders")
		require.Len(t, creates, 1)
		assert.EqualValues(t, 20, creates[0].body["total"])
		assert.Equal(t, "en proceso", creates[0].body["status"])
		assert.Equal(t, "Ana", creates[0].body["nombre"])
		assert.Equal(t, "2024-05-01T10:00:00Z", creates[0].body["date"])
		assert.NotContains(t, creates[0].body, "id")
		lines, ok := creates[0].body["cart"].([]interface{})
		require.True(t, ok)
		require.Len(t, lines, 1)
		assert.NotContains(t, lines[0], "lineId")
		assert.NotEmpty(t, creates[0].idempotencyKey)

		notifications := f.store.callsTo("/send-email")
		require.Len(t, notifications, 1)
		assert.EqualValues(t, 20, notifications[0].body["total"])
		assert.Equal(t, "ana@x.com", notifications[0].body["correo"])
		assert.NotContains(t, notifications[0].body, "date")

		assert.Empty(t, f.carts.entries["s1"])
		assert.True(t, form.Succeeded)
		assert.Empty(t, form.Nombre)
		assert.Empty(t, form.Telefono)
		assert.Empty(t, form.IdempotencyKey)
		assert.Empty(t, form.Error)
	})

	t.Run("given empty cart should prompt without network call", func(t *testing.T) {
		f := newCheckoutFixture(t)
		form := &Form{Customer: validCustomer()}

		_, err := f.svc.SubmitOrder(c, "empty", form)
		assert.ErrorIs(t, err, inErrors.ErrEmptyCart)
		assert.True(t, form.EmptyCartPrompt)
		assert.Empty(t, form.Error)
		assert.False(t, form.Succeeded)
		assert.Empty(t, f.store.calls)
	})

	t.Run("given empty cart and invalid customer should still prompt for cart", func(t *testing.T) {
		f := newCheckoutFixture(t)
		form := &Form{}

		_, err := f.svc.SubmitOrder(c, "empty", form)
		assert.ErrorIs(t, err, inErrors.ErrEmptyCart)
		assert.True(t, form.EmptyCartPrompt)
		assert.Empty(t, f.store.calls)
	})

	t.Run("given invalid phone should reject without network call", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.carts.entries["s1"] = []cartResponse.CartEntry{camiseta(1)}
		customer := validCustomer()
		customer.Telefono = "4001234567"
		form := &Form{Customer: customer}

		_, err := f.svc.SubmitOrder(c, "s1", form)
		validationErr := &ValidationError{}
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, MsgInvalidTelefono, form.Error)
		assert.Empty(t, f.store.calls)
		assert.Len(t, f.carts.entries["s1"], 1)
		assert.Empty(t, form.IdempotencyKey)
	})

	t.Run("given rejected create should keep cart form and key for resubmission", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.store.createStatus = http.StatusInternalServerError
		f.carts.entries["s1"] = []cartResponse.CartEntry{camiseta(2)}
		form := &Form{Customer: validCustomer()}

		_, err := f.svc.SubmitOrder(c, "s1", form)
		require.Error(t, err)
		assert.True(t, orderstore.IsStatusError(err))
		assert.Equal(t, MsgOrderRejected, form.Error)
		assert.False(t, form.Succeeded)
		assert.Equal(t, "Ana", form.Nombre)
		assert.Len(t, f.carts.entries["s1"], 1)
		assert.Empty(t, f.store.callsTo("/send-email"))
		key := form.IdempotencyKey
		require.NotEmpty(t, key)

		f.store.mu.Lock()
		f.store.createStatus = http.StatusCreated
		f.store.mu.Unlock()

		_, err = f.svc.SubmitOrder(c, "s1", form)
		require.NoError(t, err)
		creates := f.store.callsTo("/orders")
		require.Len(t, creates, 2)
		assert.Equal(t, key, creates[0].idempotencyKey)
		assert.Equal(t, key, creates[1].idempotencyKey)
		assert.True(t, form.Succeeded)
		assert.Empty(t, form.IdempotencyKey)
	})

	t.Run("given unreachable store should report connection error and keep cart", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		f := newCheckoutFixtureWithURL(t, &fakeStore{}, url)
		f.carts.entries["s1"] = []cartResponse.CartEntry{camiseta(2)}
		form := &Form{Customer: validCustomer()}

		_, err := f.svc.SubmitOrder(c, "s1", form)
		require.Error(t, err)
		assert.False(t, orderstore.IsStatusError(err))
		assert.Equal(t, MsgStoreUnreachable, form.Error)
		assert.Equal(t, "3001234567", form.Telefono)
		assert.Len(t, f.carts.entries["s1"], 1)
	})

	t.Run("given failing notification should succeed with queued warning", func(t *testing.T) {
		f := newCheckoutFixture(t)
		f.store.notifyStatus = http.StatusServiceUnavailable
		f.carts.entries["s1"] = []cartResponse.CartEntry{camiseta(2)}
		form := &Form{Customer: validCustomer()}

		result, err := f.svc.SubmitOrder(c, "s1", form)
		require.NoError(t, err)
		assert.ErrorIs(t, result.NotificationErr, sender.ErrQueued)
		assert.Len(t, f.store.callsTo("/send-email"), 3)
		require.Len(t, f.queue.queued, 1)
		assert.True(t, decimal.NewFromInt(20).Equal(f.queue.queued[0].Total))
		assert.True(t, form.Succeeded)
		assert.Empty(t, f.carts.entries["s1"])
	})
}

func TestBuildOrder(t *testing.T) {
	tests := []struct {
		name     string
		entries  []cartResponse.CartEntry
		expected string
	}{
		{
			name:     "given single entry should multiply price by quantity",
			entries:  []cartResponse.CartEntry{camiseta(2)},
			expected: "20",
		},
		{
			name:     "given missing quantity should count one unit",
			entries:  []cartResponse.CartEntry{camiseta(0)},
			expected: "10",
		},
		{
			name: "given fractional prices should sum exactly",
			entries: []cartResponse.CartEntry{
				{ID: identifier.New("1"), Price: decimal.RequireFromString("0.10"), Quantity: 3},
				{ID: identifier.New("2"), Price: decimal.RequireFromString("0.20"), Quantity: 1},
			},
			expected: "0.5",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			date := time.Now()
			first := BuildOrder(validCustomer(), test.entries, date)
			second := BuildOrder(validCustomer(), test.entries, date)

			assert.True(t, decimal.RequireFromString(test.expected).Equal(first.Total))
			assert.True(t, first.Total.Equal(second.Total))
			assert.Equal(t, response.StatusInProcess, first.Status)
			for _, entry := range first.Cart {
				assert.Empty(t, entry.LineID)
			}
		})
	}
}
