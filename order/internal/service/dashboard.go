package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	cartResponse "github.com/sienaconfecciones/storefront/cart/pkg/response"
	inErrors "github.com/sienaconfecciones/storefront/internal/errors"
	"github.com/sienaconfecciones/storefront/internal/identifier"
	"github.com/sienaconfecciones/storefront/internal/log"
	"github.com/sienaconfecciones/storefront/internal/metrics"
	"github.com/sienaconfecciones/storefront/order/internal/otel"
	"github.com/sienaconfecciones/storefront/order/pkg/request"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type OrderStore interface {
	ListOrders(c context.Context) ([]response.Order, error)
	UpdateOrder(c context.Context, order response.Order) (response.Order, error)
	DeleteOrder(c context.Context, id identifier.ID) error
}

type EditSession struct {
	OrderID   identifier.ID   `json:"orderId"`
	Status    response.Status `json:"status"`
	Direccion string          `json:"direccion"`
}

// DashboardService keeps the admin's copy of the order list. The copy is refetched on
// explicit refresh and after any failed mutation, since the store may have diverged.
type DashboardService struct {
	store             OrderStore
	resetStatusOnEdit bool

	mu     sync.Mutex
	orders []response.Order
	loaded bool
	stale  bool
	// mutations counts finished updates and deletes. A fetch that overlapped one does not
	// clear stale.
	mutations uint64
	sessions  map[string]EditSession
	expanded  map[string]bool
}

func NewDashboardService(store OrderStore, resetStatusOnEdit bool) *DashboardService {
	return &DashboardService{
		store:             store,
		resetStatusOnEdit: resetStatusOnEdit,
		sessions:          map[string]EditSession{},
		expanded:          map[string]bool{},
	}
}

func (s *DashboardService) List(c context.Context, refresh bool) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "DashboardService List")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardService List").
		Bool(log.KeyRefresh, refresh).
		Logger()

	s.mu.Lock()
	if s.loaded && !s.stale && !refresh {
		orders := cloneOrders(s.orders)
		s.mu.Unlock()
		logger.Debug().Int(log.KeyOrdersCount, len(orders)).Msg("serving cached orders")
		return orders, nil
	}
	mutations := s.mutations
	s.mu.Unlock()

	logger = logger.With().Str(log.KeyProcess, "fetching orders").Logger()
	logger.Info().Msg("fetching orders")
	c = logger.WithContext(c)
	orders, err := s.store.ListOrders(c)
	if err != nil {
		err = fmt.Errorf("failed fetching orders with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int(log.KeyOrdersCount, len(orders)).Msg("fetched orders")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
	s.loaded = true
	if s.mutations == mutations {
		s.stale = false
	} else {
		s.stale = true
		logger.Warn().Msg("orders changed while fetching, keeping cache stale")
	}
	return cloneOrders(s.orders), nil
}

func (s *DashboardService) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Filter keeps orders whose name contains query ignoring case or whose id text contains it.
func Filter(orders []response.Order, query string) []response.Order {
	if query == "" {
		return orders
	}
	lowered := strings.ToLower(query)
	filtered := make([]response.Order, 0, len(orders))
	for _, order := range orders {
		if strings.Contains(strings.ToLower(order.Nombre), lowered) ||
			strings.Contains(order.ID.String(), query) {
			filtered = append(filtered, order)
		}
	}
	return filtered
}

// BeginEdit opens an edit session on a cached order, seeded with its address and its
// current status unless the dashboard is configured to reset it.
func (s *DashboardService) BeginEdit(id string) (EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return EditSession{}, inErrors.ErrOrderNotFound
	}
	order := s.orders[idx]

	status := order.Status
	if s.resetStatusOnEdit || !status.Valid() {
		status = response.StatusInProcess
	}
	session := EditSession{OrderID: order.ID, Status: status, Direccion: order.Direccion}
	s.sessions[id] = session
	return session, nil
}

func (s *DashboardService) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *DashboardService) Session(id string) (EditSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// CommitEdit replaces the stored order with the cached record carrying the edited status and
// address. The session stays open when the store rejects the update.
func (s *DashboardService) CommitEdit(
	c context.Context,
	id string,
	edit request.EditOrder,
) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "DashboardService CommitEdit")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardService CommitEdit").
		Str(log.KeyOrderID, id).
		Str(log.KeyStatus, string(edit.Status)).
		Logger()

	if !edit.Status.Valid() {
		err := fmt.Errorf(
			"failed committing edit status=%s with error=%w",
			edit.Status,
			inErrors.ErrInvalidStatus,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		err := fmt.Errorf("failed committing edit with error=%w", inErrors.ErrNoEditSession)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("failed committing edit with error=%w", inErrors.ErrOrderNotFound)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	updated := cloneOrder(s.orders[idx])
	s.sessions[id] = EditSession{OrderID: updated.ID, Status: edit.Status, Direccion: edit.Direccion}
	s.mu.Unlock()

	updated.Status = edit.Status
	updated.Direccion = edit.Direccion

	logger = logger.With().Str(log.KeyProcess, "updating order").Logger()
	logger.Info().Msg("updating order")
	c = logger.WithContext(c)
	_, err := s.store.UpdateOrder(c, updated)
	if err != nil {
		s.mu.Lock()
		s.stale = true
		s.mutations++
		s.mu.Unlock()
		metrics.DashboardMutations.WithLabelValues("update", "failed").Inc()
		err = fmt.Errorf("failed updating order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	metrics.DashboardMutations.WithLabelValues("update", "success").Inc()
	logger.Info().Msg("updated order")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	if idx := s.indexOf(id); idx >= 0 {
		s.orders[idx].Status = edit.Status
		s.orders[idx].Direccion = edit.Direccion
	}
	delete(s.sessions, id)
	return updated, nil
}

func (s *DashboardService) DeleteOrder(c context.Context, id string) error {
	c, span := otel.Tracer.Start(c, "DashboardService DeleteOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "DashboardService DeleteOrder").
		Str(log.KeyOrderID, id).
		Logger()

	s.mu.Lock()
	orderID := identifier.New(id)
	if idx := s.indexOf(id); idx >= 0 {
		orderID = s.orders[idx].ID
	}
	s.mu.Unlock()

	logger = logger.With().Str(log.KeyProcess, "deleting order").Logger()
	logger.Info().Msg("deleting order")
	c = logger.WithContext(c)
	err := s.store.DeleteOrder(c, orderID)
	if err != nil {
		s.mu.Lock()
		s.stale = true
		s.mutations++
		s.mu.Unlock()
		metrics.DashboardMutations.WithLabelValues("delete", "failed").Inc()
		err = fmt.Errorf("failed deleting order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	metrics.DashboardMutations.WithLabelValues("delete", "success").Inc()
	logger.Info().Msg("deleted order")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	if idx := s.indexOf(id); idx >= 0 {
		s.orders = append(s.orders[:idx], s.orders[idx+1:]...)
	}
	delete(s.sessions, id)
	delete(s.expanded, id)
	return nil
}

// ToggleExpand flips whether the full cart of an order is shown and returns the new state.
func (s *DashboardService) ToggleExpand(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[id] = !s.expanded[id]
	return s.expanded[id]
}

func (s *DashboardService) Expanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[id]
}

// VisibleItems is the first cart line of a collapsed order or the whole cart when expanded.
func (s *DashboardService) VisibleItems(order response.Order) []cartResponse.CartEntry {
	if s.Expanded(order.ID.String()) || len(order.Cart) <= 1 {
		return order.Cart
	}
	return order.Cart[:1]
}

// indexOf must be called with mu held.
func (s *DashboardService) indexOf(id string) int {
	for i, order := range s.orders {
		if order.ID.String() == id {
			return i
		}
	}
	return -1
}

func cloneOrder(order response.Order) response.Order {
	order.Cart = append([]cartResponse.CartEntry(nil), order.Cart...)
	return order
}

func cloneOrders(orders []response.Order) []response.Order {
	cloned := make([]response.Order, len(orders))
	for i, order := range orders {
		cloned[i] = cloneOrder(order)
	}
	return cloned
}
