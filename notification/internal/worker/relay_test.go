package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sienaconfecciones/storefront/internal/config"
	"github.com/sienaconfecciones/storefront/internal/orderstore"
	"github.com/sienaconfecciones/storefront/notification/pkg/outbox"
	"github.com/sienaconfecciones/storefront/order/pkg/response"
)

type memoryOutbox struct {
	mu         sync.Mutex
	pending    []outbox.Message
	acked      []string
	requeued   []outbox.Message
	deadLetter []outbox.Message
	recovered  bool
}

func (m *memoryOutbox) Claim(_ context.Context, max int) ([]outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > len(m.pending) {
		max = len(m.pending)
	}
	claimed := m.pending[:max]
	m.pending = m.pending[max:]
	return claimed, nil
}

func (m *memoryOutbox) Ack(_ context.Context, msg outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *memoryOutbox) Requeue(_ context.Context, msg outbox.Message, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Attempts++
	m.requeued = append(m.requeued, msg)
	return nil
}

func (m *memoryOutbox) DeadLetter(_ context.Context, msg outbox.Message, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetter = append(m.deadLetter, msg)
	return nil
}

func (m *memoryOutbox) Recover(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered = true
	return 0, nil
}

type selectiveClient struct {
	mu        sync.Mutex
	failFor   map[string]bool
	rejectFor map[string]bool
	sent      []string
}

func (s *selectiveClient) SendNotification(_ context.Context, n response.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectFor[n.Nombre] {
		return &orderstore.StatusError{Method: "POST", Path: "/send-email", StatusCode: 422}
	}
	if s.failFor[n.Nombre] {
		return errors.New("unavailable")
	}
	s.sent = append(s.sent, n.Nombre)
	return nil
}

func message(id, nombre string, attempts int) outbox.Message {
	return outbox.Message{
		ID:           id,
		Attempts:     attempts,
		Notification: response.Notification{Nombre: nombre},
	}
}

func TestRelayBatch(t *testing.T) {
	box := &memoryOutbox{pending: []outbox.Message{
		message("m1", "Ana", 0),
		message("m2", "Luis", 0),
		message("m3", "Marta", 4),
		message("m4", "Sofía", 0),
	}}
	client := &selectiveClient{failFor: map[string]bool{"Luis": true, "Marta": true}}
	relay := NewRelay(box, client, config.Notification{RelayBatchSize: 3, MaxRelayAttempts: 5})

	delivered, err := relay.RelayBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"Ana"}, client.sent)
	assert.Equal(t, []string{"m1"}, box.acked)
	require.Len(t, box.requeued, 1)
	assert.Equal(t, "m2", box.requeued[0].ID)
	require.Len(t, box.deadLetter, 1)
	assert.Equal(t, "m3", box.deadLetter[0].ID)
	assert.Len(t, box.pending, 1)
}

func TestRelayBatchWithRejectedNotification(t *testing.T) {
	box := &memoryOutbox{pending: []outbox.Message{message("m1", "Ana", 0)}}
	client := &selectiveClient{rejectFor: map[string]bool{"Ana": true}}
	relay := NewRelay(box, client, config.Notification{RelayBatchSize: 10, MaxRelayAttempts: 5})

	delivered, err := relay.RelayBatch(context.Background())
	require.NoError(t, err)

	assert.Zero(t, delivered)
	assert.Empty(t, box.requeued)
	require.Len(t, box.deadLetter, 1)
	assert.Equal(t, "m1", box.deadLetter[0].ID)
}

func TestRelayRun(t *testing.T) {
	box := &memoryOutbox{pending: []outbox.Message{message("m1", "Ana", 0)}}
	client := &selectiveClient{}
	relay := NewRelay(box, client, config.Notification{
		RelayInterval:    5 * time.Millisecond,
		RelayBatchSize:   10,
		MaxRelayAttempts: 3,
	})

	c, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(c) }()

	assert.Eventually(t, func() bool {
		box.mu.Lock()
		defer box.mu.Unlock()
		return len(box.acked) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, box.recovered)
}
