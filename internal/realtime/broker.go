// Package realtime maintains live observer connections per child and fans
// tracking events out to all of them. The broker owns only in-process state,
// a connection lives exactly as long as its underlying transport.
package realtime

import (
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/safetrack/safetrack-go/internal/logging"
	"github.com/safetrack/safetrack-go/internal/observability/metrics"
)

// DefaultSendTimeout is how long a delivery waits on a blocked observer
// channel before the observer is evicted.
const DefaultSendTimeout = 3 * time.Second

// DefaultClientBuffer is the per-observer frame buffer size.
const DefaultClientBuffer = 100

// Frame is a single event frame pushed to observers.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client represents one connected observer of one child.
type Client struct {
	ID      string
	ChildID string
	Frames  chan Frame
	Done    chan struct{}
}

// Broker manages observer registrations keyed by child and broadcasts frames.
type Broker struct {
	clients map[string]map[string]*Client // childID -> clientID -> client
	mutex   sync.RWMutex

	clientBuffer int
	sendTimeout  time.Duration

	logger  *slog.Logger
	metrics *metrics.RealtimeMetrics
}

// Option configures a Broker.
type Option func(*Broker)

// WithSendTimeout overrides the blocked-observer eviction timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.sendTimeout = d
	}
}

// WithClientBuffer overrides the per-observer frame buffer size.
func WithClientBuffer(n int) Option {
	return func(b *Broker) {
		b.clientBuffer = n
	}
}

// WithMetrics attaches realtime metrics to the broker.
func WithMetrics(m *metrics.RealtimeMetrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

// NewBroker creates a new observer broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		clients:      make(map[string]map[string]*Client),
		clientBuffer: DefaultClientBuffer,
		sendTimeout:  DefaultSendTimeout,
		logger:       logging.ForService("realtime"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new observer for the child and queues the initial
// connected frame. The caller must drain Frames and call Unsubscribe when
// the transport closes.
func (b *Broker) Subscribe(childID string) *Client {
	client := &Client{
		ID:      uuid.NewString(),
		ChildID: childID,
		Frames:  make(chan Frame, b.clientBuffer),
		Done:    make(chan struct{}),
	}

	b.mutex.Lock()
	set, exists := b.clients[childID]
	if !exists {
		set = make(map[string]*Client)
		b.clients[childID] = set
	}
	set[client.ID] = client

	// Queued before any broadcast can reach this client, so the connected
	// frame is always first.
	client.Frames <- Frame{Type: events.TypeConnected, Data: map[string]string{
		"client_id": client.ID,
		"child_id":  childID,
	}}
	total := b.totalLocked()
	b.mutex.Unlock()

	if b.metrics != nil {
		b.metrics.ConnectedClients.Set(float64(total))
	}
	if b.logger != nil {
		b.logger.Debug("observer connected",
			"client_id", client.ID,
			"child_id", childID,
			"total_clients", total,
		)
	}
	return client
}

// Unsubscribe removes an observer. When the child's observer set becomes
// empty its registry entry is reclaimed.
func (b *Broker) Unsubscribe(childID, clientID string) {
	b.mutex.Lock()
	set, exists := b.clients[childID]
	if !exists {
		b.mutex.Unlock()
		return
	}
	client, exists := set[clientID]
	if !exists {
		b.mutex.Unlock()
		return
	}
	close(client.Frames)
	close(client.Done)
	delete(set, clientID)
	if len(set) == 0 {
		delete(b.clients, childID)
	}
	total := b.totalLocked()
	b.mutex.Unlock()

	if b.metrics != nil {
		b.metrics.ConnectedClients.Set(float64(total))
	}
	if b.logger != nil {
		b.logger.Debug("observer disconnected",
			"client_id", clientID,
			"child_id", childID,
			"total_clients", total,
		)
	}
}

// Publish delivers a frame to every observer of the child. A blocked or dead
// observer never prevents delivery to the others, it is evicted instead.
func (b *Broker) Publish(childID string, frame Frame) {
	b.mutex.RLock()
	set, exists := b.clients[childID]
	if !exists || len(set) == 0 {
		b.mutex.RUnlock()
		return
	}

	// Collect blocked client IDs to remove them after releasing the lock
	var blocked []string

	for clientID, client := range set {
		select {
		case client.Frames <- frame:
			if b.metrics != nil {
				b.metrics.FramesDelivered.Inc()
			}
		case <-time.After(b.sendTimeout):
			if b.logger != nil {
				b.logger.Warn("observer appears blocked, will remove",
					"client_id", clientID,
					"child_id", childID,
				)
			}
			blocked = append(blocked, clientID)
		}
	}
	b.mutex.RUnlock()

	// Remove blocked clients without holding the lock to avoid deadlock
	for _, clientID := range blocked {
		if b.metrics != nil {
			b.metrics.DeliveryFailures.Inc()
		}
		go b.Unsubscribe(childID, clientID)
	}
}

// ClientCount returns the number of observers currently subscribed to a child.
func (b *Broker) ClientCount(childID string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients[childID])
}

// TotalClients returns the number of connected observers across all children.
func (b *Broker) TotalClients() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.totalLocked()
}

func (b *Broker) totalLocked() int {
	total := 0
	for _, set := range b.clients {
		total += len(set)
	}
	return total
}

// --- events.EventConsumer ---

// Name identifies the broker on the event bus.
func (b *Broker) Name() string {
	return "sse-broker"
}

// ProcessEvent fans a bus event out to the observers of its child.
func (b *Broker) ProcessEvent(event events.TrackEvent) error {
	b.Publish(event.GetChildID(), Frame{Type: event.GetType(), Data: event.GetData()})
	return nil
}

// ProcessBatch fans multiple events out in order.
func (b *Broker) ProcessBatch(batch []events.TrackEvent) error {
	for _, event := range batch {
		if err := b.ProcessEvent(event); err != nil {
			return err
		}
	}
	return nil
}

// SupportsBatching returns false, frames are delivered one by one.
func (b *Broker) SupportsBatching() bool {
	return false
}
