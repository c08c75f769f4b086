// Package events provides an asynchronous event bus for decoupling location
// ingestion from realtime fanout and notification delivery, preventing
// blocking operations on the ingestion path.
package events

import (
	"time"
)

// Event types published on the bus. These match the frame types observers
// receive on the realtime stream.
const (
	TypeConnected      = "connected"
	TypeLocationUpdate = "location_update"
	TypeAlertCreated   = "alert_created"
	TypeStateChanged   = "state_changed"
)

// TrackEvent represents a per-child tracking event that can be processed
// asynchronously. This interface allows producers to push events without
// creating a circular dependency on the consumers.
type TrackEvent interface {
	// GetChildID returns the child the event belongs to
	GetChildID() string

	// GetType returns the event type for routing and framing
	GetType() string

	// GetData returns the JSON-serializable event payload
	GetData() any

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time
}

// EventConsumer represents a consumer that processes track events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single track event
	ProcessEvent(event TrackEvent) error

	// ProcessBatch processes multiple events at once (for efficiency)
	ProcessBatch(events []TrackEvent) error

	// SupportsBatching returns true if this consumer supports batch processing
	SupportsBatching() bool
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
