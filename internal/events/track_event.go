package events

import (
	"time"

	"github.com/safetrack/safetrack-go/internal/datastore"
)

// trackEvent is the concrete TrackEvent carried by the bus.
type trackEvent struct {
	childID   string
	eventType string
	data      any
	timestamp time.Time
}

func (e *trackEvent) GetChildID() string      { return e.childID }
func (e *trackEvent) GetType() string         { return e.eventType }
func (e *trackEvent) GetData() any            { return e.data }
func (e *trackEvent) GetTimestamp() time.Time { return e.timestamp }

// StateChange is the payload of a state_changed event.
type StateChange struct {
	ChildID  string    `json:"child_id"`
	OldState string    `json:"old_state"`
	NewState string    `json:"new_state"`
	ZoneID   *string   `json:"zone_id,omitempty"`
	Ts       time.Time `json:"ts"`
}

// NewLocationUpdateEvent creates a location_update event for a persisted point.
func NewLocationUpdateEvent(point *datastore.LocationPoint) TrackEvent {
	return &trackEvent{
		childID:   point.ChildID,
		eventType: TypeLocationUpdate,
		data:      point,
		timestamp: time.Now(),
	}
}

// NewAlertCreatedEvent creates an alert_created event for a persisted alert.
func NewAlertCreatedEvent(alert *datastore.Alert) TrackEvent {
	return &trackEvent{
		childID:   alert.ChildID,
		eventType: TypeAlertCreated,
		data:      alert,
		timestamp: time.Now(),
	}
}

// NewStateChangedEvent creates a state_changed event.
func NewStateChangedEvent(change *StateChange) TrackEvent {
	return &trackEvent{
		childID:   change.ChildID,
		eventType: TypeStateChanged,
		data:      change,
		timestamp: time.Now(),
	}
}
