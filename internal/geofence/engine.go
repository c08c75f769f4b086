// Package geofence implements the per-child safety state machine. The engine
// is pure decision logic, persistence and event publication are performed by
// the ingestion pipeline that hosts it.
package geofence

import (
	"time"

	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/geo"
)

// Sample is a validated location sample under evaluation.
type Sample struct {
	Lat float64
	Lng float64
	Ts  time.Time
}

// PendingAlert describes an alert the caller must persist and publish.
type PendingAlert struct {
	Type     string  // datastore.AlertEnter or datastore.AlertExit
	ZoneID   *string // zone entered or left, nil when the left zone is gone
	ZoneName string  // resolved zone name, empty when unresolved
	Message  string
}

// Decision is the outcome of evaluating one sample against the current state.
type Decision struct {
	NextState    string
	NextZoneID   *string
	Alert        *PendingAlert
	StateChanged bool
}

// Evaluate computes the next safety state for a child given the persisted
// state, a new sample and the child's active zones. prevZoneName is the
// resolved name of the previously occupied zone, empty when it no longer
// exists.
//
// Transitions follow the caregiver-facing contract: the first sample only
// initializes the state, leaving all active zones raises an EXIT alert,
// re-entering any active zone raises an ENTER alert, and moving directly
// between two zones while staying inside is a silent reclassification.
func Evaluate(prevState string, prevZoneID *string, prevZoneName string, sample Sample, zones []datastore.Zone) Decision {
	containing := geo.FindContainingZone(sample.Lat, sample.Lng, zones)
	inside := containing != nil

	decision := Decision{
		NextState:  prevState,
		NextZoneID: prevZoneID,
	}

	switch {
	case prevState == datastore.StateUnknown:
		// First sample, initialize without an alert.
		if inside {
			decision.NextState = datastore.StateInSafe
			decision.NextZoneID = &containing.ID
		} else {
			decision.NextState = datastore.StateOutSafe
			decision.NextZoneID = nil
		}

	case prevState == datastore.StateInSafe && !inside:
		decision.NextState = datastore.StateOutSafe
		decision.NextZoneID = nil
		decision.Alert = &PendingAlert{
			Type:     datastore.AlertExit,
			ZoneID:   prevZoneID,
			ZoneName: prevZoneName,
			Message:  exitMessage(prevZoneName),
		}

	case prevState == datastore.StateOutSafe && inside:
		decision.NextState = datastore.StateInSafe
		decision.NextZoneID = &containing.ID
		decision.Alert = &PendingAlert{
			Type:     datastore.AlertEnter,
			ZoneID:   &containing.ID,
			ZoneName: containing.Name,
			Message:  "entered " + containing.Name,
		}

	case prevState == datastore.StateInSafe && inside:
		// Still inside, possibly a different zone. No alert.
		decision.NextState = datastore.StateInSafe
		decision.NextZoneID = &containing.ID

	default:
		// OUT_SAFE and still outside, nothing changes.
	}

	decision.StateChanged = decision.NextState != prevState
	return decision
}

func exitMessage(zoneName string) string {
	if zoneName == "" {
		return "left safe zone"
	}
	return "left " + zoneName
}
