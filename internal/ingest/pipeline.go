// Package ingest implements the location ingestion pipeline: it validates
// incoming samples, persists them, runs the geofence engine and publishes the
// resulting events. All evaluations for one child are strictly serialized,
// different children proceed in parallel.
package ingest

import (
	"context"
	"time"

	"log/slog"

	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/safetrack/safetrack-go/internal/geofence"
	"github.com/safetrack/safetrack-go/internal/logging"
	"github.com/safetrack/safetrack-go/internal/observability/metrics"
)

// DefaultMaxAccuracy is the maximum accepted GPS accuracy in meters. Samples
// reporting worse accuracy are recorded but not evaluated.
const DefaultMaxAccuracy = 50.0

// Outcome statuses returned to the ingestion caller.
const (
	StatusOK      = "ok"
	StatusIgnored = "ignored"

	ReasonAccuracyTooLow = "accuracy_too_low"
)

// Sample is an incoming location sample. Pointer fields distinguish a missing
// value from a legitimate zero, latitude 0 is a real place.
type Sample struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Ts        *time.Time `json:"ts"`
	AccuracyM *float64   `json:"accuracy_m,omitempty"`
	SpeedMps  *float64   `json:"speed_mps,omitempty"`
}

// Outcome is the definite result of an ingestion call.
type Outcome struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Pipeline processes location samples for tracked children.
type Pipeline struct {
	ds          datastore.Interface
	bus         *events.EventBus
	locks       *entityLocker
	maxAccuracy float64
	logger      *slog.Logger
	metrics     *metrics.IngestMetrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxAccuracy overrides the accuracy gate threshold in meters.
func WithMaxAccuracy(meters float64) Option {
	return func(p *Pipeline) {
		p.maxAccuracy = meters
	}
}

// WithMetrics attaches ingest metrics to the pipeline.
func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a new ingestion pipeline. The event bus may be nil, in which
// case events are simply not published.
func New(ds datastore.Interface, bus *events.EventBus, opts ...Option) *Pipeline {
	p := &Pipeline{
		ds:          ds,
		bus:         bus,
		locks:       newEntityLocker(),
		maxAccuracy: DefaultMaxAccuracy,
		logger:      logging.ForService("ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSample ingests one sample for a child. It returns a definite outcome
// (accepted or ignored) or an error when validation or persistence failed.
func (p *Pipeline) ProcessSample(ctx context.Context, childID string, sample Sample) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if p.metrics != nil {
		start := time.Now()
		defer func() {
			p.metrics.ProcessDuration.Observe(time.Since(start).Seconds())
		}()
	}

	if err := validateSample(&sample); err != nil {
		if p.metrics != nil {
			p.metrics.SamplesRejected.Inc()
		}
		return Outcome{}, err
	}

	point := &datastore.LocationPoint{
		ChildID:   childID,
		Ts:        *sample.Ts,
		Lat:       *sample.Lat,
		Lng:       *sample.Lng,
		AccuracyM: sample.AccuracyM,
		SpeedMps:  sample.SpeedMps,
	}

	// Low accuracy samples are kept as raw telemetry but never reach the
	// geofence engine.
	if sample.AccuracyM != nil && *sample.AccuracyM > p.maxAccuracy {
		if err := p.ds.SaveLocation(point); err != nil {
			return Outcome{}, err
		}
		if p.metrics != nil {
			p.metrics.SamplesIgnored.Inc()
		}
		if p.logger != nil {
			p.logger.Debug("sample ignored for low accuracy",
				"child_id", childID,
				"accuracy_m", *sample.AccuracyM,
				"max_accuracy_m", p.maxAccuracy,
			)
		}
		return Outcome{Status: StatusIgnored, Reason: ReasonAccuracyTooLow}, nil
	}

	// All state reads and writes for this child happen under its lock so
	// concurrent samples cannot both observe the same prior state.
	unlock := p.locks.Lock(childID)
	defer unlock()

	if err := p.ds.SaveLocation(point); err != nil {
		return Outcome{}, err
	}

	child, err := p.ds.GetChild(childID)
	if err != nil {
		return Outcome{}, err
	}

	state, err := p.ds.GetGeofenceState(childID)
	if err != nil {
		return Outcome{}, err
	}

	zones, err := p.ds.GetActiveZones(childID)
	if err != nil {
		return Outcome{}, err
	}

	decision := geofence.Evaluate(
		state.LastSafeState,
		state.LastZoneID,
		p.resolveZoneName(state.LastZoneID),
		geofence.Sample{Lat: point.Lat, Lng: point.Lng, Ts: point.Ts},
		zones,
	)

	newState := &datastore.GeofenceState{
		ChildID:       childID,
		LastSafeState: decision.NextState,
		LastZoneID:    decision.NextZoneID,
		LastTs:        point.Ts,
	}
	if err := p.ds.UpsertGeofenceState(newState); err != nil {
		return Outcome{}, err
	}

	var alert *datastore.Alert
	if decision.Alert != nil {
		alert = &datastore.Alert{
			ChildID:  childID,
			UserID:   child.UserID,
			Ts:       point.Ts,
			Type:     decision.Alert.Type,
			ZoneID:   decision.Alert.ZoneID,
			ZoneName: decision.Alert.ZoneName,
			Lat:      point.Lat,
			Lng:      point.Lng,
			Message:  decision.Alert.Message,
		}
		if err := p.ds.SaveAlert(alert); err != nil {
			return Outcome{}, err
		}
		if p.metrics != nil {
			p.metrics.AlertsCreated.WithLabelValues(alert.Type).Inc()
		}
		if p.logger != nil {
			p.logger.Info("geofence alert created",
				"child_id", childID,
				"type", alert.Type,
				"message", alert.Message,
			)
		}
	}

	p.publish(events.NewLocationUpdateEvent(point))
	if alert != nil {
		p.publish(events.NewAlertCreatedEvent(alert))
	}
	if decision.StateChanged {
		p.publish(events.NewStateChangedEvent(&events.StateChange{
			ChildID:  childID,
			OldState: state.LastSafeState,
			NewState: decision.NextState,
			ZoneID:   decision.NextZoneID,
			Ts:       point.Ts,
		}))
	}

	if p.metrics != nil {
		p.metrics.SamplesProcessed.Inc()
	}
	return Outcome{Status: StatusOK}, nil
}

// resolveZoneName resolves the name of the previously occupied zone.
// A zone deleted since the last evaluation yields an empty name, which the
// engine turns into a generic exit message.
func (p *Pipeline) resolveZoneName(zoneID *string) string {
	if zoneID == nil {
		return ""
	}
	zone, err := p.ds.GetZone(*zoneID)
	if err != nil {
		return ""
	}
	return zone.Name
}

func (p *Pipeline) publish(event events.TrackEvent) {
	if p.bus == nil {
		return
	}
	if !p.bus.TryPublish(event) && p.logger != nil {
		p.logger.Debug("event not published",
			"child_id", event.GetChildID(),
			"event_type", event.GetType(),
		)
	}
}

func validateSample(sample *Sample) error {
	switch {
	case sample.Lat == nil:
		return errors.ValidationError("lat is required")
	case sample.Lng == nil:
		return errors.ValidationError("lng is required")
	case sample.Ts == nil:
		return errors.ValidationError("ts is required")
	}
	return nil
}
