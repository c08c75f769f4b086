package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// recordingConsumer captures events published on the bus.
type recordingConsumer struct {
	mu     sync.Mutex
	events []events.TrackEvent
}

func (r *recordingConsumer) Name() string { return "recording" }

func (r *recordingConsumer) ProcessEvent(event events.TrackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingConsumer) ProcessBatch(batch []events.TrackEvent) error {
	for _, event := range batch {
		_ = r.ProcessEvent(event)
	}
	return nil
}

func (r *recordingConsumer) SupportsBatching() bool { return false }

func (r *recordingConsumer) typesForChild(childID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, event := range r.events {
		if event.GetChildID() == childID {
			types = append(types, event.GetType())
		}
	}
	return types
}

type pipelineFixture struct {
	pipeline *Pipeline
	ds       *datastore.DataStore
	consumer *recordingConsumer
	child    datastore.Child
	homeZone datastore.Zone
}

func newFixture(t *testing.T, opts ...Option) *pipelineFixture {
	t.Helper()

	// A named shared-cache database keeps all pooled connections on the
	// same in-memory instance.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.Child{},
		&datastore.Tracker{},
		&datastore.Zone{},
		&datastore.LocationPoint{},
		&datastore.GeofenceState{},
		&datastore.Alert{},
	))
	ds := &datastore.DataStore{DB: db}

	events.ResetForTesting()
	t.Cleanup(events.ResetForTesting)
	bus, err := events.Initialize(&events.Config{BufferSize: 100, Workers: 1, Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Shutdown(time.Second) })

	consumer := &recordingConsumer{}
	require.NoError(t, bus.RegisterConsumer(consumer))

	child := datastore.Child{UserID: "user-1", Name: "Anna"}
	require.NoError(t, ds.SaveChild(&child))

	home := datastore.Zone{
		ChildID:   child.ID,
		Name:      "Home",
		CenterLat: 21.0285,
		CenterLng: 105.8542,
		RadiusM:   150,
		Active:    true,
	}
	require.NoError(t, ds.SaveZone(&home))

	return &pipelineFixture{
		pipeline: New(ds, bus, opts...),
		ds:       ds,
		consumer: consumer,
		child:    child,
		homeZone: home,
	}
}

func sampleAt(lat, lng float64) Sample {
	ts := time.Now().Truncate(time.Second)
	return Sample{Lat: &lat, Lng: &lng, Ts: &ts}
}

func waitForEvents(t *testing.T, consumer *recordingConsumer, childID string, expected int) []string {
	t.Helper()
	var types []string
	require.Eventually(t, func() bool {
		types = consumer.typesForChild(childID)
		return len(types) >= expected
	}, time.Second, 5*time.Millisecond)
	return types
}

func TestValidationRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lat, lng := 21.0285, 105.8542
	ts := time.Now()

	tests := []struct {
		name   string
		sample Sample
	}{
		{"missing lat", Sample{Lng: &lng, Ts: &ts}},
		{"missing lng", Sample{Lat: &lat, Ts: &ts}},
		{"missing ts", Sample{Lat: &lat, Lng: &lng}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.ProcessSample(ctx, f.child.ID, tt.sample)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}

	// Nothing was persisted for rejected samples.
	var count int64
	require.NoError(t, f.ds.DB.Model(&datastore.LocationPoint{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLowAccuracySampleRecordedButNotEvaluated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sample := sampleAt(21.0285, 105.8542)
	accuracy := 80.0
	sample.AccuracyM = &accuracy

	outcome, err := f.pipeline.ProcessSample(ctx, f.child.ID, sample)
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, outcome.Status)
	assert.Equal(t, ReasonAccuracyTooLow, outcome.Reason)

	// Raw telemetry is durably recorded.
	var count int64
	require.NoError(t, f.ds.DB.Model(&datastore.LocationPoint{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// State machine never ran.
	state, err := f.ds.GetGeofenceState(f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateUnknown, state.LastSafeState)

	// No events were published.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.consumer.typesForChild(f.child.ID))
}

func TestCustomAccuracyThreshold(t *testing.T) {
	f := newFixture(t, WithMaxAccuracy(100))
	ctx := context.Background()

	sample := sampleAt(21.0285, 105.8542)
	accuracy := 80.0
	sample.AccuracyM = &accuracy

	outcome, err := f.pipeline.ProcessSample(ctx, f.child.ID, sample)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, outcome.Status)
}

func TestFirstSampleInitializesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0285, 105.8542))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, outcome.Status)

	state, err := f.ds.GetGeofenceState(f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateInSafe, state.LastSafeState)
	require.NotNil(t, state.LastZoneID)
	assert.Equal(t, f.homeZone.ID, *state.LastZoneID)

	// No alert on initialization.
	alerts, err := f.ds.GetAlerts(f.child.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// location_update and state_changed, no alert_created.
	types := waitForEvents(t, f.consumer, f.child.ID, 2)
	assert.Contains(t, types, events.TypeLocationUpdate)
	assert.Contains(t, types, events.TypeStateChanged)
	assert.NotContains(t, types, events.TypeAlertCreated)
}

func TestExitAndReentryScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Walk the reference scenario: center -> 200 m north -> back to center.
	_, err := f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0285, 105.8542))
	require.NoError(t, err)

	_, err = f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0303, 105.8542))
	require.NoError(t, err)

	state, err := f.ds.GetGeofenceState(f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateOutSafe, state.LastSafeState)
	assert.Nil(t, state.LastZoneID)

	alerts, err := f.ds.GetAlerts(f.child.ID, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, datastore.AlertExit, alerts[0].Type)
	assert.Equal(t, "left Home", alerts[0].Message)
	require.NotNil(t, alerts[0].ZoneID)
	assert.Equal(t, f.homeZone.ID, *alerts[0].ZoneID)

	_, err = f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0285, 105.8542))
	require.NoError(t, err)

	alerts, err = f.ds.GetAlerts(f.child.ID, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	// Newest first.
	assert.Equal(t, datastore.AlertEnter, alerts[0].Type)
	assert.Equal(t, "entered Home", alerts[0].Message)

	state, err = f.ds.GetGeofenceState(f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateInSafe, state.LastSafeState)
}

func TestStayingInsideEmitsNoAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0285, 105.8542))
		require.NoError(t, err)
	}

	alerts, err := f.ds.GetAlerts(f.child.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	// Exactly one state row regardless of sample count.
	var count int64
	require.NoError(t, f.ds.DB.Model(&datastore.GeofenceState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUnknownChildFailsBeforeStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.ProcessSample(ctx, "missing-child", sampleAt(21.0285, 105.8542))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestConcurrentSamplesSameChildProduceSingleAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Establish IN_SAFE first.
	_, err := f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0285, 105.8542))
	require.NoError(t, err)

	// Many concurrent outside samples: serialization means only the first
	// evaluation sees IN_SAFE, so exactly one EXIT alert is created.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.ProcessSample(ctx, f.child.ID, sampleAt(21.0303, 105.8542))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	alerts, err := f.ds.GetAlerts(f.child.ID, 100)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, datastore.AlertExit, alerts[0].Type)
}
