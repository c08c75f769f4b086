package geofence

import (
	"testing"
	"time"

	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	home = datastore.Zone{
		ID:        "zone-home",
		Name:      "Home",
		CenterLat: 21.0285,
		CenterLng: 105.8542,
		RadiusM:   150,
		Active:    true,
	}
	school = datastore.Zone{
		ID:        "zone-school",
		Name:      "School",
		CenterLat: 21.0400,
		CenterLng: 105.8542,
		RadiusM:   150,
		Active:    true,
	}

	insideHome   = Sample{Lat: 21.0285, Lng: 105.8542, Ts: time.Now()}
	insideSchool = Sample{Lat: 21.0400, Lng: 105.8542, Ts: time.Now()}
	outside      = Sample{Lat: 21.0303, Lng: 105.8542, Ts: time.Now()} // about 200 m north of Home
)

func strPtr(s string) *string { return &s }

func TestFirstSampleInitializesWithoutAlert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sample    Sample
		wantState string
		wantZone  *string
	}{
		{"inside a zone", insideHome, datastore.StateInSafe, strPtr("zone-home")},
		{"outside all zones", outside, datastore.StateOutSafe, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Evaluate(datastore.StateUnknown, nil, "", tt.sample, []datastore.Zone{home})

			assert.Equal(t, tt.wantState, d.NextState)
			if tt.wantZone == nil {
				assert.Nil(t, d.NextZoneID)
			} else {
				require.NotNil(t, d.NextZoneID)
				assert.Equal(t, *tt.wantZone, *d.NextZoneID)
			}
			assert.Nil(t, d.Alert, "initialization must not raise an alert")
			assert.True(t, d.StateChanged)
		})
	}
}

func TestExitRaisesAlertReferencingLeftZone(t *testing.T) {
	t.Parallel()

	d := Evaluate(datastore.StateInSafe, strPtr("zone-home"), "Home", outside, []datastore.Zone{home})

	assert.Equal(t, datastore.StateOutSafe, d.NextState)
	assert.Nil(t, d.NextZoneID)
	assert.True(t, d.StateChanged)

	require.NotNil(t, d.Alert)
	assert.Equal(t, datastore.AlertExit, d.Alert.Type)
	require.NotNil(t, d.Alert.ZoneID)
	assert.Equal(t, "zone-home", *d.Alert.ZoneID)
	assert.Equal(t, "left Home", d.Alert.Message)
}

func TestExitWithDeletedZoneFallsBackToGenericMessage(t *testing.T) {
	t.Parallel()

	// The occupied zone disappeared between evaluations.
	d := Evaluate(datastore.StateInSafe, strPtr("zone-home"), "", outside, nil)

	require.NotNil(t, d.Alert)
	assert.Equal(t, datastore.AlertExit, d.Alert.Type)
	assert.Equal(t, "left safe zone", d.Alert.Message)
}

func TestEnterRaisesAlertReferencingFoundZone(t *testing.T) {
	t.Parallel()

	d := Evaluate(datastore.StateOutSafe, nil, "", insideHome, []datastore.Zone{home})

	assert.Equal(t, datastore.StateInSafe, d.NextState)
	require.NotNil(t, d.NextZoneID)
	assert.Equal(t, "zone-home", *d.NextZoneID)
	assert.True(t, d.StateChanged)

	require.NotNil(t, d.Alert)
	assert.Equal(t, datastore.AlertEnter, d.Alert.Type)
	assert.Equal(t, "entered Home", d.Alert.Message)
}

func TestZoneToZoneMoveIsSilent(t *testing.T) {
	t.Parallel()

	d := Evaluate(datastore.StateInSafe, strPtr("zone-home"), "Home", insideSchool, []datastore.Zone{home, school})

	assert.Equal(t, datastore.StateInSafe, d.NextState)
	require.NotNil(t, d.NextZoneID)
	assert.Equal(t, "zone-school", *d.NextZoneID)
	assert.Nil(t, d.Alert, "zone-to-zone move must not raise an alert")
	assert.False(t, d.StateChanged)
}

func TestStayingOutsideIsSilent(t *testing.T) {
	t.Parallel()

	d := Evaluate(datastore.StateOutSafe, nil, "", outside, []datastore.Zone{home})

	assert.Equal(t, datastore.StateOutSafe, d.NextState)
	assert.Nil(t, d.NextZoneID)
	assert.Nil(t, d.Alert)
	assert.False(t, d.StateChanged)
}

func TestStayingInsideSameZoneIsSilent(t *testing.T) {
	t.Parallel()

	d := Evaluate(datastore.StateInSafe, strPtr("zone-home"), "Home", insideHome, []datastore.Zone{home})

	assert.Equal(t, datastore.StateInSafe, d.NextState)
	require.NotNil(t, d.NextZoneID)
	assert.Equal(t, "zone-home", *d.NextZoneID)
	assert.Nil(t, d.Alert)
	assert.False(t, d.StateChanged)
}

// Reference walkthrough: UNKNOWN -> IN_SAFE (no alert) -> OUT_SAFE (EXIT) -> IN_SAFE (ENTER).
func TestScenarioHomeRoundTrip(t *testing.T) {
	t.Parallel()

	zones := []datastore.Zone{home}

	d1 := Evaluate(datastore.StateUnknown, nil, "", insideHome, zones)
	require.Equal(t, datastore.StateInSafe, d1.NextState)
	require.Nil(t, d1.Alert)

	d2 := Evaluate(d1.NextState, d1.NextZoneID, "Home", outside, zones)
	require.Equal(t, datastore.StateOutSafe, d2.NextState)
	require.NotNil(t, d2.Alert)
	assert.Equal(t, datastore.AlertExit, d2.Alert.Type)
	assert.Equal(t, "Home", d2.Alert.ZoneName)

	d3 := Evaluate(d2.NextState, d2.NextZoneID, "", insideHome, zones)
	require.Equal(t, datastore.StateInSafe, d3.NextState)
	require.NotNil(t, d3.Alert)
	assert.Equal(t, datastore.AlertEnter, d3.Alert.Type)
	assert.Equal(t, "Home", d3.Alert.ZoneName)
}
