package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/ingest"
)

const testToken = "a-sufficiently-long-device-token"

func pingBody(lat, lng float64, ts time.Time) string {
	return fmt.Sprintf(`{"lat":%f,"lng":%f,"ts":%q}`, lat, lng, ts.Format(time.RFC3339))
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestTrackerPingRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), authHeader("no-such-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrackerPingDisabledTracker(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	tracker := env.seedTracker(t, child.ID, testToken)

	require.NoError(t, env.ds.DB.Model(&datastore.Tracker{}).
		Where("id = ?", tracker.ID).Update("status", "disabled").Error)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), authHeader(testToken))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTrackerPingAcceptsSample(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	env.seedTracker(t, child.ID, testToken)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), authHeader(testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome ingest.Outcome
	decodeBody(t, rec, &outcome)
	assert.Equal(t, ingest.StatusOK, outcome.Status)

	point, err := env.ds.LatestLocation(child.ID)
	require.NoError(t, err)
	assert.InDelta(t, 21.0285, point.Lat, 1e-9)

	state, err := env.ds.GetGeofenceState(child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateOutSafe, state.LastSafeState)
}

func TestTrackerPingIgnoresLowAccuracy(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	env.seedTracker(t, child.ID, testToken)

	body := fmt.Sprintf(`{"lat":21.0285,"lng":105.8542,"ts":%q,"accuracy_m":120}`,
		time.Now().Format(time.RFC3339))
	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping", body, authHeader(testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome ingest.Outcome
	decodeBody(t, rec, &outcome)
	assert.Equal(t, ingest.StatusIgnored, outcome.Status)
	assert.Equal(t, ingest.ReasonAccuracyTooLow, outcome.Reason)

	// The raw point is still recorded, state stays untouched.
	_, err := env.ds.LatestLocation(child.ID)
	require.NoError(t, err)
	state, err := env.ds.GetGeofenceState(child.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.StateUnknown, state.LastSafeState)
}

func TestTrackerPingValidation(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	env.seedTracker(t, child.ID, testToken)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		`{"lng":105.8542}`, authHeader(testToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackerPingDisabledTrackerNotCached(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	tracker := env.seedTracker(t, child.ID, testToken)

	require.NoError(t, env.ds.DB.Model(&datastore.Tracker{}).
		Where("id = ?", tracker.ID).Update("status", "disabled").Error)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), authHeader(testToken))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The disabled lookup must not be memoized, so re-enabling takes
	// effect on the very next ping.
	require.NoError(t, env.ds.DB.Model(&datastore.Tracker{}).
		Where("id = ?", tracker.ID).Update("status", "active").Error)

	rec = env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now().Add(time.Second)), authHeader(testToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrackerPingMemoizesLookup(t *testing.T) {
	env := newTestEnv(t)
	child := env.seedChild(t)
	env.seedTracker(t, child.ID, testToken)

	rec := env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now()), authHeader(testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second ping resolves the tracker from the cache even if the row is gone.
	require.NoError(t, env.ds.DB.Delete(&datastore.Tracker{}, "child_id = ?", child.ID).Error)
	rec = env.request(t, http.MethodPost, "/api/v1/tracker/ping",
		pingBody(21.0285, 105.8542, time.Now().Add(time.Second)), authHeader(testToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}
