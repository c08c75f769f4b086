// internal/api/tracker.go
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
	"github.com/safetrack/safetrack-go/internal/ingest"
)

// initTrackerRoutes registers the device-facing ingestion endpoint.
func (c *Controller) initTrackerRoutes() {
	c.Group.POST("/tracker/ping", c.TrackerPing)
}

// TrackerPing ingests one location sample from a tracker device. The device
// authenticates with its raw token as a Bearer credential, only the SHA-256
// hash is ever stored or compared.
func (c *Controller) TrackerPing(ctx echo.Context) error {
	token, ok := bearerToken(ctx)
	if !ok {
		return c.HandleError(ctx, nil, "Missing or malformed Authorization header", http.StatusUnauthorized)
	}

	tracker, err := c.lookupTracker(token)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, "Unknown tracker token", http.StatusUnauthorized)
		}
		return c.HandleError(ctx, err, "Failed to authenticate tracker", http.StatusInternalServerError)
	}
	if tracker.Status != "active" {
		return c.HandleError(ctx, nil, "Tracker is disabled", http.StatusForbidden)
	}

	var sample ingest.Sample
	if err := ctx.Bind(&sample); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	outcome, err := c.Pipeline.ProcessSample(ctx.Request().Context(), tracker.ChildID, sample)
	if err != nil {
		switch {
		case errors.IsValidation(err):
			return c.HandleError(ctx, err, "Invalid location sample", http.StatusBadRequest)
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Failed to process location sample", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, outcome)
}

// lookupTracker resolves a raw device token to its tracker record, memoizing
// positive lookups so the hot path skips the database.
func (c *Controller) lookupTracker(token string) (datastore.Tracker, error) {
	tokenHash := hashToken(token)

	if cached, found := c.tokenCache.Get(tokenHash); found {
		if tracker, ok := cached.(datastore.Tracker); ok {
			return tracker, nil
		}
	}

	tracker, err := c.DS.GetTrackerByTokenHash(tokenHash)
	if err != nil {
		return datastore.Tracker{}, err
	}

	// Only active trackers are memoized, so disabling one takes effect on
	// the next ping rather than after the cache TTL.
	if tracker.Status == "active" {
		c.tokenCache.SetDefault(tokenHash, tracker)
	} else {
		c.tokenCache.Delete(tokenHash)
	}
	return tracker, nil
}

// hashToken returns the hex SHA-256 digest of a raw device token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func bearerToken(ctx echo.Context) (string, bool) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
