// internal/api/locations.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrack/safetrack-go/internal/errors"
)

// defaultHistoryLimit caps how many points a history query returns when the
// caller does not specify a limit.
const defaultHistoryLimit = 500

// initLocationRoutes registers location query endpoints
func (c *Controller) initLocationRoutes() {
	c.Group.GET("/children/:id/location", c.GetLatestLocation)
	c.Group.GET("/children/:id/locations", c.GetLocationHistory)
}

// GetLatestLocation returns the most recent location point of a child.
func (c *Controller) GetLatestLocation(ctx echo.Context) error {
	childID := ctx.Param("id")
	point, err := c.DS.LatestLocation(childID)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "No location recorded for child", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get latest location", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, point)
}

// GetLocationHistory returns recent location points of a child, newest first.
// Query params: since (RFC3339, default 24h ago), limit (default 500).
func (c *Controller) GetLocationHistory(ctx echo.Context) error {
	childID := ctx.Param("id")

	since := time.Now().Add(-24 * time.Hour)
	if raw := ctx.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid since parameter, expected RFC3339 timestamp", http.StatusBadRequest)
		}
		since = parsed
	}

	limit := defaultHistoryLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.HandleError(ctx, err, "Invalid limit parameter, expected positive integer", http.StatusBadRequest)
		}
		if parsed < limit {
			limit = parsed
		}
	}

	points, err := c.DS.LocationHistory(childID, since, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get location history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, points)
}
