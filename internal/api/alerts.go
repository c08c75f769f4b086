// internal/api/alerts.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/safetrack/safetrack-go/internal/errors"
)

// defaultAlertLimit caps how many alerts a listing returns by default.
const defaultAlertLimit = 100

// initAlertRoutes registers alert query endpoints
func (c *Controller) initAlertRoutes() {
	c.Group.GET("/children/:id/alerts", c.GetAlerts)
	c.Group.GET("/alerts/unread", c.GetUnreadAlerts)
	c.Group.POST("/alerts/:id/read", c.MarkAlertRead)
}

// GetAlerts lists a child's alerts, newest first.
func (c *Controller) GetAlerts(ctx echo.Context) error {
	childID := ctx.Param("id")

	limit := defaultAlertLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.HandleError(ctx, err, "Invalid limit parameter, expected positive integer", http.StatusBadRequest)
		}
		if parsed < limit {
			limit = parsed
		}
	}

	alerts, err := c.DS.GetAlerts(childID, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alerts)
}

// GetUnreadAlerts lists unread alerts across all of an owner's children.
func (c *Controller) GetUnreadAlerts(ctx echo.Context) error {
	userID := ctx.QueryParam("user_id")
	if userID == "" {
		return c.HandleError(ctx, nil, "user_id query parameter is required", http.StatusBadRequest)
	}

	alerts, err := c.DS.GetUnreadAlerts(userID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list unread alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alerts)
}

// MarkAlertRead marks one alert as read.
func (c *Controller) MarkAlertRead(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.DS.MarkAlertRead(id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Alert not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to mark alert read", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
