// internal/api/children.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
)

// initChildrenRoutes registers child management endpoints
func (c *Controller) initChildrenRoutes() {
	c.Group.GET("/children", c.GetChildren)
	c.Group.POST("/children", c.CreateChild)
	c.Group.GET("/children/:id", c.GetChild)
	c.Group.DELETE("/children/:id", c.DeleteChild)
	c.Group.POST("/children/:id/tracker", c.CreateTracker)
}

// CreateChildRequest is the request body for creating a child.
type CreateChildRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// GetChildren lists children, optionally filtered by owner.
func (c *Controller) GetChildren(ctx echo.Context) error {
	userID := ctx.QueryParam("user_id")
	children, err := c.DS.GetChildren(userID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list children", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, children)
}

// GetChild returns one child with its latest known location and state.
func (c *Controller) GetChild(ctx echo.Context) error {
	id := ctx.Param("id")
	child, err := c.DS.GetChild(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get child", http.StatusInternalServerError)
	}

	response := map[string]any{"child": child}

	if state, err := c.DS.GetGeofenceState(id); err == nil {
		response["state"] = state
	}
	if latest, err := c.DS.LatestLocation(id); err == nil {
		response["latest_location"] = latest
	}

	return ctx.JSON(http.StatusOK, response)
}

// CreateChild registers a new tracked child.
func (c *Controller) CreateChild(ctx echo.Context) error {
	var req CreateChildRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.HandleError(ctx, nil, "Child name is required", http.StatusBadRequest)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return c.HandleError(ctx, nil, "Owner user_id is required", http.StatusBadRequest)
	}

	child := &datastore.Child{
		UserID: req.UserID,
		Name:   req.Name,
	}
	if err := c.DS.SaveChild(child); err != nil {
		return c.HandleError(ctx, err, "Failed to create child", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, child)
}

// DeleteChild removes a child and its derived records.
func (c *Controller) DeleteChild(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := c.DS.GetChild(id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get child", http.StatusInternalServerError)
	}

	if err := c.DS.DeleteChild(id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete child", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CreateTrackerRequest is the request body for linking a tracker device.
// The raw token is provided once at registration and never returned again.
type CreateTrackerRequest struct {
	Token string `json:"token"`
}

// CreateTracker links a tracker device token to a child.
func (c *Controller) CreateTracker(ctx echo.Context) error {
	childID := ctx.Param("id")
	if _, err := c.DS.GetChild(childID); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get child", http.StatusInternalServerError)
	}

	var req CreateTrackerRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if len(req.Token) < 16 {
		return c.HandleError(ctx, nil, "Tracker token must be at least 16 characters", http.StatusBadRequest)
	}

	tracker := &datastore.Tracker{
		ChildID:   childID,
		TokenHash: hashToken(req.Token),
		Status:    "active",
	}
	if err := c.DS.SaveTracker(tracker); err != nil {
		return c.HandleError(ctx, err, "Failed to create tracker", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, tracker)
}
