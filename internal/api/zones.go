// internal/api/zones.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
)

// initZoneRoutes registers safe zone management endpoints
func (c *Controller) initZoneRoutes() {
	c.Group.GET("/children/:id/zones", c.GetZones)
	c.Group.POST("/children/:id/zones", c.CreateZone)
	c.Group.PATCH("/zones/:id", c.UpdateZone)
	c.Group.DELETE("/zones/:id", c.DeleteZone)
}

// ZoneRequest is the request body for creating or updating a zone. Pointer
// fields on update distinguish "not provided" from a zero value.
type ZoneRequest struct {
	Name      *string  `json:"name"`
	CenterLat *float64 `json:"center_lat"`
	CenterLng *float64 `json:"center_lng"`
	RadiusM   *float64 `json:"radius_m"`
	Active    *bool    `json:"active"`
}

func validateZoneGeometry(lat, lng, radius float64) string {
	switch {
	case lat < -90 || lat > 90:
		return "center_lat must be between -90 and 90"
	case lng < -180 || lng > 180:
		return "center_lng must be between -180 and 180"
	case radius <= 0:
		return "radius_m must be positive"
	}
	return ""
}

// GetZones lists all zones of a child, active and inactive.
func (c *Controller) GetZones(ctx echo.Context) error {
	childID := ctx.Param("id")
	zones, err := c.DS.GetZones(childID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list zones", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, zones)
}

// CreateZone defines a new circular safe zone for a child.
func (c *Controller) CreateZone(ctx echo.Context) error {
	childID := ctx.Param("id")
	if _, err := c.DS.GetChild(childID); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get child", http.StatusInternalServerError)
	}

	var req ZoneRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return c.HandleError(ctx, nil, "Zone name is required", http.StatusBadRequest)
	}
	if req.CenterLat == nil || req.CenterLng == nil || req.RadiusM == nil {
		return c.HandleError(ctx, nil, "center_lat, center_lng and radius_m are required", http.StatusBadRequest)
	}
	if msg := validateZoneGeometry(*req.CenterLat, *req.CenterLng, *req.RadiusM); msg != "" {
		return c.HandleError(ctx, nil, msg, http.StatusBadRequest)
	}

	// New zones default to active unless explicitly disabled.
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	zone := &datastore.Zone{
		ChildID:   childID,
		Name:      *req.Name,
		CenterLat: *req.CenterLat,
		CenterLng: *req.CenterLng,
		RadiusM:   *req.RadiusM,
		Active:    active,
	}
	if err := c.DS.SaveZone(zone); err != nil {
		return c.HandleError(ctx, err, "Failed to create zone", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, zone)
}

// UpdateZone modifies zone fields, including activation state.
func (c *Controller) UpdateZone(ctx echo.Context) error {
	id := ctx.Param("id")
	zone, err := c.DS.GetZone(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Zone not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get zone", http.StatusInternalServerError)
	}

	var req ZoneRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	fields := map[string]any{}
	lat, lng, radius := zone.CenterLat, zone.CenterLng, zone.RadiusM
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return c.HandleError(ctx, nil, "Zone name must not be empty", http.StatusBadRequest)
		}
		fields["name"] = *req.Name
	}
	if req.CenterLat != nil {
		lat = *req.CenterLat
		fields["center_lat"] = lat
	}
	if req.CenterLng != nil {
		lng = *req.CenterLng
		fields["center_lng"] = lng
	}
	if req.RadiusM != nil {
		radius = *req.RadiusM
		fields["radius_m"] = radius
	}
	if msg := validateZoneGeometry(lat, lng, radius); msg != "" {
		return c.HandleError(ctx, nil, msg, http.StatusBadRequest)
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if len(fields) == 0 {
		return c.HandleError(ctx, nil, "No zone fields to update", http.StatusBadRequest)
	}

	if err := c.DS.UpdateZone(id, fields); err != nil {
		return c.HandleError(ctx, err, "Failed to update zone", http.StatusInternalServerError)
	}

	updated, err := c.DS.GetZone(id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to reload zone", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, updated)
}

// DeleteZone removes a zone. Past alerts referencing it keep their zone id
// and fall back to a generic message when the name can no longer be resolved.
func (c *Controller) DeleteZone(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := c.DS.GetZone(id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Zone not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get zone", http.StatusInternalServerError)
	}

	if err := c.DS.DeleteZone(id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete zone", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}
