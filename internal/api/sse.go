// internal/api/sse.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// initStreamRoutes registers SSE-related API endpoints
func (c *Controller) initStreamRoutes() {
	// Rate limit SSE connection attempts (10 per minute per IP)
	rateLimiterConfig := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      10,
				ExpiresIn: 1 * time.Minute,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded for SSE connections",
			})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many SSE connection attempts, please wait before trying again",
			})
		},
	}

	c.Group.GET("/children/:id/stream", c.StreamChildEvents, middleware.RateLimiterWithConfig(rateLimiterConfig))
	c.Group.GET("/sse/status", c.GetSSEStatus)
}

// StreamChildEvents handles the SSE connection for one child's live event
// stream. The first frame is always `connected`, subsequent frames carry
// location updates, alerts and state changes for this child only.
func (c *Controller) StreamChildEvents(ctx echo.Context) error {
	childID := ctx.Param("id")
	if _, err := c.DS.GetChild(childID); err != nil {
		return c.HandleError(ctx, err, "Child not found", http.StatusNotFound)
	}

	// Set SSE headers
	ctx.Response().Header().Set("Content-Type", "text/event-stream")
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	ctx.Response().Header().Set("Connection", "keep-alive")
	ctx.Response().Header().Set("Access-Control-Allow-Origin", "*")
	ctx.Response().Header().Set("Access-Control-Allow-Headers", "Cache-Control")
	ctx.Response().WriteHeader(http.StatusOK)

	client := c.Broker.Subscribe(childID)
	defer c.Broker.Unsubscribe(childID, client.ID)

	if c.apiLogger != nil {
		c.apiLogger.Info("SSE client connected",
			"client_id", client.ID,
			"child_id", childID,
			"ip", ctx.RealIP(),
			"user_agent", ctx.Request().UserAgent(),
		)
		defer c.apiLogger.Info("SSE client disconnected",
			"client_id", client.ID,
			"child_id", childID,
			"ip", ctx.RealIP(),
		)
	}

	heartbeat := 30 * time.Second
	if c.Settings != nil && c.Settings.Tracking.SSE.HeartbeatInterval > 0 {
		heartbeat = time.Duration(c.Settings.Tracking.SSE.HeartbeatInterval) * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Frames:
			if !ok {
				// Evicted by the broker
				return nil
			}
			if err := c.sendSSEMessage(ctx, frame.Type, frame.Data); err != nil {
				if c.apiLogger != nil {
					c.apiLogger.Error("Failed to send SSE frame",
						"client_id", client.ID,
						"child_id", childID,
						"error", err.Error(),
					)
				}
				return nil
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]any{
				"timestamp": time.Now().Unix(),
				"clients":   c.Broker.ClientCount(childID),
			}); err != nil {
				if c.apiLogger != nil {
					c.apiLogger.Debug("SSE heartbeat failed, client likely disconnected",
						"client_id", client.ID,
						"error", err.Error(),
					)
				}
				return nil
			}

		case <-ctx.Request().Context().Done():
			// Client disconnected
			return nil

		case <-client.Done:
			// Client marked for removal
			return nil
		}
	}
}

// sendSSEMessage sends a Server-Sent Event message
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, string(jsonData))

	// Set write deadline to prevent hanging on slow/disconnected clients
	if conn, ok := ctx.Response().Writer.(interface{ SetWriteDeadline(time.Time) error }); ok {
		deadline := time.Now().Add(10 * time.Second)
		if err := conn.SetWriteDeadline(deadline); err != nil {
			if c.apiLogger != nil {
				c.apiLogger.Debug("Failed to set write deadline for SSE message", "error", err.Error())
			}
		}
	}

	if _, err := ctx.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}

	if flusher, ok := ctx.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// GetSSEStatus returns information about SSE connections
func (c *Controller) GetSSEStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"connected_clients": c.Broker.TotalClients(),
		"status":            "active",
	})
}
