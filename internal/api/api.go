// internal/api/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/safetrack/safetrack-go/internal/conf"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/safetrack/safetrack-go/internal/ingest"
	"github.com/safetrack/safetrack-go/internal/logging"
	"github.com/safetrack/safetrack-go/internal/observability"
	"github.com/safetrack/safetrack-go/internal/realtime"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Pipeline *ingest.Pipeline
	Broker   *realtime.Broker

	apiLogger  *slog.Logger
	tokenCache *cache.Cache // memoizes tracker token hash -> tracker
	metrics    *observability.Metrics
	startTime  time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics attaches the shared metrics instance and exposes /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	pipeline *ingest.Pipeline, broker *realtime.Broker, opts ...Option) (*Controller, error) {

	if ds == nil {
		return nil, fmt.Errorf("datastore is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("ingest pipeline is required")
	}
	if broker == nil {
		return nil, fmt.Errorf("realtime broker is required")
	}

	tokenTTL := 5 * time.Minute
	if settings != nil && settings.Tracking.TokenCacheTTL > 0 {
		tokenTTL = time.Duration(settings.Tracking.TokenCacheTTL) * time.Second
	}

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		Pipeline:   pipeline,
		Broker:     broker,
		apiLogger:  logging.ForService("api"),
		tokenCache: cache.New(tokenTTL, 2*tokenTTL),
		startTime:  time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	c.initRoutes()

	if c.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initTrackerRoutes()
	c.initChildrenRoutes()
	c.initZoneRoutes()
	c.initLocationRoutes()
	c.initAlertRoutes()
	c.initStreamRoutes()
}

// LoggingMiddleware logs API requests through the structured api logger.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()
			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"ip", ctx.RealIP(),
				"latency_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
				c.apiLogger.Error("API request failed", attrs...)
			} else if res.Status >= http.StatusBadRequest {
				c.apiLogger.Warn("API request error", attrs...)
			} else {
				c.apiLogger.Debug("API request", attrs...)
			}
			return err
		}
	}
}

// HealthCheck reports service and database status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).String(),
	}

	dbStatus := "connected"
	if _, err := c.DS.GetChildren(""); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	if bus := events.GetEventBus(); bus != nil {
		stats := bus.GetStats()
		response["event_bus"] = map[string]any{
			"events_received":  stats.EventsReceived,
			"events_processed": stats.EventsProcessed,
			"events_dropped":   stats.EventsDropped,
		}
	}

	response["sse_clients"] = c.Broker.TotalClients()

	return ctx.JSON(http.StatusOK, response)
}

// ErrorResponse is the JSON body returned for failed API requests.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking using
// cryptographic randomness.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Shutdown performs cleanup of resources owned by the API controller.
func (c *Controller) Shutdown() {
	if c.tokenCache != nil {
		c.tokenCache.Flush()
	}
}
