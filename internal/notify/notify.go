// Package notify pushes geofence alerts to external services (email, telegram,
// ntfy and friends) through shoutrrr. It consumes alert_created events from
// the event bus, delivery failures are logged and never affect ingestion.
package notify

import (
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"log/slog"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/safetrack/safetrack-go/internal/datastore"
	"github.com/safetrack/safetrack-go/internal/errors"
	"github.com/safetrack/safetrack-go/internal/events"
	"github.com/safetrack/safetrack-go/internal/logging"
)

// DefaultTimeout bounds a single push attempt.
const DefaultTimeout = 10 * time.Second

// Notifier sends alert messages via a shoutrrr service router.
// Creates a single sender for multiple URLs.
type Notifier struct {
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier creates a notifier for the given shoutrrr service URLs.
func NewNotifier(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Category(errors.CategoryConfiguration).
			Component("notify").
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("notify").
			Build()
	}
	sender.Timeout = DefaultTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Notifier{
		urls:    slices.Clone(urls),
		sender:  sender,
		timeout: DefaultTimeout,
		logger:  logging.ForService("notify"),
	}, nil
}

// Send pushes one message with a title to all configured services.
func (n *Notifier) Send(title, message string) error {
	params := stypes.Params{}
	params.SetTitle(title)

	errs := n.sender.Send(message, &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Category(errors.CategoryNotification).
				Component("notify").
				Build()
		}
	}
	return nil
}

// --- events.EventConsumer ---

// Name identifies the notifier on the event bus.
func (n *Notifier) Name() string {
	return "alert-notifier"
}

// ProcessEvent pushes alert_created events, all other event types are ignored.
func (n *Notifier) ProcessEvent(event events.TrackEvent) error {
	if event.GetType() != events.TypeAlertCreated {
		return nil
	}

	alert, ok := event.GetData().(*datastore.Alert)
	if !ok {
		return nil
	}

	title := alertTitle(alert)
	if err := n.Send(title, alert.Message); err != nil {
		if n.logger != nil {
			n.logger.Error("failed to push alert notification",
				"child_id", alert.ChildID,
				"type", alert.Type,
				"error", err,
			)
		}
		return err
	}
	return nil
}

// ProcessBatch pushes a batch of events one by one.
func (n *Notifier) ProcessBatch(batch []events.TrackEvent) error {
	for _, event := range batch {
		if err := n.ProcessEvent(event); err != nil {
			return err
		}
	}
	return nil
}

// SupportsBatching returns false.
func (n *Notifier) SupportsBatching() bool {
	return false
}

func alertTitle(alert *datastore.Alert) string {
	switch alert.Type {
	case datastore.AlertExit:
		return "Safe zone exit"
	case datastore.AlertEnter:
		return "Safe zone entry"
	default:
		return fmt.Sprintf("Geofence alert (%s)", alert.Type)
	}
}
