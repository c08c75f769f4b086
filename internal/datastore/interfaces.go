// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"github.com/safetrack/safetrack-go/internal/conf"
	"github.com/safetrack/safetrack-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Interface abstracts the underlying database implementation and defines the operations the application needs.
type Interface interface {
	Open() error
	Close() error

	// children
	SaveChild(child *Child) error
	GetChild(id string) (Child, error)
	GetChildren(userID string) ([]Child, error)
	DeleteChild(id string) error

	// trackers
	SaveTracker(tracker *Tracker) error
	GetTrackerByTokenHash(tokenHash string) (Tracker, error)

	// zones
	SaveZone(zone *Zone) error
	GetZone(id string) (Zone, error)
	GetActiveZones(childID string) ([]Zone, error)
	GetZones(childID string) ([]Zone, error)
	UpdateZone(id string, fields map[string]any) error
	DeleteZone(id string) error

	// location points
	SaveLocation(point *LocationPoint) error
	LatestLocation(childID string) (LocationPoint, error)
	LocationHistory(childID string, since time.Time, limit int) ([]LocationPoint, error)

	// geofence state
	GetGeofenceState(childID string) (GeofenceState, error)
	UpsertGeofenceState(state *GeofenceState) error

	// alerts
	SaveAlert(alert *Alert) error
	GetAlerts(childID string, limit int) ([]Alert, error)
	GetUnreadAlerts(userID string) ([]Alert, error)
	MarkAlertRead(id string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// Open expects an externally provided database connection. The backend
// stores (SQLiteStore, MySQLStore) override this with their own setup.
func (ds *DataStore) Open() error {
	if ds.DB == nil {
		return errors.Newf("no database connection configured").Category(errors.CategoryDatabase).Component("datastore").Build()
	}
	return nil
}

// Close releases the underlying connection pool if one is open.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

// New creates a new DataStore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// SaveChild stores a child record.
func (ds *DataStore) SaveChild(child *Child) error {
	if err := ds.DB.Create(child).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "save-child").Build()
	}
	return nil
}

// GetChild retrieves a child by its ID.
func (ds *DataStore) GetChild(id string) (Child, error) {
	var child Child
	if err := ds.DB.First(&child, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Child{}, errors.Newf("child %s not found", id).Category(errors.CategoryNotFound).Component("datastore").Build()
		}
		return Child{}, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-child").Build()
	}
	return child, nil
}

// GetChildren retrieves all children owned by a user, oldest first.
func (ds *DataStore) GetChildren(userID string) ([]Child, error) {
	var children []Child
	if err := ds.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&children).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-children").Build()
	}
	return children, nil
}

// DeleteChild removes a child and its dependent rows.
func (ds *DataStore) DeleteChild(id string) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Tracker{}, &Zone{}, &LocationPoint{}, &GeofenceState{}, &Alert{}} {
			if err := tx.Where("child_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("deleting dependent rows: %w", err)
			}
		}
		if err := tx.Delete(&Child{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting child: %w", err)
		}
		return nil
	})
}

// SaveTracker stores a tracker link.
func (ds *DataStore) SaveTracker(tracker *Tracker) error {
	if err := ds.DB.Create(tracker).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "save-tracker").Build()
	}
	return nil
}

// GetTrackerByTokenHash retrieves a tracker by its token hash regardless of
// status, callers decide how to treat disabled trackers.
func (ds *DataStore) GetTrackerByTokenHash(tokenHash string) (Tracker, error) {
	var tracker Tracker
	err := ds.DB.Where("token_hash = ?", tokenHash).First(&tracker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Tracker{}, errors.Newf("tracker not found").Category(errors.CategoryNotFound).Component("datastore").Build()
		}
		return Tracker{}, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-tracker").Build()
	}
	return tracker, nil
}

// SaveZone stores a zone.
func (ds *DataStore) SaveZone(zone *Zone) error {
	if err := ds.DB.Create(zone).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "save-zone").Build()
	}
	return nil
}

// GetZone retrieves a zone by its ID.
func (ds *DataStore) GetZone(id string) (Zone, error) {
	var zone Zone
	if err := ds.DB.First(&zone, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Zone{}, errors.Newf("zone %s not found", id).Category(errors.CategoryNotFound).Component("datastore").Build()
		}
		return Zone{}, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-zone").Build()
	}
	return zone, nil
}

// GetActiveZones retrieves the active zones for a child in creation order.
// The order is significant, zone containment uses a first-match policy.
func (ds *DataStore) GetActiveZones(childID string) ([]Zone, error) {
	var zones []Zone
	err := ds.DB.Where("child_id = ? AND active = ?", childID, true).
		Order("created_at ASC").
		Find(&zones).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-active-zones").Build()
	}
	return zones, nil
}

// GetZones retrieves all zones for a child in creation order.
func (ds *DataStore) GetZones(childID string) ([]Zone, error) {
	var zones []Zone
	if err := ds.DB.Where("child_id = ?", childID).Order("created_at ASC").Find(&zones).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-zones").Build()
	}
	return zones, nil
}

// UpdateZone updates specific fields of a zone.
func (ds *DataStore) UpdateZone(id string, fields map[string]any) error {
	if err := ds.DB.Model(&Zone{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "update-zone").Build()
	}
	return nil
}

// DeleteZone removes a zone.
func (ds *DataStore) DeleteZone(id string) error {
	if err := ds.DB.Delete(&Zone{}, "id = ?", id).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "delete-zone").Build()
	}
	return nil
}

// SaveLocation appends a raw location point.
func (ds *DataStore) SaveLocation(point *LocationPoint) error {
	if err := ds.DB.Create(point).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "save-location").Build()
	}
	return nil
}

// LatestLocation retrieves the most recent location point for a child by sample timestamp.
func (ds *DataStore) LatestLocation(childID string) (LocationPoint, error) {
	var point LocationPoint
	err := ds.DB.Where("child_id = ?", childID).Order("ts DESC").First(&point).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LocationPoint{}, errors.Newf("no locations for child %s", childID).Category(errors.CategoryNotFound).Component("datastore").Build()
		}
		return LocationPoint{}, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "latest-location").Build()
	}
	return point, nil
}

// LocationHistory retrieves location points for a child since the given time, newest first.
func (ds *DataStore) LocationHistory(childID string, since time.Time, limit int) ([]LocationPoint, error) {
	var points []LocationPoint
	query := ds.DB.Where("child_id = ?", childID)
	if !since.IsZero() {
		query = query.Where("ts >= ?", since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("ts DESC").Find(&points).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "location-history").Build()
	}
	return points, nil
}

// GetGeofenceState retrieves the current geofence state for a child.
// A child without a state row is reported as UNKNOWN, not as an error.
func (ds *DataStore) GetGeofenceState(childID string) (GeofenceState, error) {
	var state GeofenceState
	err := ds.DB.First(&state, "child_id = ?", childID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GeofenceState{ChildID: childID, LastSafeState: StateUnknown}, nil
		}
		return GeofenceState{}, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-geofence-state").Build()
	}
	return state, nil
}

// UpsertGeofenceState writes the geofence state for a child, inserting or
// updating the single row keyed by child ID.
func (ds *DataStore) UpsertGeofenceState(state *GeofenceState) error {
	state.UpdatedAt = time.Now()
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "child_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_safe_state", "last_zone_id", "last_ts", "updated_at"}),
	}).Create(state).Error
	if err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "upsert-geofence-state").Build()
	}
	return nil
}

// SaveAlert stores an alert record.
func (ds *DataStore) SaveAlert(alert *Alert) error {
	if err := ds.DB.Create(alert).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "save-alert").Build()
	}
	return nil
}

// GetAlerts retrieves the most recent alerts for a child.
func (ds *DataStore) GetAlerts(childID string, limit int) ([]Alert, error) {
	var alerts []Alert
	query := ds.DB.Where("child_id = ?", childID).Order("ts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-alerts").Build()
	}
	return alerts, nil
}

// GetUnreadAlerts retrieves all unread alerts for a user, newest first.
func (ds *DataStore) GetUnreadAlerts(userID string) ([]Alert, error) {
	var alerts []Alert
	err := ds.DB.Where("user_id = ? AND read_at IS NULL", userID).Order("ts DESC").Find(&alerts).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "get-unread-alerts").Build()
	}
	return alerts, nil
}

// MarkAlertRead marks an alert as read.
func (ds *DataStore) MarkAlertRead(id string) error {
	now := time.Now()
	result := ds.DB.Model(&Alert{}).Where("id = ? AND read_at IS NULL", id).Update("read_at", &now)
	if result.Error != nil {
		return errors.New(result.Error).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "mark-alert-read").Build()
	}
	if result.RowsAffected == 0 {
		// Marking an already-read alert stays a no-op, only a missing row
		// is an error.
		var count int64
		if err := ds.DB.Model(&Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return errors.New(err).Category(errors.CategoryDatabase).Component("datastore").Context("operation", "mark-alert-read").Build()
		}
		if count == 0 {
			return errors.Newf("alert %s not found", id).Category(errors.CategoryNotFound).Component("datastore").Build()
		}
	}
	return nil
}
