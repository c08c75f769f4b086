// model.go this code defines the data model for the application
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Safety states of a tracked child relative to its safe zones.
const (
	StateUnknown = "UNKNOWN"
	StateInSafe  = "IN_SAFE"
	StateOutSafe = "OUT_SAFE"
)

// Alert kinds for geofence transitions.
const (
	AlertEnter = "ENTER"
	AlertExit  = "EXIT"
)

// Child represents a tracked child owned by a user
type Child struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (c *Child) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Tracker represents a device link authorized to report locations for a child.
// Only the SHA-256 hash of the device token is stored.
type Tracker struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChildID   string    `gorm:"type:varchar(36);index;not null" json:"child_id"`
	TokenHash string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"type:varchar(50);default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Tracker) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Zone represents a caregiver-defined circular safe area for a child
type Zone struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChildID   string    `gorm:"type:varchar(36);index;not null" json:"child_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CenterLat float64   `gorm:"not null" json:"center_lat"`
	CenterLng float64   `gorm:"not null" json:"center_lng"`
	RadiusM   float64   `gorm:"not null" json:"radius_m"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (z *Zone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	return nil
}

// LocationPoint represents a single raw location sample reported by a tracker.
// Points are append-only, never updated or deleted by the application.
type LocationPoint struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChildID   string    `gorm:"type:varchar(36);index:idx_location_points_child_ts;not null" json:"child_id"`
	Ts        time.Time `gorm:"index:idx_location_points_child_ts;not null" json:"ts"`
	Lat       float64   `gorm:"not null" json:"lat"`
	Lng       float64   `gorm:"not null" json:"lng"`
	AccuracyM *float64  `json:"accuracy_m,omitempty"`
	SpeedMps  *float64  `json:"speed_mps,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *LocationPoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// GeofenceState holds the current safety state for a child, one row per child.
// LastZoneID is set only when LastSafeState is IN_SAFE.
type GeofenceState struct {
	ChildID       string    `gorm:"type:varchar(36);primaryKey" json:"child_id"`
	LastSafeState string    `gorm:"type:varchar(50);default:UNKNOWN" json:"last_safe_state"`
	LastZoneID    *string   `gorm:"type:varchar(36)" json:"last_zone_id,omitempty"`
	LastTs        time.Time `json:"last_ts"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Alert represents a durable record of a geofence ENTER/EXIT transition
type Alert struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChildID   string     `gorm:"type:varchar(36);index:idx_alerts_child_ts;not null" json:"child_id"`
	UserID    string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Ts        time.Time  `gorm:"index:idx_alerts_child_ts;not null" json:"ts"`
	Type      string     `gorm:"type:varchar(50);not null" json:"type"`
	ZoneID    *string    `gorm:"type:varchar(36)" json:"zone_id,omitempty"`
	ZoneName  string     `gorm:"-" json:"zone_name,omitempty"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Message   string     `gorm:"type:text" json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
