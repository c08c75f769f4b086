package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/safetrack/safetrack-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is considered slow.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance that
// forwards slow query and error output through slog.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		&slogWriter{logger: logging.ForService("datastore")},
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogWriter adapts slog to gorm's logger.Writer interface.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Printf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(fmt.Sprintf(format, args...))
	}
}

// performAutoMigration runs gorm AutoMigrate for all application models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Child{},
		&Tracker{},
		&Zone{},
		&LocationPoint{},
		&GeofenceState{},
		&Alert{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logging.Debug("database connection established",
			"type", dbType,
			"connection", connectionInfo,
		)
	}

	return nil
}
