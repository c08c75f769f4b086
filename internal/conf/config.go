// config.go: This file contains the configuration for the SafeTrack application. It defines the settings struct and functions to load and access the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
	MaxSize int    // maximum log file size in megabytes before rotation
	MaxAge  int    // maximum number of days to retain old log files
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string    // name of this node, can be used to identify the source of events
	Log  LogConfig // main application log settings
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Enabled bool      // true to enable the web server
	Port    string    // port for the web server
	Debug   bool      // true to enable debug logging for the web server
	Log     LogConfig // web server log settings
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite backend
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to enable the MySQL backend
	Username string // MySQL username
	Password string // MySQL password
	Host     string // MySQL host
	Port     string // MySQL port
	Database string // MySQL database name
}

// OutputSettings contains settings for the datastore backends.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite database settings
	MySQL  MySQLSettings  // MySQL database settings
}

// EventBusSettings contains settings for the asynchronous event bus.
type EventBusSettings struct {
	BufferSize int // event channel buffer size
	Workers    int // number of worker goroutines
}

// SSESettings contains settings for the realtime SSE broker.
type SSESettings struct {
	ClientBuffer      int // per-client frame buffer size
	SendTimeoutMs     int // milliseconds to wait on a blocked client before eviction
	HeartbeatInterval int // seconds between heartbeat frames
}

// TrackingSettings contains settings for location ingestion and geofencing.
type TrackingSettings struct {
	MaxAccuracy   float64          // maximum accepted GPS accuracy in meters, samples above are recorded but not evaluated
	TokenCacheTTL int              // tracker token cache TTL in seconds
	EventBus      EventBusSettings // event bus settings
	SSE           SSESettings      // SSE broker settings
}

// NotificationSettings contains settings for external alert push.
type NotificationSettings struct {
	Enabled bool     // true to push geofence alerts to external services
	Urls    []string // shoutrrr service URLs
}

// Settings contains all application settings
type Settings struct {
	Debug bool // true to enable debug mode

	Main         MainSettings
	WebServer    WebServerSettings
	Output       OutputSettings
	Tracking     TrackingSettings
	Notification NotificationSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("safetrack")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file, defaults are enough to run
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// ValidateSettings checks that the loaded settings form a runnable configuration.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one datastore backend can be enabled at a time")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no datastore backend enabled")
	}
	if settings.Tracking.MaxAccuracy <= 0 {
		return fmt.Errorf("tracking.maxaccuracy must be positive, got %f", settings.Tracking.MaxAccuracy)
	}
	if settings.Tracking.EventBus.Workers < 1 {
		return fmt.Errorf("tracking.eventbus.workers must be at least 1")
	}
	return nil
}

// GetSettings returns the current settings instance, loading it on first use.
func GetSettings() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				// Leave instance nil, callers handle missing settings
				fmt.Fprintf(os.Stderr, "error loading settings: %v\n", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting is a shorthand for GetSettings.
func Setting() *Settings {
	return GetSettings()
}

// SaveSettings writes the current settings back to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	settingsCopy := *settingsInstance
	settingsMutex.RUnlock()

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		paths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error finding config path: %w", err)
		}
		configPath = filepath.Join(paths[0], "safetrack.yaml")
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	return nil
}

// SaveYAMLConfig overwrites the YAML configuration file with new settings.
// The write goes through a temporary file so a crash never leaves a
// half-written config behind.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Atomic on most filesystems
	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the default config file paths for the current OS.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "safetrack"))
	}
	paths = append(paths, ".")

	if len(paths) == 0 {
		return nil, fmt.Errorf("no config paths available")
	}
	return paths, nil
}

// GetBasePath expands a relative directory against the current working
// directory and ensures it exists.
func GetBasePath(path string) string {
	basePath := viper.GetString("output.sqlite.basepath")
	if basePath == "" {
		basePath = "."
	}
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(basePath, path)
	} else if path == "" {
		path = basePath
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating directory %s: %v\n", path, err)
	}
	return path
}
