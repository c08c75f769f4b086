package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "safetrack.db"
	s.Tracking.MaxAccuracy = 50
	s.Tracking.EventBus.Workers = 4
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSettings(validSettings()))

	noBackend := validSettings()
	noBackend.Output.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(noBackend))

	bothBackends := validSettings()
	bothBackends.Output.MySQL.Enabled = true
	assert.Error(t, ValidateSettings(bothBackends))

	badAccuracy := validSettings()
	badAccuracy.Tracking.MaxAccuracy = 0
	assert.Error(t, ValidateSettings(badAccuracy))

	noWorkers := validSettings()
	noWorkers.Tracking.EventBus.Workers = 0
	assert.Error(t, ValidateSettings(noWorkers))
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	settings := validSettings()
	settings.WebServer.Port = "8080"
	settings.Notification.Urls = []string{"logger://"}

	configPath := filepath.Join(t.TempDir(), "safetrack.yaml")
	require.NoError(t, SaveYAMLConfig(configPath, settings))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "8080", loaded.WebServer.Port)
	assert.InDelta(t, 50, loaded.Tracking.MaxAccuracy, 1e-9)
	assert.Equal(t, []string{"logger://"}, loaded.Notification.Urls)
}
