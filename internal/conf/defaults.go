// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SafeTrack")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "safetrack.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxage", 30)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.maxsize", 100)
	viper.SetDefault("webserver.log.maxage", 30)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "safetrack.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "safetrack")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "safetrack")

	viper.SetDefault("tracking.maxaccuracy", 50.0)
	viper.SetDefault("tracking.tokencachettl", 300)
	viper.SetDefault("tracking.eventbus.buffersize", 1000)
	viper.SetDefault("tracking.eventbus.workers", 4)
	viper.SetDefault("tracking.sse.clientbuffer", 100)
	viper.SetDefault("tracking.sse.sendtimeoutms", 3000)
	viper.SetDefault("tracking.sse.heartbeatinterval", 30)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
}
