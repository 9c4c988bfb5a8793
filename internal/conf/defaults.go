// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "HealthDesk")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/healthdesk.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size", 100)
	viper.SetDefault("logging.file_output.max_age", 30)
	viper.SetDefault("logging.file_output.max_rotated_files", 10)

	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.bodylimit", "1M")
	viper.SetDefault("webserver.allowedorigins", []string{"*"})

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlite.path", "health.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "healthdesk")
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)

	viper.SetDefault("toast.defaultttl", 3000*time.Millisecond)
	viper.SetDefault("toast.surfacecapacity", 50)
	viper.SetDefault("toast.streambuffer", 32)
	viper.SetDefault("toast.heartbeat", 30*time.Second)
	viper.SetDefault("toast.maxstreamduration", 30*time.Minute)
	viper.SetDefault("toast.ratelimit.requests", 10)
	viper.SetDefault("toast.ratelimit.burst", 15)
	viper.SetDefault("toast.ratelimit.window", time.Minute)

	viper.SetDefault("security.requireauth", false)
	viper.SetDefault("security.tokenttl", 24*time.Hour)

	viper.SetDefault("reminder.enabled", false)
	viper.SetDefault("reminder.schedule", "0 8 * * *")
	viper.SetDefault("reminder.timezone", "")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "healthdesk")
	viper.SetDefault("mqtt.clientid", "healthdesk")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("push.enabled", false)
	viper.SetDefault("push.urls", []string{})
	viper.SetDefault("push.ratelimit", 1.0)
	viper.SetDefault("push.burst", 5)
	viper.SetDefault("push.workers", 4)
	viper.SetDefault("push.timeout", 10*time.Second)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}
