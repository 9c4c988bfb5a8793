// Package conf loads and validates the HealthDesk configuration.
package conf

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds instance-wide identity settings
type MainSettings struct {
	Name string // shown in health output and push titles
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Host           string   // listen address, empty for all interfaces
	Port           string   // listen port
	Debug          bool     // verbose request logging
	BodyLimit      string   // echo body limit, e.g. "1M"
	AllowedOrigins []string // CORS origins, "*" allows all
}

// SQLiteSettings configures the sqlite backend
type SQLiteSettings struct {
	Path string // database file
}

// MySQLSettings configures the mysql backend
type MySQLSettings struct {
	Host         string
	Port         string
	Username     string
	Password     string // may reference ${ENV} variables
	PasswordFile string // mounted secret, wins over Password
	Database     string
}

// DatabaseSettings selects and configures the datastore
type DatabaseSettings struct {
	Type               string        // sqlite or mysql
	SQLite             SQLiteSettings
	MySQL              MySQLSettings
	SlowQueryThreshold time.Duration // queries above this are logged as slow, 0 disables
}

// RateLimitSettings is a requests-per-window limiter configuration
type RateLimitSettings struct {
	Requests int           // requests allowed per window
	Burst    int           // burst above the steady rate
	Window   time.Duration // window the requests are counted over
}

// ToastSettings configures the toast bus and its network surfaces
type ToastSettings struct {
	DefaultTTL        time.Duration // lifetime of a toast without an explicit TTL
	SurfaceCapacity   int           // max toasts kept by a server-side surface
	StreamBuffer      int           // per-connection event buffer
	Heartbeat         time.Duration // SSE/WebSocket keepalive interval
	MaxStreamDuration time.Duration // streams are closed after this long
	RateLimit         RateLimitSettings
}

// SecuritySettings configures API authentication
type SecuritySettings struct {
	RequireAuth bool          // require a bearer token for mutating routes
	TokenTTL    time.Duration // lifetime of issued tokens
}

// ReminderSettings configures the appointment reminder job
type ReminderSettings struct {
	Enabled  bool
	Schedule string // cron expression
	Timezone string // IANA zone the schedule runs in, empty for local
}

// MQTTSettings configures appointment event publishing
type MQTTSettings struct {
	Enabled      bool
	Broker       string // tcp://host:1883
	Topic        string // base topic
	ClientID     string
	Username     string
	Password     string
	PasswordFile string
	QoS          byte
	Retain       bool
}

// PushSettings configures reminder push delivery through shoutrrr
type PushSettings struct {
	Enabled   bool
	URLs      []string // shoutrrr service URLs
	RateLimit float64  // sends per second
	Burst     int
	Workers   int // size of the delivery pool
	Timeout   time.Duration
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled bool
	DSN     string
	DSNFile string
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool
	Path    string
}

// Settings contains all configuration options for HealthDesk.
type Settings struct {
	Debug bool

	Main      MainSettings
	Logging   logger.LoggingConfig
	WebServer WebServerSettings
	Database  DatabaseSettings
	Toast     ToastSettings
	Security  SecuritySettings
	Reminder  ReminderSettings
	MQTT      MQTTSettings
	Push      PushSettings
	Sentry    SentrySettings
	Metrics   MetricsSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from the default search paths.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from configFile, or from the default search
// paths when configFile is empty. A missing file is created from the
// embedded defaults.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if raw := os.Getenv(databaseURLEnv); raw != "" {
		db, err := ParseDatabaseURL(raw)
		if err != nil {
			return nil, err
		}
		db.SlowQueryThreshold = settings.Database.SlowQueryThreshold
		settings.Database = db
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || isMissingFile(configFile) {
		return createDefaultConfig(configFile)
	}
	return errors.New(err).
		Component("configuration").
		Category(errors.CategoryConfiguration).
		Context("operation", "read-config").
		Build()
}

func isMissingFile(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// createDefaultConfig writes the embedded default config to configFile or to
// the first default config path, then reads it back.
func createDefaultConfig(configFile string) error {
	configPath := configFile
	if configPath == "" {
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		configPath = filepath.Join(configPaths[0], "config.yaml")
	}

	data, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in an
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
