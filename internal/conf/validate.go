// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tphakala/healthdesk/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Harmless problems
// are corrected in place; everything else is collected and returned as a
// configuration-category error.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateWebServerSettings,
		validateDatabaseSettings,
		validateToastSettings,
		validateSecuritySettings,
		validateReminderSettings,
		validateMQTTSettings,
		validatePushSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port %q is not a valid port", s.WebServer.Port)
	}
	if s.WebServer.BodyLimit == "" {
		s.WebServer.BodyLimit = "1M"
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	s.Database.Type = strings.ToLower(s.Database.Type)
	switch s.Database.Type {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "mysql":
		m := s.Database.MySQL
		if m.Host == "" || m.Database == "" || m.Username == "" {
			return fmt.Errorf("database.mysql requires host, username and database")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", s.Database.Type)
	}
	return nil
}

func validateToastSettings(s *Settings) error {
	t := &s.Toast
	// non-positive TTL falls back to the default, same as an announcement would
	if t.DefaultTTL <= 0 {
		t.DefaultTTL = 3000 * time.Millisecond
	}
	if t.StreamBuffer < 1 {
		t.StreamBuffer = 1
	}
	if t.SurfaceCapacity < 0 {
		return fmt.Errorf("toast.surfacecapacity must not be negative")
	}
	if t.Heartbeat <= 0 {
		return fmt.Errorf("toast.heartbeat must be positive")
	}
	if t.RateLimit.Requests < 1 || t.RateLimit.Window <= 0 {
		return fmt.Errorf("toast.ratelimit needs positive requests and window")
	}
	return nil
}

func validateSecuritySettings(s *Settings) error {
	if s.Security.RequireAuth && s.Security.TokenTTL <= 0 {
		return fmt.Errorf("security.tokenttl must be positive when requireauth is enabled")
	}
	return nil
}

func validateReminderSettings(s *Settings) error {
	if !s.Reminder.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(s.Reminder.Schedule); err != nil {
		return fmt.Errorf("reminder.schedule %q: %w", s.Reminder.Schedule, err)
	}
	if s.Reminder.Timezone != "" {
		if _, err := time.LoadLocation(s.Reminder.Timezone); err != nil {
			return fmt.Errorf("reminder.timezone %q: %w", s.Reminder.Timezone, err)
		}
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if s.MQTT.Topic == "" {
		s.MQTT.Topic = "healthdesk"
	}
	return nil
}

func validatePushSettings(s *Settings) error {
	if !s.Push.Enabled {
		return nil
	}
	if len(s.Push.URLs) == 0 {
		return fmt.Errorf("push.urls must list at least one service when push is enabled")
	}
	if s.Push.RateLimit <= 0 {
		return fmt.Errorf("push.ratelimit must be positive")
	}
	if s.Push.Workers < 1 {
		s.Push.Workers = 1
	}
	return nil
}
