package conf

import (
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/secrets"
)

// resolveSecrets replaces credential fields with their resolved values so
// the rest of the program never sees ${VAR} references or secret paths.
func resolveSecrets(s *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"database.mysql.password", s.Database.MySQL.PasswordFile, &s.Database.MySQL.Password},
		{"mqtt.password", s.MQTT.PasswordFile, &s.MQTT.Password},
		{"sentry.dsn", s.Sentry.DSNFile, &s.Sentry.DSN},
	}

	for _, f := range fields {
		v, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return secretError(f.name, err)
		}
		*f.value = v
	}

	// push URLs embed service tokens
	for i, u := range s.Push.URLs {
		v, err := secrets.Expand(u)
		if err != nil {
			return secretError("push.urls", err)
		}
		s.Push.URLs[i] = v
	}
	return nil
}

func secretError(field string, err error) error {
	return errors.New(err).
		Component("configuration").
		Category(errors.CategoryConfiguration).
		Context("setting", field).
		Build()
}
