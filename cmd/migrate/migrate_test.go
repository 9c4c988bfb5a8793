package migrate

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

func sqliteDB(t *testing.T, name string) conf.DatabaseSettings {
	t.Helper()
	return conf.DatabaseSettings{
		Type:   "sqlite",
		SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), name)},
	}
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func TestDatabases(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "sqlite"
	settings.Database.SQLite.Path = "health.db"
	settings.Database.MySQL = conf.MySQLSettings{Host: "db", Port: "3306", Database: "healthdesk"}

	src, dst, err := databases(settings, options{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", src.Type)
	assert.Equal(t, "health.db", src.SQLite.Path)
	assert.Equal(t, "mysql", dst.Type)
	assert.Equal(t, "db", dst.MySQL.Host)

	src, dst, err = databases(settings, options{
		from: "sqlite:///./old.db",
		to:   "mysql://clinic:pw@replica:3307/records",
	})
	require.NoError(t, err)
	assert.Equal(t, "./old.db", src.SQLite.Path)
	assert.Equal(t, "replica", dst.MySQL.Host)
	assert.Equal(t, "3307", dst.MySQL.Port)
	assert.Equal(t, "records", dst.MySQL.Database)

	_, _, err = databases(settings, options{to: "sqlite:///health.db"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, _, err = databases(settings, options{from: "postgres://x/y"})
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	srcDB := sqliteDB(t, "source.db")
	dstDB := sqliteDB(t, "target.db")

	src, err := datastore.New(&conf.Settings{Database: srcDB}, datastore.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, src.Open())
	require.NoError(t, src.CreateDoctor(ctx, &datastore.Doctor{FirstName: "Gregory", LastName: "House"}))
	require.NoError(t, src.CreateDoctor(ctx, &datastore.Doctor{FirstName: "Lisa", LastName: "Cuddy"}))
	require.NoError(t, src.Close())

	var out bytes.Buffer
	err = Run(ctx, &out, srcDB, dstDB, datastore.CopyOptions{Log: quietLogger()})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "doctors")
	assert.Contains(t, out.String(), "TOTAL")
	assert.Contains(t, out.String(), "Finished in")

	dst, err := datastore.New(&conf.Settings{Database: dstDB}, datastore.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, dst.Open())
	t.Cleanup(func() { _ = dst.Close() })
	doctors, err := dst.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Len(t, doctors, 2)
}

func TestRun_UnreachableTarget(t *testing.T) {
	t.Parallel()

	err := Run(t.Context(), io.Discard, sqliteDB(t, "source.db"),
		conf.DatabaseSettings{Type: "postgres"}, datastore.CopyOptions{Log: quietLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}
