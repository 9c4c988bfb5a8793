package datastore

import (
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/logger"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// dsn builds the connection string with the driver's own formatter so
// passwords with special characters survive.
func (store *MySQLStore) dsn() string {
	s := store.Settings.Database.MySQL
	cfg := gomysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and migrates.
func (store *MySQLStore) Open() error {
	s := store.Settings.Database.MySQL

	gormLogger := NewGormLogger(store.log, store.Settings.Database.SlowQueryThreshold, store.metrics)
	db, err := gorm.Open(mysql.Open(store.dsn()), &gorm.Config{Logger: gormLogger})
	if err != nil {
		store.log.Error("failed to open MySQL database",
			logger.String("host", s.Host),
			logger.String("port", s.Port),
			logger.String("database", s.Database),
			logger.Error(err))
		return dbError(err, "open_mysql", "host", s.Host, "database", s.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_mysql")
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	store.log.Info("database opened",
		logger.String("dialect", "mysql"),
		logger.String("host", s.Host),
		logger.String("database", s.Database))
	return performAutoMigration(db, store.log, "mysql")
}

// Close closes the connection pool.
func (store *MySQLStore) Close() error {
	return store.closeDB()
}

// Dialect names the backend.
func (store *MySQLStore) Dialect() string {
	return "mysql"
}
