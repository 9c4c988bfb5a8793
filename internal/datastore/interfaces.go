// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation and defines
// the interface for database operations.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error
	Dialect() string
	StartMonitoring(ctx context.Context, interval time.Duration)

	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetDoctor(ctx context.Context, id uint) (Doctor, error)
	CreateDoctor(ctx context.Context, d *Doctor) error
	DeleteDoctor(ctx context.Context, id uint) error

	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id uint) (Patient, error)
	CreatePatient(ctx context.Context, p *Patient) error
	DeletePatient(ctx context.Context, id uint) error

	ListPatientRecords(ctx context.Context, patientID uint) ([]PatientRecord, error)
	CreatePatientRecord(ctx context.Context, r *PatientRecord) error
	DeletePatientRecord(ctx context.Context, id uint) error

	ListAppointments(ctx context.Context) ([]Appointment, error)
	AppointmentsOn(ctx context.Context, day Date) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uint) error

	CreateUser(ctx context.Context, u *User) error
	GetUserByUsername(ctx context.Context, username string) (User, error)
	SaveToken(ctx context.Context, t *Token) error
	GetToken(ctx context.Context, value string, now time.Time) (Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
	log     logger.Logger
}

// Option configures a store before Open.
type Option func(*DataStore)

// WithMetrics records query metrics through m.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// WithLogger overrides the datastore module logger.
func WithLogger(l logger.Logger) Option {
	return func(ds *DataStore) {
		if l != nil {
			ds.log = l
		}
	}
}

// New creates the store selected by settings.Database.Type.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	base := DataStore{log: logger.Global().Module("datastore")}
	for _, opt := range opts {
		opt(&base)
	}

	switch settings.Database.Type {
	case "sqlite":
		return &SQLiteStore{DataStore: base, Settings: settings}, nil
	case "mysql":
		return &MySQLStore{DataStore: base, Settings: settings}, nil
	}
	return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
		Component("datastore").
		Category(errors.CategoryConfiguration).
		Build()
}

// db returns a context-bound session or ErrNotOpen.
func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	return ds.DB.WithContext(ctx), nil
}

// Ping checks the connection.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// closeDB closes the pool. Shared by both dialects.
func (ds *DataStore) closeDB() error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

// performAutoMigration creates or updates every table.
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType string) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return dbError(err, "auto_migrate", "dialect", dbType)
	}
	log.Debug("database schema migrated", logger.String("dialect", dbType))
	return nil
}
