package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/healthdesk/internal/errors"
)

// ListDoctors returns every doctor in insertion order.
func (ds *DataStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var doctors []Doctor
	if err := db.Order("id ASC").Find(&doctors).Error; err != nil {
		return nil, dbError(err, "list_doctors")
	}
	return doctors, nil
}

// GetDoctor loads one doctor.
func (ds *DataStore) GetDoctor(ctx context.Context, id uint) (Doctor, error) {
	var d Doctor
	err := ds.first(ctx, &d, id, ErrDoctorNotFound, "get_doctor")
	return d, err
}

// CreateDoctor inserts d and fills its ID.
func (ds *DataStore) CreateDoctor(ctx context.Context, d *Doctor) error {
	return ds.create(ctx, d, "create_doctor")
}

// DeleteDoctor removes a doctor. Appointments and records that referred to
// the doctor keep existing with the reference cleared.
func (ds *DataStore) DeleteDoctor(ctx context.Context, id uint) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Doctor{}, id)
		if res.Error != nil {
			return dbError(res.Error, "delete_doctor", "id", id)
		}
		if res.RowsAffected == 0 {
			return notFound(ErrDoctorNotFound, "delete_doctor", id)
		}
		if err := tx.Model(&Appointment{}).Where("doctor_id = ?", id).Update("doctor_id", nil).Error; err != nil {
			return dbError(err, "delete_doctor", "id", id, "step", "detach_appointments")
		}
		if err := tx.Model(&PatientRecord{}).Where("doctor_id = ?", id).Update("doctor_id", nil).Error; err != nil {
			return dbError(err, "delete_doctor", "id", id, "step", "detach_records")
		}
		return nil
	})
}

// ListPatients returns every patient in insertion order.
func (ds *DataStore) ListPatients(ctx context.Context) ([]Patient, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var patients []Patient
	if err := db.Order("id ASC").Find(&patients).Error; err != nil {
		return nil, dbError(err, "list_patients")
	}
	return patients, nil
}

// GetPatient loads one patient.
func (ds *DataStore) GetPatient(ctx context.Context, id uint) (Patient, error) {
	var p Patient
	err := ds.first(ctx, &p, id, ErrPatientNotFound, "get_patient")
	return p, err
}

// CreatePatient inserts p and fills its ID.
func (ds *DataStore) CreatePatient(ctx context.Context, p *Patient) error {
	return ds.create(ctx, p, "create_patient")
}

// DeletePatient removes a patient together with their records. Their
// appointments are kept with the patient reference cleared.
func (ds *DataStore) DeletePatient(ctx context.Context, id uint) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Patient{}, id)
		if res.Error != nil {
			return dbError(res.Error, "delete_patient", "id", id)
		}
		if res.RowsAffected == 0 {
			return notFound(ErrPatientNotFound, "delete_patient", id)
		}
		if err := tx.Where("patient_id = ?", id).Delete(&PatientRecord{}).Error; err != nil {
			return dbError(err, "delete_patient", "id", id, "step", "delete_records")
		}
		if err := tx.Model(&Appointment{}).Where("patient_id = ?", id).Update("patient_id", nil).Error; err != nil {
			return dbError(err, "delete_patient", "id", id, "step", "detach_appointments")
		}
		return nil
	})
}

// ListPatientRecords returns a patient's records, newest first.
func (ds *DataStore) ListPatientRecords(ctx context.Context, patientID uint) ([]PatientRecord, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var records []PatientRecord
	err = db.Where("patient_id = ?", patientID).
		Order("date DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, "list_patient_records", "patient_id", patientID)
	}
	return records, nil
}

// CreatePatientRecord inserts r after checking that the patient and, when
// given, the doctor exist.
func (ds *DataStore) CreatePatientRecord(ctx context.Context, r *PatientRecord) error {
	if _, err := ds.GetPatient(ctx, r.PatientID); err != nil {
		if errors.IsNotFound(err) {
			return validationError(ErrInvalidPatient, "patient_id", r.PatientID)
		}
		return err
	}
	if r.DoctorID != nil && *r.DoctorID != 0 {
		if _, err := ds.GetDoctor(ctx, *r.DoctorID); err != nil {
			if errors.IsNotFound(err) {
				return validationError(ErrInvalidDoctor, "doctor_id", *r.DoctorID)
			}
			return err
		}
	} else {
		r.DoctorID = nil
	}
	return ds.create(ctx, r, "create_patient_record")
}

// DeletePatientRecord removes one record.
func (ds *DataStore) DeletePatientRecord(ctx context.Context, id uint) error {
	return ds.deleteByID(ctx, &PatientRecord{}, id, ErrRecordNotFound, "delete_patient_record")
}

// ListAppointments returns all appointments by date, earliest first.
func (ds *DataStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var appointments []Appointment
	if err := db.Order("date ASC").Order("id ASC").Find(&appointments).Error; err != nil {
		return nil, dbError(err, "list_appointments")
	}
	return appointments, nil
}

// AppointmentsOn returns the appointments booked for one day.
func (ds *DataStore) AppointmentsOn(ctx context.Context, day Date) ([]Appointment, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var appointments []Appointment
	err = db.Where("date = ?", day).Order("time ASC").Order("id ASC").Find(&appointments).Error
	if err != nil {
		return nil, dbError(err, "appointments_on", "date", day.String())
	}
	return appointments, nil
}

// CreateAppointment inserts a. Doctor or patient ids that do not exist are
// stored as null rather than rejected.
func (ds *DataStore) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.DoctorID != nil {
		if _, err := ds.GetDoctor(ctx, *a.DoctorID); err != nil {
			if !errors.IsNotFound(err) {
				return err
			}
			a.DoctorID = nil
		}
	}
	if a.PatientID != nil {
		if _, err := ds.GetPatient(ctx, *a.PatientID); err != nil {
			if !errors.IsNotFound(err) {
				return err
			}
			a.PatientID = nil
		}
	}
	return ds.create(ctx, a, "create_appointment")
}

// DeleteAppointment removes one appointment.
func (ds *DataStore) DeleteAppointment(ctx context.Context, id uint) error {
	return ds.deleteByID(ctx, &Appointment{}, id, ErrAppointmentNotFound, "delete_appointment")
}

// CreateUser inserts u; the username must be unused.
func (ds *DataStore) CreateUser(ctx context.Context, u *User) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	var count int64
	if err := db.Model(&User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return dbError(err, "create_user")
	}
	if count > 0 {
		return conflictError(ErrUsernameTaken, "create_user")
	}
	if err := db.Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError(ErrUsernameTaken, "create_user")
		}
		return dbError(err, "create_user")
	}
	return nil
}

// GetUserByUsername loads a user by name.
func (ds *DataStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, notFound(ErrUserNotFound, "get_user", username)
		}
		return User{}, dbError(err, "get_user")
	}
	return u, nil
}

// SaveToken stores an issued token.
func (ds *DataStore) SaveToken(ctx context.Context, t *Token) error {
	// expiry is compared as text on SQLite, keep a single offset
	t.ExpiresAt = t.ExpiresAt.UTC()
	return ds.create(ctx, t, "save_token")
}

// GetToken returns the token if it exists and has not expired at now.
func (ds *DataStore) GetToken(ctx context.Context, value string, now time.Time) (Token, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return Token{}, err
	}
	var t Token
	err = db.Where("value = ? AND expires_at > ?", value, now.UTC()).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Token{}, notFound(ErrTokenNotFound, "get_token", "redacted")
		}
		return Token{}, dbError(err, "get_token")
	}
	return t, nil
}

// DeleteExpiredTokens purges tokens that expired before now.
func (ds *DataStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Where("expires_at <= ?", now.UTC()).Delete(&Token{})
	if res.Error != nil {
		return 0, dbError(res.Error, "delete_expired_tokens")
	}
	return res.RowsAffected, nil
}

func (ds *DataStore) create(ctx context.Context, value any, operation string) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(value).Error; err != nil {
		return dbError(err, operation)
	}
	return nil
}

func (ds *DataStore) first(ctx context.Context, dest any, id uint, sentinel error, operation string) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	if err := db.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(sentinel, operation, id)
		}
		return dbError(err, operation, "id", id)
	}
	return nil
}

func (ds *DataStore) deleteByID(ctx context.Context, model any, id uint, sentinel error, operation string) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	res := db.Delete(model, id)
	if res.Error != nil {
		return dbError(res.Error, operation, "id", id)
	}
	if res.RowsAffected == 0 {
		return notFound(sentinel, operation, id)
	}
	return nil
}
