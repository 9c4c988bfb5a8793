package datastore

import "time"

// Doctor is a clinician appointments and records may refer to.
type Doctor struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:100;not null" json:"first_name"`
	LastName  string `gorm:"size:100;not null" json:"last_name"`
	Specialty string `gorm:"size:100;default:''" json:"specialty"`
	Phone     string `gorm:"size:50;default:''" json:"phone"`
	Email     string `gorm:"size:255;default:''" json:"email"`
}

// Patient owns patient records; deleting a patient deletes them.
type Patient struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:100;not null" json:"first_name"`
	LastName  string `gorm:"size:100;not null" json:"last_name"`
	DOB       *Date  `gorm:"column:dob;type:date" json:"dob"`
	Phone     string `gorm:"size:50;default:''" json:"phone"`
	Email     string `gorm:"size:255;default:''" json:"email"`
	Address   string `gorm:"size:255;default:''" json:"address"`
}

// PatientRecord is one visit entry in a patient's history.
type PatientRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Date      Date   `gorm:"type:date;not null;index" json:"date"`
	Notes     string `gorm:"type:text" json:"notes"`
	HeightIn  *int   `json:"height_in"`
	WeightLb  *int   `json:"weight_lb"`
	Diagnosis string `gorm:"size:255;default:''" json:"diagnosis"`
	PatientID uint   `gorm:"index;not null" json:"patient_id"`
	DoctorID  *uint  `gorm:"index" json:"doctor_id"`
}

// Appointment is a booked visit. Doctor and patient are optional.
type Appointment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Date      Date       `gorm:"type:date;not null;index" json:"date"`
	Time      *TimeOfDay `gorm:"type:time" json:"time"`
	Purpose   string     `gorm:"size:255;default:''" json:"purpose"`
	CreatedAt time.Time  `json:"created_at"`
	DoctorID  *uint      `gorm:"index" json:"doctor_id"`
	PatientID *uint      `gorm:"index" json:"patient_id"`
}

// User is an API account. Passwords are stored as bcrypt hashes.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token is an issued bearer token.
type Token struct {
	Value     string    `gorm:"primaryKey;size:64"`
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName keeps the token table name explicit.
func (Token) TableName() string {
	return "auth_tokens"
}

// models lists every table for auto migration.
func models() []any {
	return []any{
		&Doctor{},
		&Patient{},
		&PatientRecord{},
		&Appointment{},
		&User{},
		&Token{},
	}
}
