package models

import (
	"time"

	"gorm.io/gorm"
)

// Identity kinds. A login is either a doctor (staff) account or a patient
// phone number, never both.
const (
	IdentityDoctor  = "doctor"
	IdentityPatient = "patient"
)

// Identity is the account the engine is acting for. Key() is the scoping
// token used for session, selection and history storage.
type Identity struct {
	Kind     string `json:"kind"` // "doctor" or "patient"
	DoctorID string `json:"doctor_id,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Key returns the storage scoping key for this identity.
func (i Identity) Key() string {
	if i.Kind == IdentityDoctor {
		return "doctor:" + i.DoctorID
	}
	return "patient:" + i.Phone
}

// IsZero reports whether no identity field is present.
func (i Identity) IsZero() bool {
	return i.DoctorID == "" && i.Phone == ""
}

// SessionRecord binds one active conversation to an identity. A zero
// ExpiresAt means no recorded expiry (treated as still valid, subject to
// backend confirmation).
type SessionRecord struct {
	gorm.Model  `json:"-"`
	IdentityKey string    `json:"identity_key" gorm:"index"`
	SessionID   string    `json:"session_id" gorm:"uniqueIndex"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the record carries an expiry in the past.
func (r SessionRecord) Expired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// OTP is a one-time login code sent over SMS. Purpose distinguishes doctor
// and patient logins.
type OTP struct {
	Phone       string     `json:"phone"`
	Code        string     `json:"code"`
	Purpose     string     `json:"purpose"` // "doctor_login", "patient_login"
	ReferenceID string     `json:"reference_id"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	Attempts    int        `json:"attempts"`
	IsUsed      bool       `json:"is_used"`
}
