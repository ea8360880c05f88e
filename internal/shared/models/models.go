package models

import (
	"errors"
	"time"
)

// Role is the backend-issued role of an authenticated user. It is carried
// as a signed claim on the provider token and never chosen by the client.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Profile holds the contact details shared by patient and doctor accounts.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// DoctorProfile extends Profile with the doctor-only fields.
type DoctorProfile struct {
	Profile
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
}

// AvailabilitySlot is one weekly consultation window of a doctor.
type AvailabilitySlot struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Identity is the signed-in user. Exactly one role is set; the Patient and
// Doctor sub-records are populated only for the matching role.
type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Patient *Profile        `json:"patient,omitempty"`
	Doctor  *DoctorIdentity `json:"doctor,omitempty"`
}

// DoctorIdentity carries the doctor profile plus the weekly availability.
type DoctorIdentity struct {
	Profile      DoctorProfile      `json:"profile"`
	Availability []AvailabilitySlot `json:"availability"`
}

var ErrMalformedIdentity = errors.New("malformed identity")

// Validate enforces the one-role-one-sub-record invariant.
func (i *Identity) Validate() error {
	if i.UserID == "" || !i.Role.Valid() {
		return ErrMalformedIdentity
	}
	switch i.Role {
	case RolePatient:
		if i.Doctor != nil {
			return ErrMalformedIdentity
		}
	case RoleDoctor:
		if i.Patient != nil {
			return ErrMalformedIdentity
		}
	case RoleAdmin:
		if i.Patient != nil || i.Doctor != nil {
			return ErrMalformedIdentity
		}
	}
	return nil
}

func (i *Identity) IsPatient() bool { return i != nil && i.Role == RolePatient }
func (i *Identity) IsDoctor() bool  { return i != nil && i.Role == RoleDoctor }
func (i *Identity) IsAdmin() bool   { return i != nil && i.Role == RoleAdmin }

// Credential is a bearer token plus its absolute expiry. It is replaced
// wholesale on every refresh and never partially mutated; a zero Expiry
// means the token must not be trusted by the cache.
type Credential struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// TrustedAt reports whether the credential may be used at the given instant
// without contacting the provider, leaving margin before expiry so a request
// does not go out with a token that dies mid-flight.
func (c Credential) TrustedAt(now time.Time, margin time.Duration) bool {
	if c.Token == "" || c.Expiry.IsZero() {
		return false
	}
	return now.Before(c.Expiry.Add(-margin))
}

// DocumentStatus tracks whether a locally cached document has been opened.
type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
	DocumentViewed  DocumentStatus = "viewed"
)

// Document is one locally cached upload, keyed by appointment. FileData is
// the base64-encoded payload; it is immutable after insert.
type Document struct {
	ID            int64          `json:"id,omitempty"`
	AppointmentID string         `json:"appointmentId"`
	DoctorID      string         `json:"doctorId"`
	Filename      string         `json:"filename"`
	FileData      string         `json:"fileData"`
	MimeType      string         `json:"mimeType"`
	CreatedAt     time.Time      `json:"createdAt"`
	Status        DocumentStatus `json:"status"`
}

// AppointmentStatus mirrors the backend's appointment lifecycle.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentRejected  AppointmentStatus = "rejected"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patientId"`
	DoctorID  string            `json:"doctorId"`
	Date      time.Time         `json:"date"`
	Duration  int               `json:"duration"`
	Status    AppointmentStatus `json:"status"`
	Reason    string            `json:"reason"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type Consultation struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	PatientID     string    `json:"patientId"`
	DoctorID      string    `json:"doctorId"`
	DoctorName    string    `json:"doctorName"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Doctor is the public listing shape returned by the doctors endpoints.
type Doctor struct {
	ID           string             `json:"id"`
	Email        string             `json:"email"`
	Profile      DoctorProfile      `json:"profile"`
	Availability []AvailabilitySlot `json:"availability"`
	Rating       float64            `json:"rating,omitempty"`
}
