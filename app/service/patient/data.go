package patient

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

type Profile struct {
	ID                string    `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DateOfBirth       time.Time `json:"date_of_birth"`
	PhoneNumber       string    `json:"phone_number"`
	Email             string    `json:"email"`
	MedicalCondition  string    `json:"medical_condition"`
	MedicationRegimen string    `json:"medication_regimen"`
	LastAppointment   time.Time `json:"last_appointment"`
	NextAppointment   time.Time `json:"next_appointment"`
	DoctorName        string    `json:"doctor_name"`

	placeholder bool
}

// Placeholder is the generic identity used when no record exists.
func Placeholder(id string) *Profile {
	return &Profile{
		ID:          id,
		FirstName:   "Patient",
		DoctorName:  "Doctor",
		placeholder: true,
	}
}

func (p *Profile) IsPlaceholder() bool {
	return p.placeholder
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Profile) Clinician() string {
	if p.DoctorName == "" {
		return "Doctor"
	}

	return p.DoctorName
}

// NextAppointmentText formats the scheduled appointment for prompts.
func (p *Profile) NextAppointmentText() string {
	return formatTime(p.NextAppointment, dateTimeLayout)
}

// Context renders the profile as first-person facts for the assistant prompt.
func (p *Profile) Context() string {
	if p.placeholder {
		return "No patient record is available."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "My name is %s. ", p.FullName())
	fmt.Fprintf(&b, "I was born on %s. ", formatTime(p.DateOfBirth, dateLayout))
	fmt.Fprintf(&b, "My phone number is %s. ", orUnknown(p.PhoneNumber))
	fmt.Fprintf(&b, "My email address is %s. ", orUnknown(p.Email))
	fmt.Fprintf(&b, "My medical condition is %s. ", orUnknown(p.MedicalCondition))
	fmt.Fprintf(&b, "I am taking %s. ", orUnknown(p.MedicationRegimen))
	fmt.Fprintf(&b, "My last appointment was on %s. ", formatTime(p.LastAppointment, dateTimeLayout))
	fmt.Fprintf(&b, "My next appointment is on %s with %s.", formatTime(p.NextAppointment, dateTimeLayout), p.Clinician())

	return b.String()
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return "unknown"
	}

	return t.Format(layout)
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}

	return value
}
