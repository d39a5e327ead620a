package patient

import (
	"context"
	"database/sql"
	"errors"
	"healthmate/app/client/sqlite"
	"time"

	"github.com/samber/do"
	"github.com/samber/oops"
)

var ErrNotFound = errors.New("patient not found")

type Service struct {
	db *sql.DB
}

func New(di *do.Injector) (*Service, error) {
	return NewWithDB(do.MustInvoke[*sqlite.Client](di).DB()), nil
}

func NewWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

// Lookup returns the profile with the given id or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, id string) (*Profile, error) {
	var (
		p                       Profile
		dob, lastAppt, nextAppt string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, date_of_birth, phone_number, email,
		       medical_condition, medication_regimen, last_appointment, next_appointment, doctor_name
		FROM patients WHERE id = ?
	`, id).Scan(&p.ID, &p.FirstName, &p.LastName, &dob, &p.PhoneNumber, &p.Email,
		&p.MedicalCondition, &p.MedicationRegimen, &lastAppt, &nextAppt, &p.DoctorName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.In("patient").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.In("patient").With("id", id).Wrapf(err, "failed to load patient")
	}

	p.DateOfBirth = parseTime(dob)
	p.LastAppointment = parseTime(lastAppt)
	p.NextAppointment = parseTime(nextAppt)

	return &p, nil
}

// Save creates or replaces a patient record.
func (s *Service) Save(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, first_name, last_name, date_of_birth, phone_number, email,
		                      medical_condition, medication_regimen, last_appointment, next_appointment, doctor_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			date_of_birth = excluded.date_of_birth,
			phone_number = excluded.phone_number,
			email = excluded.email,
			medical_condition = excluded.medical_condition,
			medication_regimen = excluded.medication_regimen,
			last_appointment = excluded.last_appointment,
			next_appointment = excluded.next_appointment,
			doctor_name = excluded.doctor_name
	`, p.ID, p.FirstName, p.LastName, storeTime(p.DateOfBirth), p.PhoneNumber, p.Email,
		p.MedicalCondition, p.MedicationRegimen, storeTime(p.LastAppointment), storeTime(p.NextAppointment), p.DoctorName)
	if err != nil {
		return oops.In("patient").With("id", p.ID).Wrapf(err, "failed to save patient")
	}

	return nil
}

func storeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	t, _ := time.Parse(time.RFC3339, value)
	return t
}
